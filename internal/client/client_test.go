package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/danmuck/blazectl/internal/protocol/packet"
	"github.com/danmuck/blazectl/internal/protocol/tdf"
	"github.com/danmuck/blazectl/internal/server"
	"github.com/danmuck/blazectl/internal/testutil/testlog"
)

const (
	testComponent uint16 = 0x0042
	cmdEcho       uint16 = 0x0001
	cmdNotify     uint16 = 0x0002
	cmdBlock      uint16 = 0x0003
	cmdDeny       uint16 = 0x0004
)

func startServer(t *testing.T, block <-chan struct{}) string {
	t.Helper()
	testlog.Start(t)

	router := server.NewRouter()
	router.Handle(testComponent, cmdEcho, func(_ context.Context, c *server.Conn, req *packet.Buffered) error {
		body, err := req.Body()
		if err != nil {
			return err
		}
		return c.Reply(req.Head(), body...)
	})
	router.Handle(testComponent, cmdNotify, func(_ context.Context, c *server.Conn, req *packet.Buffered) error {
		if err := c.Notify(testComponent, 0x0100, tdf.NewString("MSG", "hello")); err != nil {
			return err
		}
		return c.Reply(req.Head())
	})
	router.Handle(testComponent, cmdBlock, func(ctx context.Context, c *server.Conn, req *packet.Buffered) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	})
	router.Handle(testComponent, cmdDeny, func(context.Context, *server.Conn, *packet.Buffered) error {
		return server.Status(0x0031, errors.New("denied"))
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	svc := server.NewService(server.DefaultConfig(), router)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ln.Addr().String()
}

func dial(t *testing.T, addr string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	c, err := Dial(ctx, addr, DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCallRoundTrip(t *testing.T) {
	c := dial(t, startServer(t, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	p, err := c.Call(ctx, testComponent, cmdEcho, tdf.NewString("DSNM", "Alice"), tdf.NewVarInt("PID", 7))
	require.NoError(t, err)
	defer p.Release()

	require.Equal(t, packet.Response, p.Head().Type)
	body, err := p.Body()
	require.NoError(t, err)
	pid, err := body.Number("PID")
	require.NoError(t, err)
	require.EqualValues(t, 7, pid)
	require.Zero(t, c.Pending())
}

func TestConcurrentCallsCorrelate(t *testing.T) {
	c := dial(t, startServer(t, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n uint64) {
			defer wg.Done()
			p, err := c.Call(ctx, testComponent, cmdEcho, tdf.NewVarInt("SEQ", n))
			if err != nil {
				errs <- err
				return
			}
			defer p.Release()
			body, err := p.Body()
			if err != nil {
				errs <- err
				return
			}
			if got, _ := body.Number("SEQ"); got != n {
				errs <- errors.New("reply routed to the wrong call")
			}
		}(uint64(i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestCallErrorReply(t *testing.T) {
	c := dial(t, startServer(t, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := c.Call(ctx, testComponent, cmdDeny)
	var re *ReplyError
	require.ErrorAs(t, err, &re)
	require.Equal(t, uint16(0x0031), re.Code)

	_, err = c.Call(ctx, 0x7777, 0x0001)
	require.ErrorAs(t, err, &re)
	require.Equal(t, packet.ErrCodeCommandNotFound, re.Code)
}

func TestNotificationCallback(t *testing.T) {
	c := dial(t, startServer(t, nil))
	got := make(chan string, 1)
	c.OnNotification(func(h packet.Header, content tdf.Fields) {
		msg, _ := content.Text("MSG")
		got <- msg
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	p, err := c.Call(ctx, testComponent, cmdNotify)
	require.NoError(t, err)
	require.NoError(t, p.Release())

	select {
	case msg := <-got:
		require.Equal(t, "hello", msg)
	case <-time.After(2 * time.Second):
		t.Fatalf("notification not delivered")
	}
}

func TestCloseFailsPendingCalls(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	c := dial(t, startServer(t, block))

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Call(context.Background(), testComponent, cmdBlock)
		errCh <- err
	}()
	require.Eventually(t, func() bool { return c.Pending() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatalf("pending call not failed")
	}

	_, err := c.Call(context.Background(), testComponent, cmdEcho)
	require.ErrorIs(t, err, ErrClosed)
}

func TestCallContextCancel(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	c := dial(t, startServer(t, block))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Call(ctx, testComponent, cmdBlock)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Zero(t, c.Pending())
}

func TestDialGivesUpAfterMaxAttempts(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := DefaultConfig()
	cfg.MaxAttempts = 2
	cfg.Backoff = BackoffConfig{InitialDelay: 10 * time.Millisecond, Multiplier: 2}
	_, err = Dial(context.Background(), addr, cfg)
	require.Error(t, err)
}

func TestDialRetriesUntilListenerAppears(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	accepted := make(chan struct{})
	go func() {
		time.Sleep(100 * time.Millisecond)
		late, err := net.Listen("tcp", addr)
		if err != nil {
			return
		}
		defer late.Close()
		conn, err := late.Accept()
		if err == nil {
			close(accepted)
			_ = conn.Close()
		}
	}()

	cfg := DefaultConfig()
	cfg.MaxAttempts = 0
	cfg.Backoff = BackoffConfig{InitialDelay: 20 * time.Millisecond, Multiplier: 1.5, MaxDelay: 100 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	c, err := Dial(ctx, addr, cfg)
	require.NoError(t, err)
	defer c.Close()

	select {
	case <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatalf("late listener never accepted")
	}
}

func TestDialRequiresAddress(t *testing.T) {
	_, err := Dial(context.Background(), "", DefaultConfig())
	require.ErrorIs(t, err, ErrAddressRequired)
}
