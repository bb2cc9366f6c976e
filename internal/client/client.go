// Package client is a Blaze client: it dials with backoff, correlates replies
// to requests by packet id, and hands notifications to a callback.
package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/blazectl/internal/protocol/packet"
	"github.com/danmuck/blazectl/internal/protocol/stream"
	"github.com/danmuck/blazectl/internal/protocol/tdf"
	"github.com/danmuck/blazectl/internal/transport"
)

var (
	ErrAddressRequired = errors.New("client: address required")
	ErrClosed          = errors.New("client: connection closed")
)

// ReplyError is an ErrorReply packet answering a call.
type ReplyError struct {
	Header  packet.Header
	Code    uint16
	Content tdf.Fields
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("client: error reply %#04x for component=%#04x command=%#04x",
		e.Code, e.Header.Component, e.Header.Command)
}

// NotifyFunc receives unsolicited packets. It runs on the read loop and must
// not block.
type NotifyFunc func(h packet.Header, content tdf.Fields)

type result struct {
	p   *packet.Buffered
	err error
}

// Client is one Blaze connection. Call is safe for concurrent use.
type Client struct {
	cfg    Config
	conn   net.Conn
	enc    *stream.Encoder
	logger zerolog.Logger

	writeMu sync.Mutex
	nextID  atomic.Uint32

	pendingMu sync.Mutex
	pending   map[uint16]chan result
	closed    bool
	closeErr  error

	notify atomic.Pointer[NotifyFunc]
	done   chan struct{}
}

// Dial connects to addr, retrying with backoff per cfg.
func Dial(ctx context.Context, addr string, cfg Config) (*Client, error) {
	if addr == "" {
		return nil, ErrAddressRequired
	}
	cfg = cfg.WithDefaults()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var attempt int
	for {
		attempt++
		conn, err := transport.Dial(ctx, addr, cfg.ConnectTimeout, cfg.HandshakeTimeout, cfg.TLS)
		if err == nil {
			return newClient(conn, cfg), nil
		}
		log.Warn().Int("attempt", attempt).Str("addr", addr).Err(err).Msg("client.Dial")
		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			return nil, err
		}
		if err := sleepBackoff(ctx, NextBackoffDelay(cfg.Backoff, attempt, rng)); err != nil {
			return nil, err
		}
	}
}

// New wraps an established connection.
func New(conn net.Conn, cfg Config) *Client {
	return newClient(conn, cfg.WithDefaults())
}

func newClient(conn net.Conn, cfg Config) *Client {
	c := &Client{
		cfg:     cfg,
		conn:    conn,
		enc:     stream.NewEncoder(cfg.Limits),
		logger:  log.Logger.With().Str("remote", conn.RemoteAddr().String()).Logger(),
		pending: make(map[uint16]chan result),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func sleepBackoff(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// OnNotification installs fn for unsolicited packets, replacing any
// previous callback.
func (c *Client) OnNotification(fn NotifyFunc) {
	c.notify.Store(&fn)
}

// Call sends a request and waits for its reply. The caller must Release the
// returned packet. An ErrorReply is returned as *ReplyError.
func (c *Client) Call(ctx context.Context, component, command uint16, content ...tdf.Tdf) (*packet.Buffered, error) {
	ch := make(chan result, 1)
	id, err := c.register(ch)
	if err != nil {
		return nil, err
	}

	req := packet.NewRequest(component, command, id, content...)
	if err := c.send(req); err != nil {
		c.abandon(id, ch)
		return nil, err
	}

	select {
	case r := <-ch:
		return r.p, r.err
	case <-ctx.Done():
		c.abandon(id, ch)
		return nil, ctx.Err()
	}
}

// abandon drops a call. If the read loop already claimed the id, its result
// is on the way and gets released here.
func (c *Client) abandon(id uint16, ch chan result) {
	if c.unregister(id) != nil {
		return
	}
	if r := <-ch; r.p != nil {
		_ = r.p.Release()
	}
}

// Send writes a frame without waiting for a reply.
func (c *Client) Send(f packet.Frame) error {
	return c.send(f)
}

func (c *Client) send(f packet.Frame) error {
	buf, err := c.enc.Encode(f)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.cfg.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if _, err := c.conn.Write(buf); err != nil {
		return fmt.Errorf("client: write: %w", err)
	}
	return nil
}

// register reserves a packet id. Id 0 is left to notifications.
func (c *Client) register(ch chan result) (uint16, error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if c.closed {
		return 0, c.closeErr
	}
	for {
		id := uint16(c.nextID.Add(1))
		if id == 0 {
			continue
		}
		if _, busy := c.pending[id]; busy {
			continue
		}
		c.pending[id] = ch
		return id, nil
	}
}

func (c *Client) unregister(id uint16) chan result {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	ch := c.pending[id]
	delete(c.pending, id)
	return ch
}

// Pending returns the number of calls awaiting a reply.
func (c *Client) Pending() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return len(c.pending)
}

func (c *Client) readLoop() {
	defer close(c.done)
	dec := stream.NewDecoder(c.cfg.Limits)
	for {
		p, err := dec.ReadPacket(c.conn)
		if err != nil {
			c.fail(err)
			return
		}
		c.deliver(p)
	}
}

func (c *Client) deliver(p *packet.Buffered) {
	h := p.Head()
	switch h.Type {
	case packet.Response, packet.ErrorReply:
		ch := c.unregister(h.ID)
		if ch == nil {
			c.logger.Debug().Stringer("header", h).Msg("client.readLoop reply without pending call")
			_ = p.Release()
			return
		}
		if h.Type == packet.ErrorReply {
			content, _ := p.Body()
			_ = p.Release()
			ch <- result{err: &ReplyError{Header: h, Code: h.Error, Content: content}}
			return
		}
		ch <- result{p: p}
	case packet.Notification:
		defer p.Release()
		fn := c.notify.Load()
		if fn == nil {
			return
		}
		content, err := p.Body()
		if err != nil {
			c.logger.Warn().Stringer("header", h).Err(err).Msg("client.readLoop notification content")
			return
		}
		(*fn)(h, content)
	default:
		c.logger.Debug().Stringer("header", h).Msg("client.readLoop ignoring request from server")
		_ = p.Release()
	}
}

func (c *Client) fail(cause error) {
	c.pendingMu.Lock()
	if c.closed {
		c.pendingMu.Unlock()
		return
	}
	c.closed = true
	c.closeErr = ErrClosed
	if cause != nil && !errors.Is(cause, net.ErrClosed) {
		c.closeErr = fmt.Errorf("%w: %v", ErrClosed, cause)
	}
	pending := c.pending
	c.pending = make(map[uint16]chan result)
	c.pendingMu.Unlock()

	for _, ch := range pending {
		ch <- result{err: c.closeErr}
	}
	_ = c.conn.Close()
}

// Close closes the connection and fails every pending call with ErrClosed.
func (c *Client) Close() error {
	c.fail(nil)
	<-c.done
	return nil
}
