// Package server runs the Blaze listener: an accept loop, a read loop per
// connection, and dispatch of requests to registered handlers.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/blazectl/internal/observability"
	"github.com/danmuck/blazectl/internal/protocol/packet"
	"github.com/danmuck/blazectl/internal/protocol/stream"
	"github.com/danmuck/blazectl/internal/protocol/tdf"
	"github.com/danmuck/blazectl/internal/transport"
)

// Service owns the listener and every live connection.
type Service struct {
	cfg    Config
	router *Router
	logger zerolog.Logger

	connsMu sync.Mutex
	conns   map[*Conn]struct{}
	wg      sync.WaitGroup

	clientCount atomic.Int64
	nextConnID  atomic.Uint64
	closed      atomic.Bool
}

func NewService(cfg Config, router *Router) *Service {
	if router == nil {
		router = NewRouter()
	}
	return &Service{
		cfg:    cfg.WithDefaults(),
		router: router,
		logger: log.Logger,
		conns:  make(map[*Conn]struct{}),
	}
}

// WithLogger replaces the service logger.
func (s *Service) WithLogger(logger zerolog.Logger) *Service {
	s.logger = logger
	return s
}

func (s *Service) Config() Config { return s.cfg }

func (s *Service) Router() *Router { return s.router }

// ActiveClients returns the number of open connections.
func (s *Service) ActiveClients() int64 {
	return s.clientCount.Load()
}

// Run listens on the configured address and serves until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	if s.closed.Load() {
		return ErrServiceClosed
	}
	ln, err := transport.Listen(s.cfg.ListenAddr, s.cfg.TLS)
	if err != nil {
		return err
	}
	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Bool("tls", s.cfg.TLS.Enabled).
		Int("routes", s.router.Len()).
		Msg("server.Service.Run listening")
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then closes every
// connection and waits for their loops to exit. A service serves once; later
// calls return ErrServiceClosed.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	if s.closed.Load() {
		return ErrServiceClosed
	}
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		s.closeAllConns()
		_ = ln.Close()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.closed.Store(true)
				s.closeAllConns()
				s.wg.Wait()
				return nil
			}
			return err
		}
		c := newConn(s.nextConnID.Add(1), nc, s.cfg, s.logger)
		s.trackConn(c)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, c)
		}()
	}
}

func (s *Service) trackConn(c *Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.conns[c] = struct{}{}
}

func (s *Service) untrackConn(c *Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, c)
}

func (s *Service) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
}

func (s *Service) handleConn(ctx context.Context, c *Conn) {
	defer c.Close()
	defer s.untrackConn(c)
	active := s.clientCount.Add(1)
	observability.ConnOpened()
	c.logger.Info().Int64("active_clients", active).Msg("server.session client connected")
	defer func() {
		remaining := s.clientCount.Add(-1)
		observability.ConnClosed()
		c.logger.Info().Int64("active_clients", remaining).Msg("server.session client disconnected")
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	dec := stream.NewDecoder(s.cfg.Limits)
	for {
		if s.cfg.ReadTimeout > 0 {
			_ = c.nc.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		p, err := dec.ReadPacket(c.nc)
		if err != nil {
			s.logReadError(c, err)
			return
		}
		p.WithLimits(s.cfg.TDFLimits)
		h := p.Head()
		observability.RecordPacketIn(h.Component, h.Command, h.Type.String())

		if err := s.dispatch(ctx, c, p); err != nil {
			s.logDispatchError(c, h, err)
			return
		}
	}
}

func (s *Service) logReadError(c *Conn, err error) {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		c.logger.Debug().Msg("server.handleConn closed")
	case errors.Is(err, packet.ErrFrameTooLarge):
		observability.RecordFrameError("too_large")
		c.logger.Warn().Err(err).Msg("server.handleConn frame rejected")
	case errors.Is(err, os.ErrDeadlineExceeded):
		observability.RecordFrameError("read_timeout")
		c.logger.Info().Msg("server.handleConn idle timeout")
	case errors.Is(err, io.ErrUnexpectedEOF):
		observability.RecordFrameError("truncated")
		c.logger.Warn().Err(err).Msg("server.handleConn stream ended inside a frame")
	default:
		c.logger.Warn().Err(err).Msg("server.handleConn read")
	}
}

func (s *Service) logDispatchError(c *Conn, h packet.Header, err error) {
	var de *tdf.DecodeError
	var pe *PanicError
	switch {
	case errors.As(err, &de):
		observability.RecordFrameError("decode")
		c.logger.Warn().
			Stringer("header", h).
			Str("label", de.Label).
			Int("offset", de.Offset).
			Str("last", de.Last).
			Err(de.Err).
			Msg("server.dispatch malformed content")
	case errors.As(err, &pe):
		observability.RecordFrameError("panic")
		c.logger.Error().Stringer("header", h).Interface("panic", pe.Value).Msg("server.dispatch handler panic")
	default:
		c.logger.Warn().Stringer("header", h).Err(err).Msg("server.dispatch")
	}
}

// dispatch runs the handler for p and releases p when it returns. A non-nil
// error closes the connection.
func (s *Service) dispatch(ctx context.Context, c *Conn, p *packet.Buffered) error {
	defer func() {
		if err := p.Release(); err != nil {
			c.logger.Debug().Err(err).Msg("server.dispatch packet released by handler")
		}
	}()

	h := p.Head()
	if h.Type != packet.Request {
		c.logger.Debug().Stringer("header", h).Msg("server.dispatch ignoring non-request packet")
		return nil
	}

	rt, ok := s.router.lookup(h.Component, h.Command)
	if !ok {
		observability.RecordFrameError("unknown_command")
		c.logger.Warn().Stringer("header", h).Msg("server.dispatch command not found")
		return c.ReplyError(h, packet.ErrCodeCommandNotFound)
	}

	start := time.Now()
	err := invoke(ctx, rt, c, p)
	code := replyCode(err)
	observability.RecordHandler(h.Component, h.Command, code, time.Since(start))
	if err == nil {
		return nil
	}

	var de *tdf.DecodeError
	var pe *PanicError
	if errors.As(err, &de) || errors.As(err, &pe) {
		return err
	}
	c.logger.Info().Stringer("header", h).Str("route", rt.name).Err(err).Msg("server.dispatch error reply")
	return c.ReplyError(h, code)
}

func invoke(ctx context.Context, rt route, c *Conn, p *packet.Buffered) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Route: rt.name, Value: v}
		}
	}()
	return rt.handler(ctx, c, p)
}

func replyCode(err error) uint16 {
	var se *StatusError
	switch {
	case err == nil:
		return packet.ErrCodeOK
	case errors.As(err, &se):
		return se.Code
	case errors.Is(err, tdf.ErrMissingTdf), errors.Is(err, tdf.ErrKindMismatch):
		return packet.ErrCodeMalformedRequest
	default:
		return packet.ErrCodeSystem
	}
}
