package server

import (
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/blazectl/internal/observability"
	"github.com/danmuck/blazectl/internal/protocol/packet"
	"github.com/danmuck/blazectl/internal/protocol/stream"
	"github.com/danmuck/blazectl/internal/protocol/tdf"
)

// Conn is one client connection. Its write methods are safe for concurrent
// use.
type Conn struct {
	id           uint64
	nc           net.Conn
	enc          *stream.Encoder
	writeTimeout time.Duration
	logger       zerolog.Logger

	writeMu sync.Mutex
}

func newConn(id uint64, nc net.Conn, cfg Config, logger zerolog.Logger) *Conn {
	return &Conn{
		id:           id,
		nc:           nc,
		enc:          stream.NewEncoder(cfg.Limits),
		writeTimeout: cfg.WriteTimeout,
		logger:       logger.With().Uint64("conn", id).Str("remote", nc.RemoteAddr().String()).Logger(),
	}
}

func (c *Conn) ID() uint64 { return c.id }

func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// Logger returns the connection-scoped logger.
func (c *Conn) Logger() *zerolog.Logger { return &c.logger }

// Send writes one frame.
func (c *Conn) Send(f packet.Frame) error {
	buf, err := c.enc.Encode(f)
	if err != nil {
		return err
	}
	h := f.Head()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.nc.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if _, err := c.nc.Write(buf); err != nil {
		return err
	}
	observability.RecordPacketOut(h.Component, h.Command, h.Type.String())
	c.logger.Trace().Stringer("header", h).Int("bytes", len(buf)).Msg("server.conn sent")
	return nil
}

// Reply answers req with a response.
func (c *Conn) Reply(req packet.Header, content ...tdf.Tdf) error {
	return c.Send(packet.Reply(req, content...))
}

// ReplyError answers req with an error reply.
func (c *Conn) ReplyError(req packet.Header, code uint16, content ...tdf.Tdf) error {
	return c.Send(packet.ReplyError(req, code, content...))
}

// Notify pushes an unsolicited packet.
func (c *Conn) Notify(component, command uint16, content ...tdf.Tdf) error {
	return c.Send(packet.NewNotification(component, command, content...))
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.nc.Close()
}
