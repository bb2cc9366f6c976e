package stream

import (
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/blazectl/internal/protocol/packet"
)

var ErrLengthMismatch = errors.New("stream: written content length differs from declared length")

// Encoder serializes frames into freshly allocated buffers.
type Encoder struct {
	limits packet.Limits
}

func NewEncoder(limits packet.Limits) *Encoder {
	return &Encoder{limits: limits}
}

// Encode returns the wire bytes of f: header, then every Tdf in order.
func (e *Encoder) Encode(f packet.Frame) ([]byte, error) {
	content, err := f.Body()
	if err != nil {
		return nil, err
	}
	size := content.Size()
	if uint64(size) > uint64(e.limits.MaxContentBytes) {
		return nil, fmt.Errorf("%w: %d bytes", packet.ErrFrameTooLarge, size)
	}

	buf := make([]byte, 0, packet.BufferSize(size))
	buf = packet.AppendHeader(buf, f.Head(), size)
	headerLen := len(buf)
	if buf, err = content.AppendTo(buf); err != nil {
		return nil, err
	}
	if written := len(buf) - headerLen; written != size {
		return nil, fmt.Errorf("%w: declared %d, wrote %d", ErrLengthMismatch, size, written)
	}
	return buf, nil
}

// WritePacket encodes f and writes it to w in one call.
func (e *Encoder) WritePacket(w io.Writer, f packet.Frame) error {
	buf, err := e.Encode(f)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}
