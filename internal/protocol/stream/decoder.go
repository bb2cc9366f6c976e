// Package stream turns a byte stream into packets and packets into bytes.
//
// The Decoder never copies a complete frame: each packet it emits borrows a
// slice of the decoder's current chunk and holds a retain on it until
// released. The decoder reuses a chunk's memory only once nothing retains it.
package stream

import (
	"errors"
	"io"
	"sync/atomic"

	"github.com/danmuck/blazectl/internal/protocol/packet"
)

const (
	DefaultChunkSize = 64 * 1024
	minRead          = 4 * 1024
)

type chunk struct {
	buf  []byte
	refs atomic.Int32
}

func newChunk(size int) *chunk {
	return &chunk{buf: make([]byte, size)}
}

// Decoder splits fed bytes into frames. It is not safe for concurrent use,
// but packets it returns may be released from any goroutine.
type Decoder struct {
	limits    packet.Limits
	chunkSize int
	cur       *chunk
	start     int
	end       int
}

// NewDecoder returns a decoder enforcing limits.
func NewDecoder(limits packet.Limits) *Decoder {
	return &Decoder{limits: limits, chunkSize: DefaultChunkSize}
}

// WithChunkSize sets the size of freshly allocated chunks.
func (d *Decoder) WithChunkSize(n int) *Decoder {
	if n > 0 {
		d.chunkSize = n
	}
	return d
}

// Buffered returns the number of bytes fed but not yet emitted.
func (d *Decoder) Buffered() int {
	return d.end - d.start
}

// Retained returns how many emitted packets still hold the current chunk.
func (d *Decoder) Retained() int {
	if d.cur == nil {
		return 0
	}
	return int(d.cur.refs.Load())
}

// Feed appends p to the pending bytes. It never blocks and never emits.
func (d *Decoder) Feed(p []byte) {
	if len(p) == 0 {
		return
	}
	d.reserve(len(p))
	d.end += copy(d.cur.buf[d.end:], p)
}

// Next returns the next complete packet. It returns ok=false with a nil error
// when more bytes are needed. An error means the stream is unusable.
func (d *Decoder) Next() (*packet.Buffered, bool, error) {
	if d.cur == nil {
		return nil, false, nil
	}
	pending := d.cur.buf[d.start:d.end]
	_, contentLen, headerLen, err := packet.ParseHeader(pending)
	if errors.Is(err, packet.ErrIncompleteFrame) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if uint64(contentLen) > uint64(d.limits.MaxContentBytes) {
		return nil, false, packet.ErrFrameTooLarge
	}
	total := headerLen + contentLen
	if len(pending) < total {
		return nil, false, nil
	}

	c := d.cur
	c.refs.Add(1)
	p, err := packet.Borrow(pending[:total], func() { c.refs.Add(-1) })
	if err != nil {
		c.refs.Add(-1)
		return nil, false, err
	}
	d.start += total
	if d.start == d.end && c.refs.Load() == 0 {
		d.start, d.end = 0, 0
	}
	return p, true, nil
}

// ReadPacket reads from r until one packet is complete. Bytes past that
// packet stay buffered for the next call. It returns io.EOF on a clean end of
// stream and io.ErrUnexpectedEOF when the stream ends inside a frame.
func (d *Decoder) ReadPacket(r io.Reader) (*packet.Buffered, error) {
	for {
		p, ok, err := d.Next()
		if err != nil {
			return nil, err
		}
		if ok {
			return p, nil
		}

		d.reserve(max(minRead, d.missing()))
		n, err := r.Read(d.cur.buf[d.end:])
		d.end += n
		if n > 0 {
			continue
		}
		if err == io.EOF {
			if d.Buffered() > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
	}
}

// missing returns how many bytes the pending frame still lacks, or 0 when its
// header is not buffered yet or the frame is over the limit.
func (d *Decoder) missing() int {
	if d.cur == nil {
		return 0
	}
	pending := d.cur.buf[d.start:d.end]
	_, contentLen, headerLen, err := packet.ParseHeader(pending)
	if err != nil || uint64(contentLen) > uint64(d.limits.MaxContentBytes) {
		return 0
	}
	return max(0, headerLen+contentLen-len(pending))
}

// reserve makes room for n more bytes after end. Pending bytes move to the
// front of the current chunk when nothing retains it, and to a new chunk
// otherwise. Chunks grow at least geometrically once a frame outgrows the
// default size.
func (d *Decoder) reserve(n int) {
	if d.cur == nil {
		d.cur = newChunk(max(d.chunkSize, n))
		return
	}
	if len(d.cur.buf)-d.end >= n {
		return
	}
	pending := d.end - d.start
	need := pending + n
	if d.cur.refs.Load() == 0 && len(d.cur.buf) >= need {
		copy(d.cur.buf, d.cur.buf[d.start:d.end])
		d.start, d.end = 0, pending
		return
	}
	size := max(d.chunkSize, need)
	if need > d.chunkSize {
		size = max(size, 2*len(d.cur.buf))
	}
	next := newChunk(size)
	copy(next.buf, d.cur.buf[d.start:d.end])
	d.cur = next
	d.start, d.end = 0, pending
}
