package packet

import (
	"sync/atomic"

	"github.com/danmuck/blazectl/internal/protocol/tdf"
)

// Buffered is an inbound packet borrowing its bytes from a shared buffer.
//
// The content is parsed on first Body call and cached. Parsed values copy
// what they need, so Fields returned by Body stay valid after Release. A
// Buffered is not safe for concurrent use except for Release, which may race
// with itself.
type Buffered struct {
	header     Header
	frame      []byte
	headerLen  int
	contentLen int
	release    func()
	released   atomic.Bool
	tdfLimits  tdf.Limits
	body       tdf.Fields
	bodyErr    error
	bodyParsed bool
}

// Borrow wraps a complete frame. release, if non-nil, runs once when the
// packet is released and must drop whatever keeps frame alive.
func Borrow(frame []byte, release func()) (*Buffered, error) {
	h, contentLen, headerLen, err := ParseHeader(frame)
	if err != nil {
		return nil, err
	}
	total := headerLen + contentLen
	if len(frame) < total {
		return nil, ErrIncompleteFrame
	}
	return &Buffered{
		header:     h,
		frame:      frame[:total:total],
		headerLen:  headerLen,
		contentLen: contentLen,
		release:    release,
		tdfLimits:  tdf.DefaultLimits(),
	}, nil
}

// DecodeFrame decodes one frame from the front of b with default limits and
// reports how many bytes it spans. ErrIncompleteFrame means more bytes are
// needed. The result borrows b directly.
func DecodeFrame(b []byte) (*Buffered, int, error) {
	return DecodeFrameLimits(b, DefaultLimits())
}

// DecodeFrameLimits is DecodeFrame with explicit limits.
func DecodeFrameLimits(b []byte, limits Limits) (*Buffered, int, error) {
	_, contentLen, headerLen, err := ParseHeader(b)
	if err != nil {
		return nil, 0, err
	}
	if uint64(contentLen) > uint64(limits.MaxContentBytes) {
		return nil, 0, ErrFrameTooLarge
	}
	p, err := Borrow(b, nil)
	if err != nil {
		return nil, 0, err
	}
	return p, headerLen + contentLen, nil
}

// Head returns the header. It stays valid after Release.
func (p *Buffered) Head() Header {
	return p.header
}

// WithLimits sets the limits used to parse the content.
func (p *Buffered) WithLimits(limits tdf.Limits) *Buffered {
	p.tdfLimits = limits
	return p
}

// Body parses and returns the content list.
func (p *Buffered) Body() (tdf.Fields, error) {
	if p.released.Load() {
		return nil, ErrBufferReleased
	}
	if !p.bodyParsed {
		p.body, p.bodyErr = tdf.ReadFieldsLimits(p.frame[p.headerLen:], p.tdfLimits)
		p.bodyParsed = true
	}
	return p.body, p.bodyErr
}

// Raw returns the borrowed frame bytes, header included. The slice must not
// be used after Release.
func (p *Buffered) Raw() ([]byte, error) {
	if p.released.Load() {
		return nil, ErrBufferReleased
	}
	return p.frame, nil
}

// ContentLen returns the declared content length.
func (p *Buffered) ContentLen() int {
	return p.contentLen
}

// Release drops the borrow on the underlying buffer. Only the first call has
// any effect; later calls return ErrBufferReleased.
func (p *Buffered) Release() error {
	if !p.released.CompareAndSwap(false, true) {
		return ErrBufferReleased
	}
	p.frame = nil
	if p.release != nil {
		p.release()
	}
	return nil
}
