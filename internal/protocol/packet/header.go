package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// BaseHeaderLen is the fixed header size.
	BaseHeaderLen = 12
	// ExtendedHeaderLen is the header size when the content length needs
	// more than 16 bits.
	ExtendedHeaderLen = 14

	FlagExtended byte = 0x10

	maxShortContent = 0xFFFF
)

// Type distinguishes requests, replies and notifications. Only the high byte
// travels on the wire.
type Type uint16

const (
	Request      Type = 0x0000
	Response     Type = 0x1000
	Notification Type = 0x2000
	ErrorReply   Type = 0x3000
)

func (t Type) String() string {
	switch t {
	case Request:
		return "request"
	case Response:
		return "response"
	case Notification:
		return "notification"
	case ErrorReply:
		return "error"
	default:
		return fmt.Sprintf("type(%#04x)", uint16(t))
	}
}

// Error codes carried in the header. Zero is success.
const (
	ErrCodeOK               uint16 = 0x0000
	ErrCodeSystem           uint16 = 0x0001
	ErrCodeCommandNotFound  uint16 = 0x0002
	ErrCodeMalformedRequest uint16 = 0x0003
)

var (
	ErrIncompleteFrame = errors.New("packet: incomplete frame")
	ErrFrameTooLarge   = errors.New("packet: content too large")
	ErrBufferReleased  = errors.New("packet: buffer already released")
)

// Header is the decoded packet header minus the content length, which is
// derived from the content when encoding.
type Header struct {
	Component uint16
	Command   uint16
	Error     uint16
	Type      Type
	ID        uint16
}

// Reply returns the response header for a request.
func (h Header) Reply() Header {
	return Header{Component: h.Component, Command: h.Command, Type: Response, ID: h.ID}
}

// ReplyError returns the error reply header for a request.
func (h Header) ReplyError(code uint16) Header {
	return Header{Component: h.Component, Command: h.Command, Error: code, Type: ErrorReply, ID: h.ID}
}

func (h Header) String() string {
	return fmt.Sprintf("%s component=%#04x command=%#04x id=%d error=%#04x",
		h.Type, h.Component, h.Command, h.ID, h.Error)
}

// Limits constrains what the decoder accepts.
type Limits struct {
	MaxContentBytes uint32
}

func DefaultLimits() Limits {
	return Limits{MaxContentBytes: 8 * 1024 * 1024}
}

// HeaderSize returns the header length for contentLen bytes of content.
func HeaderSize(contentLen int) int {
	if contentLen > maxShortContent {
		return ExtendedHeaderLen
	}
	return BaseHeaderLen
}

// BufferSize returns the full frame length for contentLen bytes of content.
func BufferSize(contentLen int) int {
	return HeaderSize(contentLen) + contentLen
}

// AppendHeader appends the wire header for h carrying contentLen bytes.
func AppendHeader(dst []byte, h Header, contentLen int) []byte {
	var flag byte
	if contentLen > maxShortContent {
		flag = FlagExtended
	}
	dst = binary.BigEndian.AppendUint16(dst, uint16(contentLen))
	dst = binary.BigEndian.AppendUint16(dst, h.Component)
	dst = binary.BigEndian.AppendUint16(dst, h.Command)
	dst = binary.BigEndian.AppendUint16(dst, h.Error)
	dst = append(dst, byte(h.Type>>8), flag)
	dst = binary.BigEndian.AppendUint16(dst, h.ID)
	if flag&FlagExtended != 0 {
		dst = binary.BigEndian.AppendUint16(dst, uint16(uint32(contentLen)>>16))
	}
	return dst
}

// ParseHeader decodes the header at the front of b. It returns
// ErrIncompleteFrame when b is too short to hold the whole header; the
// content itself need not be present yet.
func ParseHeader(b []byte) (Header, int, int, error) {
	if len(b) < BaseHeaderLen {
		return Header{}, 0, 0, ErrIncompleteFrame
	}
	h := Header{
		Component: binary.BigEndian.Uint16(b[2:4]),
		Command:   binary.BigEndian.Uint16(b[4:6]),
		Error:     binary.BigEndian.Uint16(b[6:8]),
		Type:      Type(b[8]) << 8,
		ID:        binary.BigEndian.Uint16(b[10:12]),
	}
	contentLen := int(binary.BigEndian.Uint16(b[0:2]))
	headerLen := BaseHeaderLen
	if b[9]&FlagExtended != 0 {
		if len(b) < ExtendedHeaderLen {
			return Header{}, 0, 0, ErrIncompleteFrame
		}
		contentLen |= int(binary.BigEndian.Uint16(b[12:14])) << 16
		headerLen = ExtendedHeaderLen
	}
	return h, contentLen, headerLen, nil
}
