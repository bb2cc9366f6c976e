// Package varint implements the Blaze variable-length unsigned integer.
//
// The first byte carries 6 payload bits and a continuation bit (0x80); every
// following byte carries 7 payload bits and its own continuation bit. This is
// not protobuf varint: the 6-bit head shifts every later group by 6, 13, 20...
package varint

import "errors"

// MaxLen is the longest encoding of a uint64 (6 + 9*7 >= 64 bits).
const MaxLen = 10

const (
	headLimit = 0x40 // values below this fit in the first byte
	tailLimit = 0x80 // values below this fit in a trailing byte
	more      = 0x80
)

var ErrMalformed = errors.New("varint: malformed varint")

// Append appends the encoding of v to dst.
func Append(dst []byte, v uint64) []byte {
	if v < headLimit {
		return append(dst, byte(v))
	}
	dst = append(dst, byte(v&0x3F)|more)
	shift := v >> 6
	for shift >= tailLimit {
		dst = append(dst, byte(shift&0x7F)|more)
		shift >>= 7
	}
	return append(dst, byte(shift))
}

// Encode returns the encoding of v.
func Encode(v uint64) []byte {
	return Append(make([]byte, 0, Size(v)), v)
}

// Size returns the number of bytes Append writes for v.
func Size(v uint64) int {
	if v < headLimit {
		return 1
	}
	n := 2
	for shift := v >> 6; shift >= tailLimit; shift >>= 7 {
		n++
	}
	return n
}

// Decode reads one varint from the front of b and returns the value and the
// number of bytes consumed.
func Decode(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, ErrMalformed
	}
	b0 := b[0]
	v := uint64(b0 & 0x3F)
	if b0 < more {
		return v, 1, nil
	}
	shift := uint(6)
	for i := 1; i < len(b); i++ {
		if i >= MaxLen {
			return 0, 0, ErrMalformed
		}
		c := b[i]
		if i == MaxLen-1 && c&0x7F > 0x03 {
			return 0, 0, ErrMalformed
		}
		v |= uint64(c&0x7F) << shift
		if c < more {
			return v, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, ErrMalformed
}
