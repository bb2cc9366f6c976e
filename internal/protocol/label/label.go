// Package label packs 4-character Tdf labels into their 3-byte wire form.
//
// Each character is reduced to a 6-bit code: bit 5 holds the character's 0x40
// bit and bits 0-4 hold its low five bits. Four codes fill 24 bits. The label
// alphabet is therefore 0x20-0x5F (space, digits, punctuation, upper case);
// lower case input is folded to upper case before packing.
package label

import "strings"

// Len is the number of characters in a label.
const Len = 4

const pad = ' '

// Tag is a packed label. The three packed bytes occupy the top 24 bits; the
// low byte is always zero.
type Tag uint32

// Pad returns the canonical 4-character form of s: upper case, truncated to
// Len characters and right-padded with spaces.
func Pad(s string) string {
	s = strings.ToUpper(s)
	if len(s) > Len {
		s = s[:Len]
	}
	for len(s) < Len {
		s += string(pad)
	}
	return s
}

// PackBytes returns the 3-byte wire form of s.
func PackBytes(s string) [3]byte {
	p := Pad(s)
	b0, b1, b2, b3 := p[0], p[1], p[2], p[3]
	return [3]byte{
		((b0 & 0x40) << 1) | ((b0 & 0x10) << 2) | ((b0 & 0x0F) << 2) | ((b1 & 0x40) >> 5) | ((b1 & 0x10) >> 4),
		((b1 & 0x0F) << 4) | ((b2 & 0x40) >> 3) | ((b2 & 0x10) >> 2) | ((b2 & 0x0C) >> 2),
		((b2 & 0x03) << 6) | ((b3 & 0x40) >> 1) | (b3 & 0x1F),
	}
}

// Pack returns the packed tag for s.
func Pack(s string) Tag {
	b := PackBytes(s)
	return FromBytes(b[:])
}

// FromBytes builds a Tag from the first three bytes of b.
func FromBytes(b []byte) Tag {
	_ = b[2]
	return Tag(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8)
}

// Bytes returns the 3-byte wire form of t.
func (t Tag) Bytes() [3]byte {
	return [3]byte{byte(t >> 24), byte(t >> 16), byte(t >> 8)}
}

// Unpack returns the 4-character label held by t.
func Unpack(t Tag) string {
	w := t.Bytes()
	t0, t1, t2 := w[0], w[1], w[2]
	codes := [Len]byte{
		((t0 & 0x80) >> 1) | ((t0 & 0x40) >> 2) | ((t0 & 0x3C) >> 2),
		((t0 & 0x02) << 5) | ((t0 & 0x01) << 4) | ((t1 & 0xF0) >> 4),
		((t1 & 0x08) << 3) | ((t1 & 0x04) << 2) | ((t1 & 0x03) << 2) | ((t2 & 0xC0) >> 6),
		((t2 & 0x20) << 1) | (t2 & 0x1F),
	}
	var out [Len]byte
	for i, c := range codes {
		out[i] = restore(c)
	}
	return string(out[:])
}

// restore maps a code with the 0x40 bit in place back to its character. The
// 0x20 bit is implied whenever 0x40 is clear; a zero code is a space.
func restore(c byte) byte {
	if c == 0 {
		return pad
	}
	if c&0x40 == 0 {
		return c | 0x20
	}
	return c
}

func (t Tag) String() string {
	return Unpack(t)
}
