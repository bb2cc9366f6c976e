package tdf

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/danmuck/blazectl/internal/protocol/varint"
)

const (
	legacyMarker byte = 0x02
	structEnd    byte = 0x00
)

// AppendTo appends the header and payload of t to dst.
func (t Tdf) AppendTo(dst []byte) ([]byte, error) {
	if t.Value == nil {
		return dst, ErrNilValue
	}
	b := t.Tag.Bytes()
	dst = append(dst, b[0], b[1], b[2], byte(t.Value.Kind()))
	return appendValue(dst, t.Value)
}

// Size returns the number of bytes AppendTo writes for t.
func (t Tdf) Size() int {
	return HeaderLen + valueSize(t.Value)
}

// AppendTo appends every Tdf of f in order.
func (f Fields) AppendTo(dst []byte) ([]byte, error) {
	var err error
	for _, t := range f {
		if dst, err = t.AppendTo(dst); err != nil {
			return dst, err
		}
	}
	return dst, nil
}

// Size returns the encoded size of f.
func (f Fields) Size() int {
	n := 0
	for _, t := range f {
		n += t.Size()
	}
	return n
}

// Marshal encodes f into a new slice of exactly f.Size() bytes.
func (f Fields) Marshal() ([]byte, error) {
	return f.AppendTo(make([]byte, 0, f.Size()))
}

func appendValue(dst []byte, v Value) ([]byte, error) {
	var err error
	switch v := v.(type) {
	case VarInt:
		return varint.Append(dst, uint64(v)), nil
	case String:
		s := string(v)
		if strings.HasSuffix(s, "\x00") {
			dst = varint.Append(dst, uint64(len(s)))
			return append(dst, s...), nil
		}
		dst = varint.Append(dst, uint64(len(s)+1))
		dst = append(dst, s...)
		return append(dst, 0), nil
	case Blob:
		dst = varint.Append(dst, uint64(len(v)))
		return append(dst, v...), nil
	case Struct:
		if v.Legacy {
			dst = append(dst, legacyMarker)
		}
		if dst, err = v.Fields.AppendTo(dst); err != nil {
			return dst, err
		}
		return append(dst, structEnd), nil
	case List:
		dst = append(dst, byte(v.Elem))
		dst = varint.Append(dst, uint64(len(v.Values)))
		for _, e := range v.Values {
			if dst, err = appendElem(dst, v.Elem, e); err != nil {
				return dst, err
			}
		}
		return dst, nil
	case Map:
		dst = append(dst, byte(v.KeyKind), byte(v.ValueKind))
		dst = varint.Append(dst, uint64(len(v.Entries)))
		for _, e := range v.Entries {
			if dst, err = appendElem(dst, v.KeyKind, e.Key); err != nil {
				return dst, err
			}
			if dst, err = appendElem(dst, v.ValueKind, e.Value); err != nil {
				return dst, err
			}
		}
		return dst, nil
	case Union:
		dst = append(dst, v.Selector)
		if v.Selector == UnionUnset {
			return dst, nil
		}
		if v.Value == nil {
			return dst, ErrInvalidUnion
		}
		return v.Value.AppendTo(dst)
	case IntList:
		dst = varint.Append(dst, uint64(len(v)))
		for _, n := range v {
			dst = varint.Append(dst, n)
		}
		return dst, nil
	case Pair:
		dst = varint.Append(dst, v.A)
		return varint.Append(dst, v.B), nil
	case Triple:
		dst = varint.Append(dst, v.A)
		dst = varint.Append(dst, v.B)
		return varint.Append(dst, v.C), nil
	case Float:
		return binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(v))), nil
	case nil:
		return dst, ErrNilValue
	default:
		return dst, ErrUnknownKind
	}
}

func appendElem(dst []byte, want Kind, v Value) ([]byte, error) {
	if v == nil {
		return dst, ErrNilValue
	}
	if v.Kind() != want {
		return dst, ErrHeterogeneousList
	}
	return appendValue(dst, v)
}

func valueSize(v Value) int {
	switch v := v.(type) {
	case VarInt:
		return varint.Size(uint64(v))
	case String:
		n := len(v)
		if !strings.HasSuffix(string(v), "\x00") {
			n++
		}
		return varint.Size(uint64(n)) + n
	case Blob:
		return varint.Size(uint64(len(v))) + len(v)
	case Struct:
		n := v.Fields.Size() + 1
		if v.Legacy {
			n++
		}
		return n
	case List:
		n := 1 + varint.Size(uint64(len(v.Values)))
		for _, e := range v.Values {
			n += valueSize(e)
		}
		return n
	case Map:
		n := 2 + varint.Size(uint64(len(v.Entries)))
		for _, e := range v.Entries {
			n += valueSize(e.Key) + valueSize(e.Value)
		}
		return n
	case Union:
		if v.Selector == UnionUnset || v.Value == nil {
			return 1
		}
		return 1 + v.Value.Size()
	case IntList:
		n := varint.Size(uint64(len(v)))
		for _, x := range v {
			n += varint.Size(x)
		}
		return n
	case Pair:
		return varint.Size(v.A) + varint.Size(v.B)
	case Triple:
		return varint.Size(v.A) + varint.Size(v.B) + varint.Size(v.C)
	case Float:
		return 4
	default:
		return 0
	}
}
