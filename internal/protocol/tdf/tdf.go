// Package tdf implements the Blaze tagged data format.
//
// A Tdf is a packed 3-byte label, a kind byte, and a kind-specific payload.
// Every packet body is an ordered list of Tdfs (Fields). Struct, List, Map and
// Union payloads nest further Tdfs or bare payloads.
package tdf

import "github.com/danmuck/blazectl/internal/protocol/label"

// HeaderLen is the size of a Tdf header: 3 label bytes and 1 kind byte.
const HeaderLen = 4

// Tdf is one labelled value.
type Tdf struct {
	Tag   label.Tag
	Value Value
}

// New returns a Tdf labelled name holding v.
func New(name string, v Value) Tdf {
	return Tdf{Tag: label.Pack(name), Value: v}
}

// Label returns the unpacked 4-character label.
func (t Tdf) Label() string {
	return t.Tag.String()
}

// Kind returns the kind of the held value, or kindNone if it holds nothing.
func (t Tdf) Kind() Kind {
	if t.Value == nil {
		return kindNone
	}
	return t.Value.Kind()
}

// NewVarInt creates a varint Tdf.
func NewVarInt(name string, v uint64) Tdf {
	return New(name, VarInt(v))
}

// NewString creates a string Tdf.
func NewString(name, v string) Tdf {
	return New(name, String(v))
}

// NewBlob creates a blob Tdf. The bytes are copied.
func NewBlob(name string, v []byte) Tdf {
	buf := make([]byte, len(v))
	copy(buf, v)
	return New(name, Blob(buf))
}

// NewStruct creates a struct Tdf holding fields in order.
func NewStruct(name string, fields ...Tdf) Tdf {
	return New(name, Struct{Fields: fields})
}

// NewList creates a list Tdf of elem-kind values.
func NewList(name string, elem Kind, values ...Value) Tdf {
	return New(name, List{Elem: elem, Values: values})
}

// NewMap creates a map Tdf.
func NewMap(name string, keyKind, valueKind Kind, entries ...MapEntry) Tdf {
	return New(name, Map{KeyKind: keyKind, ValueKind: valueKind, Entries: entries})
}

// NewUnion creates a union Tdf with selector and one nested value.
func NewUnion(name string, selector byte, inner Tdf) Tdf {
	return New(name, Union{Selector: selector, Value: &inner})
}

// NewUnset creates a union Tdf with no value.
func NewUnset(name string) Tdf {
	return New(name, Union{Selector: UnionUnset})
}

// NewIntList creates an int list Tdf.
func NewIntList(name string, v ...uint64) Tdf {
	return New(name, IntList(v))
}

// NewPair creates a pair Tdf.
func NewPair(name string, a, b uint64) Tdf {
	return New(name, Pair{A: a, B: b})
}

// NewTriple creates a triple Tdf.
func NewTriple(name string, a, b, c uint64) Tdf {
	return New(name, Triple{A: a, B: b, C: c})
}

// NewFloat creates a float Tdf.
func NewFloat(name string, v float32) Tdf {
	return New(name, Float(v))
}
