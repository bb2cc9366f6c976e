package tdf

// UnionUnset is the selector of a union that carries no value.
const UnionUnset byte = 0x7F

// Value is the payload of a Tdf. The set of implementations is closed: every
// wire kind has exactly one Go type below, and the encode and decode switches
// cover all of them.
type Value interface {
	Kind() Kind
	sealed()
}

// VarInt is an unsigned integer payload.
type VarInt uint64

// String is a NUL-terminated text payload. The terminator is not part of the
// Go value.
type String string

// Blob is a length-prefixed byte payload.
type Blob []byte

// Struct is an ordered group of child Tdfs. Legacy structs are written with a
// leading 0x02 marker byte.
type Struct struct {
	Fields
	Legacy bool
}

// List is a homogeneous sequence of bare payloads of kind Elem.
type List struct {
	Elem   Kind
	Values []Value
}

// MapEntry is one key/value pair of a Map.
type MapEntry struct {
	Key   Value
	Value Value
}

// Map is an ordered sequence of key/value pairs. Keys and values are typed
// independently.
type Map struct {
	KeyKind   Kind
	ValueKind Kind
	Entries   []MapEntry
}

// Union holds a selector and, unless the selector is UnionUnset, one nested
// Tdf.
type Union struct {
	Selector byte
	Value    *Tdf
}

// IsSet reports whether the union carries a value.
func (u Union) IsSet() bool {
	return u.Selector != UnionUnset
}

// IntList is a count-prefixed sequence of varints.
type IntList []uint64

// Pair is two varints, used for object types (component, type).
type Pair struct {
	A, B uint64
}

// Triple is three varints, used for object ids (component, type, id).
type Triple struct {
	A, B, C uint64
}

// Float is an IEEE-754 single precision payload.
type Float float32

func (VarInt) Kind() Kind  { return KindVarInt }
func (String) Kind() Kind  { return KindString }
func (Blob) Kind() Kind    { return KindBlob }
func (Struct) Kind() Kind  { return KindStruct }
func (List) Kind() Kind    { return KindList }
func (Map) Kind() Kind     { return KindMap }
func (Union) Kind() Kind   { return KindUnion }
func (IntList) Kind() Kind { return KindIntList }
func (Pair) Kind() Kind    { return KindPair }
func (Triple) Kind() Kind  { return KindTriple }
func (Float) Kind() Kind   { return KindFloat }

func (VarInt) sealed()  {}
func (String) sealed()  {}
func (Blob) sealed()    {}
func (Struct) sealed()  {}
func (List) sealed()    {}
func (Map) sealed()     {}
func (Union) sealed()   {}
func (IntList) sealed() {}
func (Pair) sealed()    {}
func (Triple) sealed()  {}
func (Float) sealed()   {}
