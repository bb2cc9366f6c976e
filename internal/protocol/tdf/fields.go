package tdf

import "github.com/danmuck/blazectl/internal/protocol/label"

// Fields is an ordered list of Tdfs: a packet body or the children of a
// Struct. Lookups match on the packed tag, so "PID" and "PID " are the same
// label.
type Fields []Tdf

// Get returns the first Tdf labelled name.
func (f Fields) Get(name string) (Tdf, bool) {
	tag := label.Pack(name)
	for _, t := range f {
		if t.Tag == tag {
			return t, true
		}
	}
	return Tdf{}, false
}

// Has reports whether a Tdf labelled name is present.
func (f Fields) Has(name string) bool {
	_, ok := f.Get(name)
	return ok
}

func (f Fields) lookup(name string, want Kind) (Value, error) {
	t, ok := f.Get(name)
	if !ok {
		return nil, &MissingError{Label: label.Pad(name)}
	}
	if got := t.Kind(); got != want {
		return nil, &KindMismatchError{Label: label.Pad(name), Want: want, Got: got}
	}
	return t.Value, nil
}

// Number returns the varint labelled name.
func (f Fields) Number(name string) (uint64, error) {
	v, err := f.lookup(name, KindVarInt)
	if err != nil {
		return 0, err
	}
	return uint64(v.(VarInt)), nil
}

// Text returns the string labelled name.
func (f Fields) Text(name string) (string, error) {
	v, err := f.lookup(name, KindString)
	if err != nil {
		return "", err
	}
	return string(v.(String)), nil
}

// Bytes returns the blob labelled name.
func (f Fields) Bytes(name string) ([]byte, error) {
	v, err := f.lookup(name, KindBlob)
	if err != nil {
		return nil, err
	}
	return []byte(v.(Blob)), nil
}

// Group returns the struct labelled name.
func (f Fields) Group(name string) (Struct, error) {
	v, err := f.lookup(name, KindStruct)
	if err != nil {
		return Struct{}, err
	}
	return v.(Struct), nil
}

// List returns the list labelled name.
func (f Fields) List(name string) (List, error) {
	v, err := f.lookup(name, KindList)
	if err != nil {
		return List{}, err
	}
	return v.(List), nil
}

// Dict returns the map labelled name.
func (f Fields) Dict(name string) (Map, error) {
	v, err := f.lookup(name, KindMap)
	if err != nil {
		return Map{}, err
	}
	return v.(Map), nil
}

// Optional returns the union labelled name. An unset union is not an error;
// check IsSet.
func (f Fields) Optional(name string) (Union, error) {
	v, err := f.lookup(name, KindUnion)
	if err != nil {
		return Union{}, err
	}
	return v.(Union), nil
}

// Ints returns the int list labelled name.
func (f Fields) Ints(name string) ([]uint64, error) {
	v, err := f.lookup(name, KindIntList)
	if err != nil {
		return nil, err
	}
	return []uint64(v.(IntList)), nil
}

// Pair returns the pair labelled name.
func (f Fields) Pair(name string) (Pair, error) {
	v, err := f.lookup(name, KindPair)
	if err != nil {
		return Pair{}, err
	}
	return v.(Pair), nil
}

// Triple returns the triple labelled name.
func (f Fields) Triple(name string) (Triple, error) {
	v, err := f.lookup(name, KindTriple)
	if err != nil {
		return Triple{}, err
	}
	return v.(Triple), nil
}

// Float returns the float labelled name.
func (f Fields) Float(name string) (float32, error) {
	v, err := f.lookup(name, KindFloat)
	if err != nil {
		return 0, err
	}
	return float32(v.(Float)), nil
}

// Numbers returns the elements of a varint list.
func (l List) Numbers() ([]uint64, error) {
	if l.Elem != KindVarInt {
		return nil, &KindMismatchError{Want: KindVarInt, Got: l.Elem}
	}
	out := make([]uint64, 0, len(l.Values))
	for _, v := range l.Values {
		n, ok := v.(VarInt)
		if !ok {
			return nil, ErrHeterogeneousList
		}
		out = append(out, uint64(n))
	}
	return out, nil
}

// Texts returns the elements of a string list.
func (l List) Texts() ([]string, error) {
	if l.Elem != KindString {
		return nil, &KindMismatchError{Want: KindString, Got: l.Elem}
	}
	out := make([]string, 0, len(l.Values))
	for _, v := range l.Values {
		s, ok := v.(String)
		if !ok {
			return nil, ErrHeterogeneousList
		}
		out = append(out, string(s))
	}
	return out, nil
}

// Groups returns the elements of a struct list.
func (l List) Groups() ([]Struct, error) {
	if l.Elem != KindStruct {
		return nil, &KindMismatchError{Want: KindStruct, Got: l.Elem}
	}
	out := make([]Struct, 0, len(l.Values))
	for _, v := range l.Values {
		s, ok := v.(Struct)
		if !ok {
			return nil, ErrHeterogeneousList
		}
		out = append(out, s)
	}
	return out, nil
}
