package tdf

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/danmuck/blazectl/internal/protocol/label"
	"github.com/danmuck/blazectl/internal/protocol/varint"
)

// Limits bounds what a decoder will allocate for untrusted input.
type Limits struct {
	// MaxDepth is the deepest nesting of Struct, List, Map and Union payloads.
	MaxDepth int
	// MaxCollectionCount caps element counts of List, Map and IntList.
	MaxCollectionCount int
}

func DefaultLimits() Limits {
	return Limits{
		MaxDepth:           64,
		MaxCollectionCount: 100_000,
	}
}

// Read decodes one Tdf from the front of b and returns it with the number of
// bytes consumed.
func Read(b []byte) (Tdf, int, error) {
	r := reader{buf: b, limits: DefaultLimits()}
	t, err := r.readTdf()
	if err != nil {
		return Tdf{}, 0, err
	}
	return t, r.pos, nil
}

// ReadFields decodes a whole content list. b must hold exactly a sequence of
// Tdfs with nothing after the last one.
func ReadFields(b []byte) (Fields, error) {
	return ReadFieldsLimits(b, DefaultLimits())
}

// ReadFieldsLimits is ReadFields with explicit limits.
func ReadFieldsLimits(b []byte, limits Limits) (Fields, error) {
	r := reader{buf: b, limits: limits}
	fields := make(Fields, 0, 8)
	for r.pos < len(r.buf) {
		t, err := r.readTdf()
		if err != nil {
			return nil, err
		}
		fields = append(fields, t)
	}
	return fields, nil
}

type reader struct {
	buf    []byte
	pos    int
	depth  int
	limits Limits

	cur  string
	last string
}

func (r *reader) fail(err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	return &DecodeError{Label: r.cur, Offset: r.pos, Last: r.last, Err: err}
}

func (r *reader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *reader) readTdf() (Tdf, error) {
	prev := r.cur
	if r.remaining() < HeaderLen {
		r.cur = ""
		return Tdf{}, r.fail(ErrTruncated)
	}
	tag := label.FromBytes(r.buf[r.pos : r.pos+3])
	kind := Kind(r.buf[r.pos+3])
	r.cur = tag.String()
	r.pos += HeaderLen

	v, err := r.readValue(kind)
	if err != nil {
		return Tdf{}, r.fail(err)
	}
	r.last = r.cur
	r.cur = prev
	return Tdf{Tag: tag, Value: v}, nil
}

func (r *reader) readValue(kind Kind) (Value, error) {
	switch kind {
	case KindVarInt:
		v, err := r.varint()
		return VarInt(v), err
	case KindString:
		b, err := r.lenBytes()
		if err != nil {
			return nil, err
		}
		if n := len(b); n > 0 && b[n-1] == 0 {
			b = b[:n-1]
		}
		return String(b), nil
	case KindBlob:
		b, err := r.lenBytes()
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(b))
		copy(out, b)
		return Blob(out), nil
	case KindStruct:
		return r.readStruct()
	case KindList:
		return r.readList()
	case KindMap:
		return r.readMap()
	case KindUnion:
		return r.readUnion()
	case KindIntList:
		n, err := r.count()
		if err != nil {
			return nil, err
		}
		out := make(IntList, n)
		for i := range out {
			if out[i], err = r.varint(); err != nil {
				return nil, err
			}
		}
		return out, nil
	case KindPair:
		a, err := r.varint()
		if err != nil {
			return nil, err
		}
		b, err := r.varint()
		return Pair{A: a, B: b}, err
	case KindTriple:
		a, err := r.varint()
		if err != nil {
			return nil, err
		}
		b, err := r.varint()
		if err != nil {
			return nil, err
		}
		c, err := r.varint()
		return Triple{A: a, B: b, C: c}, err
	case KindFloat:
		if r.remaining() < 4 {
			return nil, ErrTruncated
		}
		v := binary.BigEndian.Uint32(r.buf[r.pos:])
		r.pos += 4
		return Float(math.Float32frombits(v)), nil
	default:
		return nil, ErrUnknownKind
	}
}

func (r *reader) enter() error {
	r.depth++
	if r.depth > r.limits.MaxDepth {
		return ErrMaxDepthExceeded
	}
	return nil
}

func (r *reader) leave() {
	r.depth--
}

func (r *reader) readStruct() (Value, error) {
	if err := r.enter(); err != nil {
		return nil, err
	}
	defer r.leave()

	// A leading 0x02 is taken as the legacy marker. A first child whose packed
	// label also starts with 0x02 (a space followed by A-O) is ambiguous and
	// reads as legacy.
	var s Struct
	if r.remaining() > 0 && r.buf[r.pos] == legacyMarker {
		s.Legacy = true
		r.pos++
	}
	for {
		if r.remaining() == 0 {
			return nil, ErrTruncated
		}
		if r.buf[r.pos] == structEnd {
			r.pos++
			return s, nil
		}
		t, err := r.readTdf()
		if err != nil {
			return nil, err
		}
		s.Fields = append(s.Fields, t)
	}
}

func (r *reader) readList() (Value, error) {
	if err := r.enter(); err != nil {
		return nil, err
	}
	defer r.leave()

	elem, err := r.kind()
	if err != nil {
		return nil, err
	}
	n, err := r.count()
	if err != nil {
		return nil, err
	}
	l := List{Elem: elem, Values: make([]Value, 0, n)}
	for i := 0; i < n; i++ {
		v, err := r.readValue(elem)
		if err != nil {
			return nil, err
		}
		l.Values = append(l.Values, v)
	}
	return l, nil
}

func (r *reader) readMap() (Value, error) {
	if err := r.enter(); err != nil {
		return nil, err
	}
	defer r.leave()

	keyKind, err := r.kind()
	if err != nil {
		return nil, err
	}
	valueKind, err := r.kind()
	if err != nil {
		return nil, err
	}
	n, err := r.count()
	if err != nil {
		return nil, err
	}
	m := Map{KeyKind: keyKind, ValueKind: valueKind, Entries: make([]MapEntry, 0, n)}
	for i := 0; i < n; i++ {
		k, err := r.readValue(keyKind)
		if err != nil {
			return nil, err
		}
		v, err := r.readValue(valueKind)
		if err != nil {
			return nil, err
		}
		m.Entries = append(m.Entries, MapEntry{Key: k, Value: v})
	}
	return m, nil
}

func (r *reader) readUnion() (Value, error) {
	if err := r.enter(); err != nil {
		return nil, err
	}
	defer r.leave()

	if r.remaining() == 0 {
		return nil, ErrTruncated
	}
	sel := r.buf[r.pos]
	r.pos++
	if sel == UnionUnset {
		return Union{Selector: sel}, nil
	}
	t, err := r.readTdf()
	if err != nil {
		return nil, err
	}
	return Union{Selector: sel, Value: &t}, nil
}

func (r *reader) kind() (Kind, error) {
	if r.remaining() == 0 {
		return 0, ErrTruncated
	}
	k := Kind(r.buf[r.pos])
	if !k.Valid() {
		return 0, ErrUnknownKind
	}
	r.pos++
	return k, nil
}

func (r *reader) varint() (uint64, error) {
	v, n, err := varint.Decode(r.buf[r.pos:])
	if err != nil {
		return 0, err
	}
	r.pos += n
	return v, nil
}

// count reads a collection count. Every element takes at least one byte, so a
// count above the remaining input is rejected before allocating.
func (r *reader) count() (int, error) {
	n, err := r.varint()
	if err != nil {
		return 0, err
	}
	if n > uint64(r.limits.MaxCollectionCount) {
		return 0, ErrCollectionTooLarge
	}
	if n > uint64(r.remaining()) {
		return 0, ErrTruncated
	}
	return int(n), nil
}

// lenBytes returns a view of the next length-prefixed run of bytes.
func (r *reader) lenBytes() ([]byte, error) {
	n, err := r.varint()
	if err != nil {
		return nil, err
	}
	if n > uint64(r.remaining()) {
		return nil, ErrTruncated
	}
	b := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}
