package tdf

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/danmuck/blazectl/internal/protocol/label"
)

var equateEmpty = cmpopts.EquateEmpty()

func roundTrip(t *testing.T, in Tdf) Tdf {
	t.Helper()
	enc, err := in.AppendTo(nil)
	if err != nil {
		t.Fatalf("encode %s: %v", in.Label(), err)
	}
	if len(enc) != in.Size() {
		t.Fatalf("encoded %d bytes, Size() = %d", len(enc), in.Size())
	}
	out, n, err := Read(enc)
	if err != nil {
		t.Fatalf("decode %s: %v", in.Label(), err)
	}
	if n != len(enc) {
		t.Fatalf("decode consumed %d of %d bytes", n, len(enc))
	}
	return out
}

func TestRoundTripEveryKind(t *testing.T) {
	inner := NewStruct("VALU",
		NewString("HOST", "gosredirector.ea.com"),
		NewVarInt("PORT", 42127),
	)
	tests := []struct {
		name string
		in   Tdf
	}{
		{"varint", NewVarInt("UID", 1<<40)},
		{"string", NewString("DSNM", "Alice")},
		{"empty_string", NewString("NAME", "")},
		{"blob", NewBlob("DATA", []byte{0x00, 0xFF, 0x10})},
		{"struct", NewStruct("USER", NewVarInt("ID", 1), NewString("NAME", "x"))},
		{"empty_struct", NewStruct("NONE")},
		{"legacy_struct", New("OLD", Struct{Legacy: true, Fields: Fields{NewVarInt("A", 1)}})},
		{"nested_struct", NewStruct("OUTR", NewStruct("MIDL", inner))},
		{"list_varint", NewList("IDS", KindVarInt, VarInt(1), VarInt(64), VarInt(1<<20))},
		{"list_string", NewList("NAMS", KindString, String("a"), String("bc"))},
		{"list_struct", NewList("USRS", KindStruct,
			Struct{Fields: Fields{NewVarInt("ID", 1)}},
			Struct{Fields: Fields{NewVarInt("ID", 2), NewString("TAG", "b")}},
		)},
		{"empty_list", NewList("NONE", KindBlob)},
		{"map", NewMap("ATTR", KindString, KindVarInt,
			MapEntry{Key: String("level"), Value: VarInt(3)},
			MapEntry{Key: String("rank"), Value: VarInt(99)},
		)},
		{"map_struct_values", NewMap("GRPS", KindVarInt, KindStruct,
			MapEntry{Key: VarInt(7), Value: Struct{Fields: Fields{NewString("NAME", "seven")}}},
		)},
		{"union_set", NewUnion("ADDR", 0x00, inner)},
		{"union_unset", NewUnset("ADDR")},
		{"int_list", NewIntList("PIDS", 1, 2, 300)},
		{"pair", NewPair("OTYP", 4, 1)},
		{"triple", NewTriple("OID", 4, 1, 12345)},
		{"float", NewFloat("PCT", 0.75)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := roundTrip(t, tc.in)
			if diff := cmp.Diff(tc.in, out, equateEmpty); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStructPreservesOrder(t *testing.T) {
	in := NewStruct("INFO", NewString("DSNM", "Alice"), NewVarInt("PID", 7))
	out := roundTrip(t, in)

	group, ok := out.Value.(Struct)
	if !ok {
		t.Fatalf("decoded %T, want Struct", out.Value)
	}
	if len(group.Fields) != 2 {
		t.Fatalf("expected 2 children, got %d", len(group.Fields))
	}
	if group.Fields[0].Label() != "DSNM" || group.Fields[0].Kind() != KindString {
		t.Fatalf("first child = %s %s", group.Fields[0].Label(), group.Fields[0].Kind())
	}
	if group.Fields[1].Label() != "PID " || group.Fields[1].Kind() != KindVarInt {
		t.Fatalf("second child = %s %s", group.Fields[1].Label(), group.Fields[1].Kind())
	}
	name, err := group.Text("DSNM")
	if err != nil || name != "Alice" {
		t.Fatalf("DSNM = %q, %v", name, err)
	}
	pid, err := group.Number("PID")
	if err != nil || pid != 7 {
		t.Fatalf("PID = %d, %v", pid, err)
	}
}

func TestStringWireLayout(t *testing.T) {
	enc, err := NewString("DSNM", "Alice").AppendTo(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	tag := label.PackBytes("DSNM")
	want := append(tag[:], byte(KindString), 0x06, 'A', 'l', 'i', 'c', 'e', 0x00)
	if !bytes.Equal(enc, want) {
		t.Fatalf("encoded % x, want % x", enc, want)
	}
}

func TestStringKeepsExistingTerminator(t *testing.T) {
	a, _ := NewString("NAME", "bob").AppendTo(nil)
	b, _ := NewString("NAME", "bob\x00").AppendTo(nil)
	if !bytes.Equal(a, b) {
		t.Fatalf("terminator doubled: % x vs % x", a, b)
	}
}

func TestUnsetUnionIsOneByte(t *testing.T) {
	enc, err := NewUnset("ADDR").AppendTo(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(enc) != HeaderLen+1 || enc[HeaderLen] != UnionUnset {
		t.Fatalf("unset union payload = % x", enc[HeaderLen:])
	}

	// Nothing follows the selector; a decoder that tried to read a nested Tdf
	// would run off the end.
	out, n, err := Read(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(enc) {
		t.Fatalf("consumed %d of %d", n, len(enc))
	}
	u := out.Value.(Union)
	if u.IsSet() || u.Value != nil {
		t.Fatalf("expected unset union, got %+v", u)
	}
}

func TestStructWireLayoutHasTerminator(t *testing.T) {
	enc, err := NewStruct("GRP", NewVarInt("A", 5)).AppendTo(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if enc[len(enc)-1] != 0x00 {
		t.Fatalf("struct not terminated: % x", enc)
	}
	legacy, err := New("GRP", Struct{Legacy: true, Fields: Fields{NewVarInt("A", 5)}}).AppendTo(nil)
	if err != nil {
		t.Fatalf("encode legacy: %v", err)
	}
	if legacy[HeaderLen] != 0x02 || len(legacy) != len(enc)+1 {
		t.Fatalf("legacy marker missing: % x", legacy)
	}
}

func TestFloatIsBigEndian(t *testing.T) {
	enc, err := NewFloat("F", 1.0).AppendTo(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(enc[HeaderLen:], []byte{0x3F, 0x80, 0x00, 0x00}) {
		t.Fatalf("float payload = % x", enc[HeaderLen:])
	}
	inf := roundTrip(t, NewFloat("F", float32(math.Inf(1))))
	if f, _ := (Fields{inf}).Float("F"); !math.IsInf(float64(f), 1) {
		t.Fatalf("expected +Inf, got %v", f)
	}
}

func TestReadFieldsSequence(t *testing.T) {
	in := Fields{
		NewString("BSDK", "3.15.6.0"),
		NewVarInt("CLTP", 0),
		NewUnset("ADDR"),
		NewStruct("INFO", NewVarInt("ID", 9)),
	}
	enc, err := in.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out, err := ReadFields(enc)
	if err != nil {
		t.Fatalf("read fields: %v", err)
	}
	if diff := cmp.Diff(in, out, equateEmpty); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	tag := label.PackBytes("BAD")
	_, _, err := Read(append(tag[:], 0x0B, 0x00))
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %T", err)
	}
	if de.Label != "BAD " || de.Offset != HeaderLen {
		t.Fatalf("unexpected diagnostics: %+v", de)
	}
}

func TestDecodeErrorNamesLastParsedTdf(t *testing.T) {
	in := Fields{NewVarInt("GOOD", 1), NewString("CUT", "truncated")}
	enc, err := in.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	_, err = ReadFields(enc[:len(enc)-3])
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %T", err)
	}
	if de.Label != "CUT " || de.Last != "GOOD" {
		t.Fatalf("unexpected diagnostics: %+v", de)
	}
}

func TestDecodeMalformedVarInt(t *testing.T) {
	tag := label.PackBytes("NUM")
	_, _, err := Read(append(tag[:], byte(KindVarInt), 0x80, 0x80))
	if err == nil || !strings.Contains(err.Error(), "malformed varint") {
		t.Fatalf("expected malformed varint, got %v", err)
	}
}

func TestDecodeUnterminatedStruct(t *testing.T) {
	enc, _ := NewStruct("GRP", NewVarInt("A", 1)).AppendTo(nil)
	_, _, err := Read(enc[:len(enc)-1])
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestDecodeDepthLimit(t *testing.T) {
	v := NewVarInt("LEAF", 1)
	for i := 0; i < 10; i++ {
		v = NewStruct("NEST", v)
	}
	enc, err := v.AppendTo(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, err = ReadFieldsLimits(enc, Limits{MaxDepth: 5, MaxCollectionCount: 10})
	if !errors.Is(err, ErrMaxDepthExceeded) {
		t.Fatalf("expected ErrMaxDepthExceeded, got %v", err)
	}
	if _, err := ReadFields(enc); err != nil {
		t.Fatalf("default limits should accept depth 10: %v", err)
	}
}

func TestDecodeCollectionLimits(t *testing.T) {
	enc, err := NewIntList("IDS", 1, 2, 3, 4).AppendTo(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, err = ReadFieldsLimits(enc, Limits{MaxDepth: 4, MaxCollectionCount: 3})
	if !errors.Is(err, ErrCollectionTooLarge) {
		t.Fatalf("expected ErrCollectionTooLarge, got %v", err)
	}

	// A count far beyond the remaining bytes must fail before allocating.
	tag := label.PackBytes("IDS")
	huge := append(tag[:], byte(KindList), byte(KindVarInt))
	huge = append(huge, 0xBF, 0x7F) // 8191 elements, no payload
	if _, _, err := Read(huge); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestEncodeRejectsHeterogeneousList(t *testing.T) {
	_, err := NewList("MIX", KindVarInt, VarInt(1), String("x")).AppendTo(nil)
	if !errors.Is(err, ErrHeterogeneousList) {
		t.Fatalf("expected ErrHeterogeneousList, got %v", err)
	}
}

func TestEncodeRejectsSelectedUnionWithoutValue(t *testing.T) {
	_, err := New("ADDR", Union{Selector: 0x01}).AppendTo(nil)
	if !errors.Is(err, ErrInvalidUnion) {
		t.Fatalf("expected ErrInvalidUnion, got %v", err)
	}
}

func TestEncodeRejectsNilValue(t *testing.T) {
	_, err := Fields{{Tag: label.Pack("NIL")}}.Marshal()
	if !errors.Is(err, ErrNilValue) {
		t.Fatalf("expected ErrNilValue, got %v", err)
	}
}

func TestKindCodes(t *testing.T) {
	pr := label.PackBytes("PR")
	pair := []byte{pr[0], pr[1], pr[2], byte(KindPair), 0x05, 0x07}
	f, err := ReadFields(pair)
	if err != nil {
		t.Fatalf("read pair: %v", err)
	}
	if got, err := f.Pair("PR"); err != nil || got != (Pair{A: 5, B: 7}) {
		t.Fatalf("pair = %+v, %v", got, err)
	}

	bad := label.PackBytes("BAD")
	unknown := []byte{bad[0], bad[1], bad[2], byte(KindFloat) + 1, 0x00}
	if _, err := ReadFields(unknown); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("kind 0xB err = %v, want ErrUnknownKind", err)
	}
}

func TestStructLegacyMarkerAmbiguity(t *testing.T) {
	// " A" packs to a leading 0x02, the same byte as the legacy marker.
	child := NewVarInt(" A", 5)
	if b := child.Tag.Bytes(); b[0] != legacyMarker {
		t.Fatalf("label packs to % x", b)
	}
	enc, err := NewStruct("GRP", child).AppendTo(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := ReadFields(enc); err == nil {
		t.Fatalf("expected the leading 0x02 to be read as the legacy marker")
	}

	enc, err = NewStruct("GRP", NewVarInt("A", 5)).AppendTo(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f, err := ReadFields(enc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if s, err := f.Group("GRP"); err != nil || s.Legacy {
		t.Fatalf("group = %+v, %v", s, err)
	}
}
