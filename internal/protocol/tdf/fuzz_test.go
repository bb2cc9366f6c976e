package tdf

import "testing"

func FuzzReadFields(f *testing.F) {
	seed, _ := Fields{
		NewStruct("INFO", NewString("DSNM", "Alice"), NewVarInt("PID", 7)),
		NewUnion("ADDR", 0x00, NewVarInt("IP", 1)),
		NewUnset("XADR"),
		NewMap("ATTR", KindString, KindVarInt, MapEntry{Key: String("k"), Value: VarInt(1)}),
		NewFloat("PCT", 0.25),
	}.Marshal()
	f.Add(seed)
	f.Add([]byte{})
	f.Add([]byte{0x00, 0x00, 0x00, 0x04, 0x00, 0xFF, 0xFF})

	f.Fuzz(func(t *testing.T, data []byte) {
		fields, err := ReadFieldsLimits(data, Limits{MaxDepth: 16, MaxCollectionCount: 1024})
		if err != nil {
			return
		}
		enc, err := fields.Marshal()
		if err != nil {
			t.Fatalf("re-encode of decoded fields failed: %v", err)
		}
		again, err := ReadFields(enc)
		if err != nil {
			t.Fatalf("decode of re-encoded fields failed: %v", err)
		}
		if len(again) != len(fields) {
			t.Fatalf("field count changed: %d -> %d", len(fields), len(again))
		}
	})
}
