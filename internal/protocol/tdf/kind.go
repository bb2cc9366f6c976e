package tdf

import "fmt"

// Kind is the wire type code carried in the fourth header byte of every Tdf.
//
// Some codec snapshots leave 0x8 unassigned and reject it as an unknown kind.
// This package reads 0x8 as Pair, matching the encoders that emit it; codes
// above 0xA are rejected.
type Kind uint8

const (
	KindVarInt  Kind = 0x0
	KindString  Kind = 0x1
	KindBlob    Kind = 0x2
	KindStruct  Kind = 0x3
	KindList    Kind = 0x4
	KindMap     Kind = 0x5
	KindUnion   Kind = 0x6
	KindIntList Kind = 0x7
	KindPair    Kind = 0x8
	KindTriple  Kind = 0x9
	KindFloat   Kind = 0xA

	kindNone Kind = 0xFF
)

// Valid reports whether k is a known wire kind.
func (k Kind) Valid() bool {
	return k <= KindFloat
}

func (k Kind) String() string {
	switch k {
	case KindVarInt:
		return "VarInt"
	case KindString:
		return "String"
	case KindBlob:
		return "Blob"
	case KindStruct:
		return "Struct"
	case KindList:
		return "List"
	case KindMap:
		return "Map"
	case KindUnion:
		return "Union"
	case KindIntList:
		return "IntList"
	case KindPair:
		return "Pair"
	case KindTriple:
		return "Triple"
	case KindFloat:
		return "Float"
	default:
		return fmt.Sprintf("Kind(%#x)", uint8(k))
	}
}
