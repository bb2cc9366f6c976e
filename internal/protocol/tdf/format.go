package tdf

import (
	"fmt"
	"io"
	"strings"
)

// Format writes an indented dump of f to w, one Tdf per line.
func Format(w io.Writer, f Fields) error {
	p := printer{w: w}
	for _, t := range f {
		p.tdf(t, 0)
	}
	return p.err
}

func (f Fields) String() string {
	var sb strings.Builder
	_ = Format(&sb, f)
	return sb.String()
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(depth int, format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, "%s"+format+"\n", append([]any{strings.Repeat("  ", depth)}, args...)...)
}

func (p *printer) tdf(t Tdf, depth int) {
	prefix := fmt.Sprintf("%s %s", t.Label(), t.Kind())
	p.value(prefix, t.Value, depth)
}

func (p *printer) value(prefix string, v Value, depth int) {
	switch v := v.(type) {
	case Struct:
		if v.Legacy {
			prefix += " legacy"
		}
		p.printf(depth, "%s {", prefix)
		for _, c := range v.Fields {
			p.tdf(c, depth+1)
		}
		p.printf(depth, "}")
	case List:
		p.printf(depth, "%s<%s> [%d]", prefix, v.Elem, len(v.Values))
		for i, e := range v.Values {
			p.value(fmt.Sprintf("[%d]", i), e, depth+1)
		}
	case Map:
		p.printf(depth, "%s<%s,%s> [%d]", prefix, v.KeyKind, v.ValueKind, len(v.Entries))
		for _, e := range v.Entries {
			p.value(fmt.Sprintf("%s =>", scalar(e.Key)), e.Value, depth+1)
		}
	case Union:
		if !v.IsSet() || v.Value == nil {
			p.printf(depth, "%s unset", prefix)
			return
		}
		p.printf(depth, "%s selector=%#x", prefix, v.Selector)
		p.tdf(*v.Value, depth+1)
	default:
		p.printf(depth, "%s %s", prefix, scalar(v))
	}
}

func scalar(v Value) string {
	switch v := v.(type) {
	case VarInt:
		return fmt.Sprintf("%d", uint64(v))
	case String:
		return fmt.Sprintf("%q", string(v))
	case Blob:
		return fmt.Sprintf("% x", []byte(v))
	case IntList:
		return fmt.Sprintf("%v", []uint64(v))
	case Pair:
		return fmt.Sprintf("(%d, %d)", v.A, v.B)
	case Triple:
		return fmt.Sprintf("(%d, %d, %d)", v.A, v.B, v.C)
	case Float:
		return fmt.Sprintf("%g", float32(v))
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("<%s>", v.Kind())
	}
}
