package packet

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/blazectl/internal/protocol/tdf"
)

func frameBytes(t *testing.T, h Header, content tdf.Fields) []byte {
	t.Helper()
	body, err := content.Marshal()
	if err != nil {
		t.Fatalf("marshal content: %v", err)
	}
	out := AppendHeader(make([]byte, 0, BufferSize(len(body))), h, len(body))
	return append(out, body...)
}

func TestHeaderWireLayout(t *testing.T) {
	h := Header{Component: 0x0005, Command: 0x0001, Error: 0x0203, Type: Response, ID: 0x0A0B}
	got := AppendHeader(nil, h, 0x0102)
	want := []byte{0x01, 0x02, 0x00, 0x05, 0x00, 0x01, 0x02, 0x03, 0x10, 0x00, 0x0A, 0x0B}
	if !bytes.Equal(got, want) {
		t.Fatalf("header = % x, want % x", got, want)
	}

	parsed, contentLen, headerLen, err := ParseHeader(got)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != h || contentLen != 0x0102 || headerLen != BaseHeaderLen {
		t.Fatalf("parsed %+v len=%d hdr=%d", parsed, contentLen, headerLen)
	}
}

func TestExtendedHeader(t *testing.T) {
	n := 0x12345
	got := AppendHeader(nil, Header{Type: Notification}, n)
	if len(got) != ExtendedHeaderLen {
		t.Fatalf("extended header len = %d", len(got))
	}
	if got[9] != FlagExtended {
		t.Fatalf("flag byte = %#x", got[9])
	}
	_, contentLen, headerLen, err := ParseHeader(got)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if contentLen != n || headerLen != ExtendedHeaderLen {
		t.Fatalf("content=%#x header=%d", contentLen, headerLen)
	}
	if _, _, _, err := ParseHeader(got[:13]); !errors.Is(err, ErrIncompleteFrame) {
		t.Fatalf("expected ErrIncompleteFrame for cut extension, got %v", err)
	}
}

func TestBufferSize(t *testing.T) {
	cases := map[int]int{
		0:       12,
		100:     112,
		0xFFFF:  12 + 0xFFFF,
		0x10000: 14 + 0x10000,
	}
	for n, want := range cases {
		if got := BufferSize(n); got != want {
			t.Fatalf("BufferSize(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestDecodeFrameRoundTrip(t *testing.T) {
	h := Header{Component: 9, Command: 2, Type: Request, ID: 77}
	content := tdf.Fields{tdf.NewString("DSNM", "Alice"), tdf.NewVarInt("PID", 7)}
	frame := frameBytes(t, h, content)
	frame = append(frame, 0xEE) // start of the next frame

	p, n, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(frame)-1 {
		t.Fatalf("consumed %d, want %d", n, len(frame)-1)
	}
	if p.Head() != h {
		t.Fatalf("header = %+v", p.Head())
	}
	body, err := p.Body()
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	if name, _ := body.Text("DSNM"); name != "Alice" {
		t.Fatalf("DSNM = %q", name)
	}
	raw, err := p.Raw()
	if err != nil || len(raw) != n {
		t.Fatalf("raw len=%d err=%v", len(raw), err)
	}
	if err := p.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
}

func TestDecodeFrameLargeContent(t *testing.T) {
	blob := bytes.Repeat([]byte{0xAB}, 0x10000)
	frame := frameBytes(t, Header{Type: Response, ID: 1}, tdf.Fields{tdf.NewBlob("DATA", blob)})
	if frame[9] != FlagExtended {
		t.Fatalf("expected extended flag")
	}

	p, n, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(frame) || p.ContentLen() != len(frame)-ExtendedHeaderLen {
		t.Fatalf("n=%d content=%d", n, p.ContentLen())
	}
	body, err := p.Body()
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	got, _ := body.Bytes("DATA")
	if !bytes.Equal(got, blob) {
		t.Fatalf("blob mismatch (%d bytes)", len(got))
	}
}

func TestDecodeFrameIncomplete(t *testing.T) {
	frame := frameBytes(t, Header{}, tdf.Fields{tdf.NewVarInt("A", 1)})
	for _, cut := range []int{0, 5, BaseHeaderLen, len(frame) - 1} {
		if _, _, err := DecodeFrame(frame[:cut]); !errors.Is(err, ErrIncompleteFrame) {
			t.Fatalf("cut=%d: expected ErrIncompleteFrame, got %v", cut, err)
		}
	}
}

func TestDecodeFrameTooLarge(t *testing.T) {
	hdr := AppendHeader(nil, Header{}, 1024)
	_, _, err := DecodeFrameLimits(hdr, Limits{MaxContentBytes: 512})
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestReleaseOnce(t *testing.T) {
	frame := frameBytes(t, Header{ID: 3}, tdf.Fields{tdf.NewString("NAME", "x")})
	calls := 0
	p, err := Borrow(frame, func() { calls++ })
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	body, err := p.Body()
	if err != nil {
		t.Fatalf("body: %v", err)
	}

	if err := p.Release(); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := p.Release(); !errors.Is(err, ErrBufferReleased) {
		t.Fatalf("second release: expected ErrBufferReleased, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("release callback ran %d times", calls)
	}
	if _, err := p.Body(); !errors.Is(err, ErrBufferReleased) {
		t.Fatalf("body after release: %v", err)
	}
	if _, err := p.Raw(); !errors.Is(err, ErrBufferReleased) {
		t.Fatalf("raw after release: %v", err)
	}
	if p.Head().ID != 3 {
		t.Fatalf("header lost after release")
	}

	// Parsed content does not alias the frame.
	for i := range frame {
		frame[i] = 0
	}
	if name, _ := body.Text("NAME"); name != "x" {
		t.Fatalf("content aliased released buffer: %q", name)
	}
}

func TestReplyHeaders(t *testing.T) {
	req := Header{Component: 5, Command: 1, Type: Request, ID: 42}
	if r := Reply(req).Header; r.Type != Response || r.ID != 42 || r.Component != 5 || r.Error != 0 {
		t.Fatalf("reply header = %+v", r)
	}
	if r := ReplyError(req, ErrCodeCommandNotFound).Header; r.Type != ErrorReply || r.Error != ErrCodeCommandNotFound || r.ID != 42 {
		t.Fatalf("error reply header = %+v", r)
	}
	if n := NewNotification(9, 3).Header; n.Type != Notification || n.ID != 0 {
		t.Fatalf("notification header = %+v", n)
	}
}
