package components

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/danmuck/blazectl/internal/protocol/packet"
	"github.com/danmuck/blazectl/internal/protocol/tdf"
	"github.com/danmuck/blazectl/internal/server"
)

// AddrSelectorIP selects the VALU struct in the ADDR union.
const AddrSelectorIP byte = 0x00

var (
	ErrRedirectorHostRequired = errors.New("components: redirector host required")
	ErrRedirectorInvalidIP    = errors.New("components: redirector ip must be an ipv4 address")
	ErrRedirectorPortRequired = errors.New("components: redirector port required")
)

// RedirectorConfig names the main server handed to connecting clients.
type RedirectorConfig struct {
	Host   string
	IP     string
	Port   uint16
	Secure bool
}

func DefaultRedirectorConfig() RedirectorConfig {
	return RedirectorConfig{
		Host: "127.0.0.1",
		IP:   "127.0.0.1",
		Port: 10041,
	}
}

// Instance is the server a client should connect to.
type Instance struct {
	Host   string
	IP     uint32
	Port   uint16
	Secure bool
}

// ParseIPv4 converts dotted IPv4 text to its big-endian integer form.
func ParseIPv4(s string) (uint32, error) {
	ip := net.ParseIP(strings.TrimSpace(s)).To4()
	if ip == nil {
		return 0, fmt.Errorf("%w: %q", ErrRedirectorInvalidIP, s)
	}
	return binary.BigEndian.Uint32(ip), nil
}

// FormatIPv4 is the inverse of ParseIPv4.
func FormatIPv4(v uint32) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return net.IP(b[:]).String()
}

func (c RedirectorConfig) Instance() (Instance, error) {
	host := strings.TrimSpace(c.Host)
	if host == "" {
		return Instance{}, ErrRedirectorHostRequired
	}
	ip, err := ParseIPv4(c.IP)
	if err != nil {
		return Instance{}, err
	}
	if c.Port == 0 {
		return Instance{}, ErrRedirectorPortRequired
	}
	return Instance{Host: host, IP: ip, Port: c.Port, Secure: c.Secure}, nil
}

// Fields renders the getServerInstance reply body.
func (i Instance) Fields() tdf.Fields {
	var secure uint64
	if i.Secure {
		secure = 1
	}
	return tdf.Fields{
		tdf.NewUnion("ADDR", AddrSelectorIP, tdf.NewStruct("VALU",
			tdf.NewString("HOST", i.Host),
			tdf.NewVarInt("IP", uint64(i.IP)),
			tdf.NewVarInt("PORT", uint64(i.Port)),
		)),
		tdf.NewVarInt("SECU", secure),
		tdf.NewVarInt("XDNS", 0),
	}
}

// ParseInstance reads a getServerInstance reply body.
func ParseInstance(body tdf.Fields) (Instance, error) {
	addr, err := body.Optional("ADDR")
	if err != nil {
		return Instance{}, err
	}
	if !addr.IsSet() || addr.Value == nil || addr.Selector != AddrSelectorIP {
		return Instance{}, fmt.Errorf("components: ADDR selector %#x has no ip address", addr.Selector)
	}
	valu, ok := addr.Value.Value.(tdf.Struct)
	if !ok {
		return Instance{}, &tdf.KindMismatchError{Label: addr.Value.Label(), Want: tdf.KindStruct, Got: addr.Value.Kind()}
	}
	host, err := valu.Text("HOST")
	if err != nil {
		return Instance{}, err
	}
	ip, err := valu.Number("IP")
	if err != nil {
		return Instance{}, err
	}
	port, err := valu.Number("PORT")
	if err != nil {
		return Instance{}, err
	}
	secure, err := body.Number("SECU")
	if err != nil {
		return Instance{}, err
	}
	return Instance{Host: host, IP: uint32(ip), Port: uint16(port), Secure: secure != 0}, nil
}

// Redirector answers getServerInstance with the configured instance.
type Redirector struct {
	instance Instance
}

func NewRedirector(cfg RedirectorConfig) (*Redirector, error) {
	inst, err := cfg.Instance()
	if err != nil {
		return nil, err
	}
	return &Redirector{instance: inst}, nil
}

func (r *Redirector) Register(router *server.Router) {
	router.HandleNamed(RedirectorComponent, CmdGetServerInstance, "redirector.getServerInstance", r.getServerInstance)
}

func (r *Redirector) getServerInstance(_ context.Context, c *server.Conn, req *packet.Buffered) error {
	body, err := req.Body()
	if err != nil {
		return err
	}
	ev := c.Logger().Info()
	if sdk, err := body.Text("BSDK"); err == nil {
		ev = ev.Str("sdk", sdk)
	}
	if client, err := body.Text("CLNT"); err == nil {
		ev = ev.Str("client", client)
	}
	ev.Str("host", r.instance.Host).Uint16("port", r.instance.Port).Msg("components.redirector getServerInstance")
	return c.Reply(req.Head(), r.instance.Fields()...)
}
