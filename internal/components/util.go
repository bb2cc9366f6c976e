package components

import (
	"context"
	"sort"
	"time"

	"github.com/danmuck/blazectl/internal/protocol/packet"
	"github.com/danmuck/blazectl/internal/protocol/tdf"
	"github.com/danmuck/blazectl/internal/server"
)

// UtilConfig holds the client config groups served by fetchClientConfig,
// keyed by CFID.
type UtilConfig struct {
	ClientConfigs map[string]map[string]string
}

type Util struct {
	cfg UtilConfig
	now func() time.Time
}

func NewUtil(cfg UtilConfig) *Util {
	return &Util{cfg: cfg, now: time.Now}
}

func (u *Util) Register(router *server.Router) {
	router.HandleNamed(UtilComponent, CmdPing, "util.ping", u.ping)
	router.HandleNamed(UtilComponent, CmdFetchClientConfig, "util.fetchClientConfig", u.fetchClientConfig)
}

func (u *Util) ping(_ context.Context, c *server.Conn, req *packet.Buffered) error {
	return c.Reply(req.Head(), tdf.NewVarInt("STIM", uint64(u.now().Unix())))
}

func (u *Util) fetchClientConfig(_ context.Context, c *server.Conn, req *packet.Buffered) error {
	body, err := req.Body()
	if err != nil {
		return err
	}
	id, err := body.Text("CFID")
	if err != nil {
		return err
	}

	group := u.cfg.ClientConfigs[id]
	keys := make([]string, 0, len(group))
	for k := range group {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]tdf.MapEntry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, tdf.MapEntry{Key: tdf.String(k), Value: tdf.String(group[k])})
	}
	c.Logger().Debug().Str("cfid", id).Int("entries", len(entries)).Msg("components.util fetchClientConfig")
	return c.Reply(req.Head(), tdf.NewMap("CONF", tdf.KindString, tdf.KindString, entries...))
}
