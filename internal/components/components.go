// Package components holds the Blaze components served by blazectl.
package components

import (
	"github.com/danmuck/blazectl/internal/server"
)

// Component ids.
const (
	RedirectorComponent uint16 = 0x0005
	UtilComponent       uint16 = 0x0009
)

// Command ids.
const (
	CmdGetServerInstance uint16 = 0x0001

	CmdFetchClientConfig uint16 = 0x0001
	CmdPing              uint16 = 0x0002
)

// Config configures every component.
type Config struct {
	Redirector RedirectorConfig
	Util       UtilConfig
}

func DefaultConfig() Config {
	return Config{
		Redirector: DefaultRedirectorConfig(),
		Util:       UtilConfig{ClientConfigs: map[string]map[string]string{}},
	}
}

// Register wires every component into router.
func Register(router *server.Router, cfg Config) error {
	redirector, err := NewRedirector(cfg.Redirector)
	if err != nil {
		return err
	}
	redirector.Register(router)
	NewUtil(cfg.Util).Register(router)
	return nil
}
