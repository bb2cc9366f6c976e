package config

import (
	"github.com/danmuck/blazectl/internal/logging"
	"github.com/danmuck/blazectl/internal/transport"
)

func (f tlsFile) transport() transport.TLSConfig {
	return transport.TLSConfig{
		Enabled:            f.Enabled,
		Mutual:             f.Mutual,
		CertFile:           f.CertFile,
		KeyFile:            f.KeyFile,
		CAFile:             f.CAFile,
		ServerName:         f.ServerName,
		InsecureSkipVerify: f.InsecureSkipVerify,
	}
}

// Logging resolves the runtime logger setup: the file's [log] section, then
// BLAZECTL_LOG_* overrides.
func (c Config) Logging() logging.Config {
	out := logging.DefaultConfig(logging.ProfileRuntime)
	if lvl, ok := logging.ParseLevel(c.Log.Level); ok {
		out.Level = lvl
	}
	out.JSON = c.Log.JSON
	logging.ApplyEnv(&out)
	return out
}
