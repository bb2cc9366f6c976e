// Package config loads blazectl TOML configuration.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/blazectl/internal/client"
	"github.com/danmuck/blazectl/internal/components"
	"github.com/danmuck/blazectl/internal/logging"
	"github.com/danmuck/blazectl/internal/server"
)

// Config is the resolved configuration for every blazectl subsystem.
type Config struct {
	Server     server.Config
	Admin      AdminConfig
	Components components.Config
	Client     client.Config
	Log        LogConfig
}

type AdminConfig struct {
	// ListenAddr serves /health and /metrics; empty disables the admin server.
	ListenAddr string
	// MetricsToken, when set, is required as a bearer token on /metrics.
	MetricsToken string
}

type LogConfig struct {
	Level string
	JSON  bool
}

func Default() Config {
	return Config{
		Server:     server.DefaultConfig(),
		Admin:      AdminConfig{ListenAddr: ":9110"},
		Components: components.DefaultConfig(),
		Client:     client.DefaultConfig(),
		Log:        LogConfig{Level: "info"},
	}
}

type fileConfig struct {
	Server struct {
		ListenAddr      string  `toml:"listen_addr"`
		ReadTimeout     string  `toml:"read_timeout"`
		WriteTimeout    string  `toml:"write_timeout"`
		MaxContentBytes int64   `toml:"max_content_bytes"`
		MaxDepth        int     `toml:"max_depth"`
		MaxCollection   int     `toml:"max_collection_count"`
		TLS             tlsFile `toml:"tls"`
	} `toml:"server"`
	Admin struct {
		ListenAddr   string `toml:"listen_addr"`
		MetricsToken string `toml:"metrics_token"`
	} `toml:"admin"`
	Redirector struct {
		Host   string `toml:"host"`
		IP     string `toml:"ip"`
		Port   int    `toml:"port"`
		Secure bool   `toml:"secure"`
	} `toml:"redirector"`
	Util struct {
		ClientConfigs map[string]map[string]string `toml:"client_config"`
	} `toml:"util"`
	Client struct {
		ConnectTimeout string  `toml:"connect_timeout"`
		MaxAttempts    int     `toml:"max_attempts"`
		InitialBackoff string  `toml:"initial_backoff"`
		MaxBackoff     string  `toml:"max_backoff"`
		Multiplier     float64 `toml:"backoff_multiplier"`
		TLS            tlsFile `toml:"tls"`
	} `toml:"client"`
	Log struct {
		Level string `toml:"level"`
		JSON  bool   `toml:"json"`
	} `toml:"log"`
}

type tlsFile struct {
	Enabled            bool   `toml:"enabled"`
	Mutual             bool   `toml:"mutual"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	CAFile             string `toml:"ca_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// Load reads path and applies every key it defines onto Default().
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("load config (%s): unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg, err := apply(Default(), raw, meta)
	if err != nil {
		return Config{}, fmt.Errorf("load config (%s): %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("load config (%s): %w", path, err)
	}
	return cfg, nil
}

func apply(cfg Config, raw fileConfig, meta toml.MetaData) (Config, error) {
	var err error

	if meta.IsDefined("server", "listen_addr") {
		cfg.Server.ListenAddr = strings.TrimSpace(raw.Server.ListenAddr)
	}
	if meta.IsDefined("server", "read_timeout") {
		if cfg.Server.ReadTimeout, err = parseDuration("server.read_timeout", raw.Server.ReadTimeout); err != nil {
			return cfg, err
		}
	}
	if meta.IsDefined("server", "write_timeout") {
		if cfg.Server.WriteTimeout, err = parseDuration("server.write_timeout", raw.Server.WriteTimeout); err != nil {
			return cfg, err
		}
	}
	if meta.IsDefined("server", "max_content_bytes") {
		n := raw.Server.MaxContentBytes
		if n <= 0 || n > math.MaxUint32 {
			return cfg, fmt.Errorf("server.max_content_bytes out of range: %d", n)
		}
		cfg.Server.Limits.MaxContentBytes = uint32(n)
	}
	if meta.IsDefined("server", "max_depth") {
		cfg.Server.TDFLimits.MaxDepth = raw.Server.MaxDepth
	}
	if meta.IsDefined("server", "max_collection_count") {
		cfg.Server.TDFLimits.MaxCollectionCount = raw.Server.MaxCollection
	}
	if meta.IsDefined("server", "tls") {
		cfg.Server.TLS = raw.Server.TLS.transport()
	}

	if meta.IsDefined("admin", "listen_addr") {
		cfg.Admin.ListenAddr = strings.TrimSpace(raw.Admin.ListenAddr)
	}
	if meta.IsDefined("admin", "metrics_token") {
		cfg.Admin.MetricsToken = strings.TrimSpace(raw.Admin.MetricsToken)
	}

	r := &cfg.Components.Redirector
	if meta.IsDefined("redirector", "host") {
		r.Host = strings.TrimSpace(raw.Redirector.Host)
	}
	if meta.IsDefined("redirector", "ip") {
		r.IP = strings.TrimSpace(raw.Redirector.IP)
	}
	if meta.IsDefined("redirector", "port") {
		if raw.Redirector.Port <= 0 || raw.Redirector.Port > math.MaxUint16 {
			return cfg, fmt.Errorf("redirector.port out of range: %d", raw.Redirector.Port)
		}
		r.Port = uint16(raw.Redirector.Port)
	}
	if meta.IsDefined("redirector", "secure") {
		r.Secure = raw.Redirector.Secure
	}

	if meta.IsDefined("util", "client_config") {
		cfg.Components.Util.ClientConfigs = raw.Util.ClientConfigs
	}

	if meta.IsDefined("client", "connect_timeout") {
		if cfg.Client.ConnectTimeout, err = parseDuration("client.connect_timeout", raw.Client.ConnectTimeout); err != nil {
			return cfg, err
		}
	}
	if meta.IsDefined("client", "max_attempts") {
		cfg.Client.MaxAttempts = raw.Client.MaxAttempts
	}
	if meta.IsDefined("client", "initial_backoff") {
		if cfg.Client.Backoff.InitialDelay, err = parseDuration("client.initial_backoff", raw.Client.InitialBackoff); err != nil {
			return cfg, err
		}
	}
	if meta.IsDefined("client", "max_backoff") {
		if cfg.Client.Backoff.MaxDelay, err = parseDuration("client.max_backoff", raw.Client.MaxBackoff); err != nil {
			return cfg, err
		}
	}
	if meta.IsDefined("client", "backoff_multiplier") {
		cfg.Client.Backoff.Multiplier = raw.Client.Multiplier
	}
	if meta.IsDefined("client", "tls") {
		cfg.Client.TLS = raw.Client.TLS.transport()
	}

	if meta.IsDefined("log", "level") {
		if _, ok := logging.ParseLevel(raw.Log.Level); !ok {
			return cfg, fmt.Errorf("log.level unknown: %q", raw.Log.Level)
		}
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "json") {
		cfg.Log.JSON = raw.Log.JSON
	}
	return cfg, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

// Validate checks cross-field rules that Load cannot express per key.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Server.ListenAddr) == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	if err := cfg.Server.TLS.ValidateServer(); err != nil {
		return fmt.Errorf("server.tls: %w", err)
	}
	if _, err := cfg.Components.Redirector.Instance(); err != nil {
		return fmt.Errorf("redirector: %w", err)
	}
	if err := cfg.Client.TLS.ValidateClient(); err != nil {
		return fmt.Errorf("client.tls: %w", err)
	}
	return nil
}
