package server

import (
	"strings"
	"time"

	"github.com/danmuck/blazectl/internal/protocol/packet"
	"github.com/danmuck/blazectl/internal/protocol/tdf"
	"github.com/danmuck/blazectl/internal/transport"
)

// Config defines the Blaze listener.
type Config struct {
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Limits       packet.Limits
	TDFLimits    tdf.Limits
	TLS          transport.TLSConfig
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:   ":42127",
		ReadTimeout:  90 * time.Second,
		WriteTimeout: 15 * time.Second,
		Limits:       packet.DefaultLimits(),
		TDFLimits:    tdf.DefaultLimits(),
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = d.ListenAddr
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.Limits.MaxContentBytes == 0 {
		c.Limits = d.Limits
	}
	if c.TDFLimits.MaxDepth <= 0 {
		c.TDFLimits.MaxDepth = d.TDFLimits.MaxDepth
	}
	if c.TDFLimits.MaxCollectionCount <= 0 {
		c.TDFLimits.MaxCollectionCount = d.TDFLimits.MaxCollectionCount
	}
	return c
}
