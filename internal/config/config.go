// Package config provides configuration loading for taskd.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fernlabs/taskd/internal/logging"
)

// Config is the full daemon configuration.
type Config struct {
	Server  ServerConfig   `koanf:"server"`
	Storage StorageConfig  `koanf:"storage"`
	Session SessionConfig  `koanf:"session"`
	Dates   DatesConfig    `koanf:"dates"`
	Logging logging.Config `koanf:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `koanf:"addr"`
	// AuthToken, when set, requires "Authorization: Bearer <token>" on all
	// API routes. Health and metrics stay open.
	AuthToken       string        `koanf:"auth_token"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
}

// StorageConfig controls task persistence.
type StorageConfig struct {
	// Path is the SQLite database file. ":memory:" keeps everything in
	// process memory.
	Path string `koanf:"path"`
}

// SessionConfig controls conversation session lifecycle.
type SessionConfig struct {
	// IdleTimeout resets a workflow abandoned mid-conversation.
	IdleTimeout time.Duration `koanf:"idle_timeout"`
	// TTL evicts whole sessions untouched for this long.
	TTL time.Duration `koanf:"ttl"`
	// SweepInterval is how often expired sessions are purged.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// DatesConfig controls natural-language date parsing.
type DatesConfig struct {
	Fallback FallbackConfig `koanf:"fallback"`
}

// FallbackConfig configures the LLM consulted when the rule-based date
// parser fails.
type FallbackConfig struct {
	Enabled bool   `koanf:"enabled"`
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	// APIKey can also come from TASKD_DATES_FALLBACK_API_KEY.
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "taskd.db"
	}

	if cfg.Session.IdleTimeout == 0 {
		cfg.Session.IdleTimeout = 30 * time.Minute
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 24 * time.Hour
	}
	if cfg.Session.SweepInterval == 0 {
		cfg.Session.SweepInterval = time.Hour
	}

	if cfg.Dates.Fallback.Enabled {
		if cfg.Dates.Fallback.Model == "" {
			cfg.Dates.Fallback.Model = "gpt-4o-mini"
		}
		if cfg.Dates.Fallback.Timeout == 0 {
			cfg.Dates.Fallback.Timeout = 10 * time.Second
		}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if !strings.Contains(c.Server.Addr, ":") {
		return fmt.Errorf("server.addr %q must be host:port", c.Server.Addr)
	}
	if c.Session.IdleTimeout < 0 || c.Session.TTL < 0 {
		return fmt.Errorf("session timeouts must not be negative")
	}
	if c.Session.TTL > 0 && c.Session.IdleTimeout > c.Session.TTL {
		return fmt.Errorf("session.idle_timeout (%s) must not exceed session.ttl (%s)",
			c.Session.IdleTimeout, c.Session.TTL)
	}
	if c.Dates.Fallback.Enabled && c.Dates.Fallback.Model == "" {
		return fmt.Errorf("dates.fallback.model is required when the fallback is enabled")
	}
	if _, err := logging.LevelFromString(c.Logging.Level); err != nil {
		return err
	}
	return nil
}
