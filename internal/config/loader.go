package config

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024

// Load reads configuration with the following precedence, highest first:
//
//  1. Environment variables with the TASKD_ prefix
//     (TASKD_SERVER_ADDR -> server.addr, TASKD_SESSION_IDLE_TIMEOUT -> session.idle_timeout)
//  2. The YAML file at configPath, if it exists
//  3. Built-in defaults
//
// Config files must be private (0600 or 0400) and under 1MB.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if err := loadFile(k, configPath); err != nil {
			return nil, err
		}
	}

	// TASKD_SECTION_FIELD_NAME -> section.field_name. The first underscore
	// separates the section; the rest stay underscores in the field name.
	if err := k.Load(env.Provider("TASKD_", ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, "TASKD_"))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		// Nested subsections use a double underscore:
		// TASKD_DATES_FALLBACK__API_KEY -> dates.fallback.api_key
		field := strings.ReplaceAll(parts[1], "__", ".")
		return parts[0] + "." + field
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	// Validate via the open descriptor to avoid a stat/read race.
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat config file: %w", err)
	}
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0o600 && perm != 0o400 {
			return fmt.Errorf("insecure config file permissions %v on %s (expected 0600 or 0400)", perm, path)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}
