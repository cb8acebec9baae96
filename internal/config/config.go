// Package config loads tagnav settings: the page description plus service
// options, layered defaults < file < TAGNAV_* environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/agentic-research/tagnav/api"
	"github.com/agentic-research/tagnav/internal/transport"
)

const envPrefix = "TAGNAV_"

// Config is the page description plus the settings of the serving commands.
// The page fields sit at the top level, so a page.json written by
// "tagnav build" is itself a valid config file.
type Config struct {
	api.Page `yaml:",inline" koanf:",squash"`

	// Base is the directory or http(s) URL that documents and image
	// references are relative to. Empty means the config file's directory.
	Base string `json:"base,omitempty" yaml:"base,omitempty" koanf:"base"`
	// Listen is the HTTP address for "tagnav serve".
	Listen string `json:"listen,omitempty" yaml:"listen,omitempty" koanf:"listen"`
	// Prefetch is the number of images kept warm.
	Prefetch int `json:"prefetch,omitempty" yaml:"prefetch,omitempty" koanf:"prefetch"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty" koanf:"log_level"`
}

func Default() *Config {
	return &Config{
		Page: api.Page{
			Version:   "1",
			PageToken: "None",
			URL:       api.URLConfig{Mode: api.URLModeSlug, Separator: "|"},
		},
		Listen:   "127.0.0.1:8080",
		Prefetch: transport.DefaultCacheSize,
		LogLevel: "info",
	}
}

// Load reads the file at path (YAML or JSON) over the defaults, then applies
// environment overrides: TAGNAV_LISTEN=:9000, TAGNAV_URL__MODE=int. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Validate checks the page and the service settings.
func (c *Config) Validate() error {
	if err := c.Page.Validate(); err != nil {
		return err
	}
	if len(c.Documents) == 0 {
		return fmt.Errorf("no documents configured")
	}
	if c.Prefetch < 0 {
		return fmt.Errorf("prefetch must be non-negative")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a configured level name onto slog.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("invalid log_level %q: must be one of debug, info, warn, error", s)
	}
	return l, nil
}
