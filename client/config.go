package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stadtwache/opsclient/credstore"
	"github.com/stadtwache/opsclient/gateway"
	"github.com/stadtwache/opsclient/observability"
	"github.com/stadtwache/opsclient/session"
	"github.com/stadtwache/opsclient/status"
)

// Config holds initialization parameters for all client subsystems.
// Each section delegates to that subsystem's config-driven constructor.
type Config struct {
	Server   gateway.Config          `json:"server" yaml:"server"`
	Store    credstore.Config        `json:"store" yaml:"store"`
	Session  session.Config          `json:"session" yaml:"session"`
	Status   status.Config           `json:"status" yaml:"status"`
	Observer string                  `json:"observer,omitempty" yaml:"observer,omitempty"`
	Log      observability.LogConfig `json:"log" yaml:"log"`
}

// DefaultConfig returns a Config with defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		Server:   gateway.DefaultConfig(),
		Store:    credstore.DefaultConfig(),
		Session:  session.DefaultConfig(),
		Status:   status.DefaultConfig(),
		Observer: "slog",
		Log:      observability.DefaultLogConfig(),
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	c.Server.Merge(&source.Server)
	c.Store.Merge(&source.Store)
	c.Session.Merge(&source.Session)
	c.Status.Merge(&source.Status)
	c.Log.Merge(&source.Log)

	if source.Observer != "" {
		c.Observer = source.Observer
	}
}

// LoadConfig reads a JSON or YAML config file (chosen by extension), merges
// it with defaults, and returns the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &loaded)
	default:
		err = json.Unmarshal(data, &loaded)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
