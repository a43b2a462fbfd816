package gateway

import (
	"time"

	"github.com/stadtwache/opsclient/internal/config"
)

const (
	defaultBaseURL = "http://127.0.0.1:8080"
	defaultTimeout = 30 * time.Second
)

// Config holds HTTP transport parameters.
type Config struct {
	BaseURL string          `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Timeout config.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: defaultBaseURL,
		Timeout: config.Duration(defaultTimeout),
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.BaseURL != "" {
		c.BaseURL = source.BaseURL
	}
	if source.Timeout > 0 {
		c.Timeout = source.Timeout
	}
}
