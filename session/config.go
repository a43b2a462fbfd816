package session

import (
	"time"

	"github.com/stadtwache/opsclient/internal/config"
)

const (
	defaultExpiryLeeway   = 30 * time.Second
	defaultGenericMessage = "Verbindung zur Zentrale fehlgeschlagen."
	defaultMissingMessage = "Vollständige Identifikation erforderlich"
)

// Config holds session manager parameters.
type Config struct {
	// RestoreMinDuration pads Restore to at least this long. Zero disables.
	RestoreMinDuration config.Duration `json:"restore_min_duration,omitempty" yaml:"restore_min_duration,omitempty"`
	// ExpiryLeeway is the clock skew tolerated when checking a JWT exp claim.
	ExpiryLeeway config.Duration `json:"expiry_leeway,omitempty" yaml:"expiry_leeway,omitempty"`
	// GenericErrorMessage is shown when the server gives no detail.
	GenericErrorMessage string `json:"generic_error_message,omitempty" yaml:"generic_error_message,omitempty"`
	// MissingCredentialsMessage is shown when identifier or secret is empty.
	MissingCredentialsMessage string `json:"missing_credentials_message,omitempty" yaml:"missing_credentials_message,omitempty"`
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		ExpiryLeeway:              config.Duration(defaultExpiryLeeway),
		GenericErrorMessage:       defaultGenericMessage,
		MissingCredentialsMessage: defaultMissingMessage,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.RestoreMinDuration > 0 {
		c.RestoreMinDuration = source.RestoreMinDuration
	}
	if source.ExpiryLeeway > 0 {
		c.ExpiryLeeway = source.ExpiryLeeway
	}
	if source.GenericErrorMessage != "" {
		c.GenericErrorMessage = source.GenericErrorMessage
	}
	if source.MissingCredentialsMessage != "" {
		c.MissingCredentialsMessage = source.MissingCredentialsMessage
	}
}
