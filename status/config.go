package status

import (
	"time"

	"github.com/stadtwache/opsclient/internal/config"
)

const (
	defaultInterval     = 30 * time.Second
	defaultPollTimeout  = 20 * time.Second
	defaultOnDutyStatus = "Im Dienst"
	defaultChannel      = "general"
)

// Counts is a set of dashboard figures used as fallback values.
type Counts struct {
	OpenIncidents  int `json:"open_incidents,omitempty" yaml:"open_incidents,omitempty"`
	ActiveOfficers int `json:"active_officers,omitempty" yaml:"active_officers,omitempty"`
	Messages       int `json:"messages,omitempty" yaml:"messages,omitempty"`
}

func (c *Counts) merge(source *Counts) {
	if source.OpenIncidents > 0 {
		c.OpenIncidents = source.OpenIncidents
	}
	if source.ActiveOfficers > 0 {
		c.ActiveOfficers = source.ActiveOfficers
	}
	if source.Messages > 0 {
		c.Messages = source.Messages
	}
}

// Config holds aggregator parameters.
type Config struct {
	Interval     config.Duration `json:"interval,omitempty" yaml:"interval,omitempty"`
	PollTimeout  config.Duration `json:"poll_timeout,omitempty" yaml:"poll_timeout,omitempty"`
	OnDutyStatus string          `json:"on_duty_status,omitempty" yaml:"on_duty_status,omitempty"`
	Channel      string          `json:"channel,omitempty" yaml:"channel,omitempty"`
	// Fallback replaces the value of an individual query that failed.
	Fallback Counts `json:"fallback,omitempty" yaml:"fallback,omitempty"`
	// AllFailed is published as a whole when every query failed.
	AllFailed Counts `json:"all_failed,omitempty" yaml:"all_failed,omitempty"`
}

// DefaultConfig returns the default aggregator configuration.
func DefaultConfig() Config {
	return Config{
		Interval:     config.Duration(defaultInterval),
		PollTimeout:  config.Duration(defaultPollTimeout),
		OnDutyStatus: defaultOnDutyStatus,
		Channel:      defaultChannel,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Interval > 0 {
		c.Interval = source.Interval
	}
	if source.PollTimeout > 0 {
		c.PollTimeout = source.PollTimeout
	}
	if source.OnDutyStatus != "" {
		c.OnDutyStatus = source.OnDutyStatus
	}
	if source.Channel != "" {
		c.Channel = source.Channel
	}
	c.Fallback.merge(&source.Fallback)
	c.AllFailed.merge(&source.AllFailed)
}
