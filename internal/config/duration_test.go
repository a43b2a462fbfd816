package config_test

import (
	"encoding/json"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stadtwache/opsclient/internal/config"
)

func TestDuration_JSON(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{`"30s"`, 30 * time.Second},
		{`"1m30s"`, 90 * time.Second},
		{`"1500ms"`, 1500 * time.Millisecond},
		{`5`, 5 * time.Second},
		{`0.5`, 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var d config.Duration
			if err := json.Unmarshal([]byte(tt.input), &d); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if d.Std() != tt.want {
				t.Errorf("got %v, want %v", d.Std(), tt.want)
			}
		})
	}
}

func TestDuration_JSON_Invalid(t *testing.T) {
	for _, input := range []string{`"soon"`, `true`, `{}`} {
		var d config.Duration
		if err := json.Unmarshal([]byte(input), &d); err == nil {
			t.Errorf("Unmarshal(%s) expected error", input)
		}
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(config.Duration(45 * time.Second))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `"45s"` {
		t.Errorf("got %s, want \"45s\"", data)
	}
}

func TestDuration_YAML(t *testing.T) {
	var cfg struct {
		Interval config.Duration `yaml:"interval"`
		Timeout  config.Duration `yaml:"timeout"`
	}

	if err := yaml.Unmarshal([]byte("interval: 2m\ntimeout: 10\n"), &cfg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if cfg.Interval.Std() != 2*time.Minute {
		t.Errorf("Interval = %v, want 2m", cfg.Interval)
	}
	if cfg.Timeout.Std() != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout)
	}
}
