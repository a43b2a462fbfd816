package client_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stadtwache/opsclient/client"
	"github.com/stadtwache/opsclient/credstore"
)

func TestDefaultConfig(t *testing.T) {
	cfg := client.DefaultConfig()

	if cfg.Observer != "slog" {
		t.Errorf("got Observer %q, want slog", cfg.Observer)
	}
	if cfg.Store.Driver != credstore.DriverMemory {
		t.Errorf("got Store.Driver %q, want memory", cfg.Store.Driver)
	}
	if cfg.Status.Interval.Std() != 30*time.Second {
		t.Errorf("got Status.Interval %v, want 30s", cfg.Status.Interval)
	}
	if cfg.Server.Timeout.Std() != 30*time.Second {
		t.Errorf("got Server.Timeout %v, want 30s", cfg.Server.Timeout)
	}
}

func TestConfig_Merge_ZeroValuesPreserveDefaults(t *testing.T) {
	cfg := client.DefaultConfig()
	want := cfg

	cfg.Merge(&client.Config{})

	if cfg.Observer != want.Observer || cfg.Server.BaseURL != want.Server.BaseURL || cfg.Status.Channel != want.Status.Channel {
		t.Errorf("got %+v, want defaults preserved", cfg)
	}
}

func TestLoadConfig_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"server": {"base_url": "https://zentrale.example", "timeout": "10s"},
		"store": {"driver": "sqlite", "path": "/var/lib/opsclient/creds.db", "seal_key": "k"},
		"session": {"restore_min_duration": "1.5s"},
		"status": {"interval": "15s", "all_failed": {"open_incidents": 3, "active_officers": 8, "messages": 15}},
		"observer": "zap",
		"log": {"level": "debug"}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := client.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.BaseURL != "https://zentrale.example" || cfg.Server.Timeout.Std() != 10*time.Second {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.SealKey != "k" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Session.RestoreMinDuration.Std() != 1500*time.Millisecond {
		t.Errorf("RestoreMinDuration = %v", cfg.Session.RestoreMinDuration)
	}
	if cfg.Status.Interval.Std() != 15*time.Second || cfg.Status.AllFailed.Messages != 15 {
		t.Errorf("Status = %+v", cfg.Status)
	}
	if cfg.Status.OnDutyStatus != "Im Dienst" {
		t.Errorf("default OnDutyStatus lost: %q", cfg.Status.OnDutyStatus)
	}
	if cfg.Observer != "zap" || cfg.Log.Level != "debug" {
		t.Errorf("Observer = %q, Log.Level = %q", cfg.Observer, cfg.Log.Level)
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  base_url: http://10.0.0.5:8080
store:
  driver: file
  path: /tmp/creds
status:
  interval: 1m
  on_duty_status: Einsatz
log:
  file: /tmp/opsclient.log
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := client.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.BaseURL != "http://10.0.0.5:8080" {
		t.Errorf("BaseURL = %q", cfg.Server.BaseURL)
	}
	if cfg.Server.Timeout.Std() != 30*time.Second {
		t.Errorf("default Timeout lost: %v", cfg.Server.Timeout)
	}
	if cfg.Store.Driver != "file" || cfg.Store.Path != "/tmp/creds" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Status.Interval.Std() != time.Minute || cfg.Status.OnDutyStatus != "Einsatz" {
		t.Errorf("Status = %+v", cfg.Status)
	}
	if cfg.Log.File != "/tmp/opsclient.log" {
		t.Errorf("Log.File = %q", cfg.Log.File)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	if _, err := client.LoadConfig("/nonexistent/path/config.json"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"bad.json": "{invalid}",
		"bad.yaml": "server: [unterminated",
		"dur.json": `{"status": {"interval": "soon"}}`,
	} {
		path := filepath.Join(dir, name)
		os.WriteFile(path, []byte(content), 0o644)
		if _, err := client.LoadConfig(path); err == nil {
			t.Errorf("LoadConfig(%s) expected error", name)
		}
	}
}
