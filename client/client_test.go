package client_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stadtwache/opsclient/client"
	"github.com/stadtwache/opsclient/credstore"
	"github.com/stadtwache/opsclient/internal/config"
	"github.com/stadtwache/opsclient/internal/fakeapi"
	"github.com/stadtwache/opsclient/observability"
	"github.com/stadtwache/opsclient/profile"
	"github.com/stadtwache/opsclient/session"
)

func testConfig(baseURL string) client.Config {
	cfg := client.DefaultConfig()
	cfg.Server.BaseURL = baseURL
	cfg.Observer = "noop"
	cfg.Status.Interval = config.Duration(time.Hour)
	cfg.Session.RestoreMinDuration = config.Duration(time.Millisecond)
	return cfg
}

func newClient(t *testing.T, cfg client.Config, opts ...client.Option) *client.Client {
	t.Helper()
	c, err := client.New(&cfg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestClient_LoginStartsPolling(t *testing.T) {
	api := fakeapi.New()
	srv := httptest.NewServer(api)
	defer srv.Close()

	obs := &observability.Recorder{}
	c := newClient(t, testConfig(srv.URL), client.WithObserver(obs))

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if c.Session().Status != session.Unauthenticated {
		t.Fatalf("Status = %v, want unauthenticated", c.Session().Status)
	}
	if c.Polling() {
		t.Fatal("polling without a session")
	}

	if err := c.Login(context.Background(), fakeapi.AdminEmail, fakeapi.AdminPassword); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	waitFor(t, "first poll", func() bool { return c.Status().Seq > 0 })
	if !c.Polling() {
		t.Error("Polling() = false after login")
	}

	snap := c.Status()
	if snap.OpenIncidents != 2 || snap.ActiveOfficers != 2 || snap.Messages != 2 {
		t.Errorf("status = %+v", snap)
	}
	waitFor(t, "polling start event", func() bool { return obs.Count(client.EventPollingStart) == 1 })

	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	waitFor(t, "polling to stop", func() bool { return !c.Polling() })
}

func TestClient_RefreshRequiresSession(t *testing.T) {
	srv := httptest.NewServer(fakeapi.New())
	defer srv.Close()

	c := newClient(t, testConfig(srv.URL))
	if _, err := c.Refresh(context.Background()); !errors.Is(err, client.ErrNotAuthenticated) {
		t.Errorf("Refresh() error = %v, want ErrNotAuthenticated", err)
	}
}

func TestClient_RevokedSessionEndsOnNextRequest(t *testing.T) {
	api := fakeapi.New()
	srv := httptest.NewServer(api)
	defer srv.Close()

	c := newClient(t, testConfig(srv.URL))
	if err := c.Login(context.Background(), fakeapi.AdminEmail, fakeapi.AdminPassword); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	waitFor(t, "polling", c.Polling)

	api.RevokeAll()

	snap, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if !snap.Degraded {
		t.Errorf("snapshot after revocation = %+v, want degraded", snap)
	}

	waitFor(t, "session to end", func() bool { return c.Session().Status == session.Unauthenticated })
	waitFor(t, "polling to stop", func() bool { return !c.Polling() })

	if n := api.Calls("/api/auth/me"); n < 1 {
		t.Errorf("validation calls = %d, want at least 1", n)
	}
}

func TestClient_SessionSurvivesRestart(t *testing.T) {
	api := fakeapi.New()
	srv := httptest.NewServer(api)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Store = credstore.Config{
		Driver:  credstore.DriverSQLite,
		Path:    filepath.Join(t.TempDir(), "creds.db"),
		SealKey: "device-secret",
	}

	first, err := client.New(&cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := first.Login(context.Background(), fakeapi.AdminEmail, fakeapi.AdminPassword); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if err := first.UpdateProfile(context.Background(), profile.Patch{"status": "Einsatz"}); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	want := first.Session()
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	second := newClient(t, cfg)
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	got := second.Session()
	if got.Status != session.Authenticated || got.Token != want.Token {
		t.Fatalf("restored session = %v", got.Status)
	}
	if !got.User.Equal(want.User) {
		t.Error("restored profile differs")
	}
	if v, _ := got.User.Get("status"); v != "Einsatz" {
		t.Errorf("updated field not restored: %v", v)
	}
	waitFor(t, "polling after restore", second.Polling)
}

func TestClient_ClosedRejectsOperations(t *testing.T) {
	srv := httptest.NewServer(fakeapi.New())
	defer srv.Close()

	cfg := testConfig(srv.URL)
	c, err := client.New(&cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if err := c.Start(context.Background()); !errors.Is(err, client.ErrClosed) {
		t.Errorf("Start() error = %v, want ErrClosed", err)
	}
	if err := c.Login(context.Background(), "a", "b"); !errors.Is(err, client.ErrClosed) {
		t.Errorf("Login() error = %v, want ErrClosed", err)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*client.Config)
	}{
		{"unknown observer", func(c *client.Config) { c.Observer = "nope" }},
		{"bad base url", func(c *client.Config) { c.Server.BaseURL = "ftp://x" }},
		{"bad store", func(c *client.Config) { c.Store.Driver = "etcd" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("http://127.0.0.1:1")
			tt.mutate(&cfg)
			if _, err := client.New(&cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestClient_Interceptor(t *testing.T) {
	c := newClient(t, testConfig("http://127.0.0.1:1"))
	if c.Interceptor() == nil {
		t.Error("Interceptor() = nil")
	}
	if c.Gateway() == nil {
		t.Error("Gateway() = nil")
	}
}
