package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestManagerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManagerAt(dir)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if m.GetServerURL() != DefaultServerURL {
		t.Fatalf("expected default server, got %q", m.GetServerURL())
	}
	if err := m.SetServerURL("http://gw.internal:3000/"); err != nil {
		t.Fatalf("set server: %v", err)
	}
	if err := m.SetDefaultAgent("ops"); err != nil {
		t.Fatalf("set agent: %v", err)
	}

	again, err := NewManagerAt(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.GetServerURL() != "http://gw.internal:3000" || again.GetDefaultAgent() != "ops" {
		t.Fatalf("config not persisted: %q %q", again.GetServerURL(), again.GetDefaultAgent())
	}
}

func TestManagerRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte("{"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewManagerAt(dir); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestResolveDefaults(t *testing.T) {
	m, _ := NewManagerAt(t.TempDir())
	s, err := Resolve(NewViper(m))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if s.ServerURL != DefaultServerURL || s.RevealBudget != 6 || s.RevealInterval != 30*time.Millisecond {
		t.Fatalf("unexpected defaults: %+v", s)
	}
	if s.ReconnectBase != 500*time.Millisecond || s.ReconnectMax != 15*time.Second || s.BannerQuiet != 5*time.Second {
		t.Fatalf("unexpected timing defaults: %+v", s)
	}
}

func TestResolveEnvOverridesSavedConfig(t *testing.T) {
	m, _ := NewManagerAt(t.TempDir())
	_ = m.SetServerURL("http://saved:3000")
	_ = m.SetDefaultAgent("saved-agent")

	t.Setenv("PINCHY_SERVER", "https://env-gw:8443")
	t.Setenv("PINCHY_REVEAL_BUDGET", "12")

	s, err := Resolve(NewViper(m))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if s.ServerURL != "https://env-gw:8443" || s.RevealBudget != 12 {
		t.Fatalf("env should win: %+v", s)
	}
	if s.Agent != "saved-agent" {
		t.Fatalf("saved agent should be the default, got %q", s.Agent)
	}
}

func TestResolveRejectsBadServer(t *testing.T) {
	v := NewViper(nil)
	v.Set(KeyServer, "127.0.0.1:3000")
	if _, err := Resolve(v); err == nil {
		t.Fatalf("expected error for url without scheme")
	}
}
