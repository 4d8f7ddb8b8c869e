package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Clear relevant envs
	os.Unsetenv("ADDR")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("SESSION_MAX_AGE")
	os.Unsetenv("SESSION_DISCONNECT_GRACE")
	os.Unsetenv("SESSION_GRACE_FROM")

	c, err := Load(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if c.Server.Addr != ":8080" {
		t.Fatalf("expected default addr :8080, got %q", c.Server.Addr)
	}
	if c.Server.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %q", c.Server.LogLevel)
	}
	if c.Session.MaxAge != 24*time.Hour {
		t.Fatalf("expected 24h max age, got %s", c.Session.MaxAge)
	}
	if c.Session.DisconnectGrace != time.Hour {
		t.Fatalf("expected 1h grace, got %s", c.Session.DisconnectGrace)
	}
	if c.Session.GraceFrom != GraceFromActivity {
		t.Fatalf("expected grace from activity, got %q", c.Session.GraceFrom)
	}
	if len(c.ICE.STUNURLs) != 1 || c.ICE.STUNURLs[0] != "stun:stun.l.google.com:19302" {
		t.Fatalf("unexpected default stun urls %v", c.ICE.STUNURLs)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ADDR", ":9999")
	t.Setenv("SESSION_MAX_AGE", "2h")
	t.Setenv("SESSION_DISCONNECT_GRACE", "90s")
	t.Setenv("SESSION_GRACE_FROM", "Created")
	t.Setenv("SESSION_SHARDS", "4")
	t.Setenv("ICE_STUN_URLS", "stun:a.example:3478, stun:b.example:3478")

	c, err := Load(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Addr != ":9999" {
		t.Fatalf("addr = %q", c.Server.Addr)
	}
	if c.Session.MaxAge != 2*time.Hour || c.Session.DisconnectGrace != 90*time.Second {
		t.Fatalf("durations = %s / %s", c.Session.MaxAge, c.Session.DisconnectGrace)
	}
	if c.Session.GraceFrom != GraceFromCreated {
		t.Fatalf("grace_from = %q", c.Session.GraceFrom)
	}
	if c.Session.Shards != 4 {
		t.Fatalf("shards = %d", c.Session.Shards)
	}
	if len(c.ICE.STUNURLs) != 2 || c.ICE.STUNURLs[1] != "stun:b.example:3478" {
		t.Fatalf("stun urls = %v", c.ICE.STUNURLs)
	}
}

func TestLoadFlagsAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "session:\n  max_age: 30m\nice:\n  stun_urls:\n    - stun:file.example:3478\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	fs := NewFlagSet("test")
	if err := fs.Parse([]string{"--config", path, "--addr", ":7000"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	c, err := Load(fs)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Addr != ":7000" {
		t.Fatalf("addr = %q", c.Server.Addr)
	}
	if c.Session.MaxAge != 30*time.Minute {
		t.Fatalf("max age = %s", c.Session.MaxAge)
	}
	if len(c.ICE.STUNURLs) != 1 || c.ICE.STUNURLs[0] != "stun:file.example:3478" {
		t.Fatalf("stun urls = %v", c.ICE.STUNURLs)
	}
}

func TestLoadRejectsUnknownGraceMode(t *testing.T) {
	t.Setenv("SESSION_GRACE_FROM", "disconnect")
	if _, err := Load(nil); err == nil {
		t.Fatalf("expected error for unknown grace mode")
	}
}
