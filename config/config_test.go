package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.IdleTimeout() != 23*time.Second {
		t.Errorf("expected idle timeout 23s, got %v", cfg.IdleTimeout())
	}
	if cfg.MaxAccesses != 10 {
		t.Errorf("expected max accesses 10, got %d", cfg.MaxAccesses)
	}
	if cfg.CookieName != "cookie_counter_3776" {
		t.Errorf("unexpected cookie name %q", cfg.CookieName)
	}
	if cfg.FormTarget != "/accion_form.html" {
		t.Errorf("unexpected form target %q", cfg.FormTarget)
	}
	if len(cfg.AllowedEmails) != 2 {
		t.Errorf("expected 2 allowed emails, got %d", len(cfg.AllowedEmails))
	}
}

func TestLoadFromJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"port": 9090, "web_root": "/srv/www", "transport": "uring", "allowed_emails": ["x@y.z"]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.WebRoot != "/srv/www" {
		t.Errorf("expected web root /srv/www, got %q", cfg.WebRoot)
	}
	if cfg.Transport != "uring" {
		t.Errorf("expected uring transport, got %q", cfg.Transport)
	}
	if len(cfg.AllowedEmails) != 1 || cfg.AllowedEmails[0] != "x@y.z" {
		t.Errorf("unexpected allowed emails %v", cfg.AllowedEmails)
	}
	// Untouched fields keep their defaults
	if cfg.MaxAccesses != 10 {
		t.Errorf("expected default max accesses, got %d", cfg.MaxAccesses)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"port": 9090, "log_format": "console"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STTT_PORT", "7070")
	t.Setenv("STTT_LOG_FORMAT", "json")
	t.Setenv("STTT_VERBOSE", "1")
	t.Setenv("STTT_IDLE_TIMEOUT", " 5 ")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 7070 {
		t.Errorf("expected env port 7070, got %d", cfg.Port)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("expected json log format, got %q", cfg.LogFormat)
	}
	if !cfg.Verbose {
		t.Error("expected verbose from env")
	}
	if cfg.IdleTimeout() != 5*time.Second {
		t.Errorf("expected idle timeout 5s, got %v", cfg.IdleTimeout())
	}
}

func TestLoadInvalidEnv(t *testing.T) {
	t.Setenv("STTT_PORT", "eighty")
	if _, err := Load(""); err == nil {
		t.Error("expected error for non-numeric port")
	}
}

func TestLoadInvalidJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"port": `), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for truncated JSON")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != Default().Port {
		t.Errorf("expected default port, got %d", cfg.Port)
	}
}

func TestValidate(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"port zero", func(c *Config) { c.Port = 0 }, "port"},
		{"port too large", func(c *Config) { c.Port = 70000 }, "port"},
		{"socket ignores port", func(c *Config) { c.Port = 0; c.Socket = "/tmp/x.sock" }, ""},
		{"missing root", func(c *Config) { c.WebRoot = filepath.Join(root, "nope") }, "not a directory"},
		{"empty root", func(c *Config) { c.WebRoot = "" }, "required"},
		{"bad transport", func(c *Config) { c.Transport = "epoll" }, "transport"},
		{"bad storage", func(c *Config) { c.Storage = "mmap" }, "storage"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log format"},
		{"zero idle", func(c *Config) { c.IdleTimeoutSeconds = 0 }, "idle"},
		{"relative form", func(c *Config) { c.FormTarget = "form.html" }, "form target"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.WebRoot = root
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateAddsTrailingSeparator(t *testing.T) {
	cfg := Default()
	cfg.WebRoot = t.TempDir()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !strings.HasSuffix(cfg.WebRoot, string(filepath.Separator)) {
		t.Errorf("expected trailing separator, got %q", cfg.WebRoot)
	}
}
