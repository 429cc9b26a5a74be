package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nczempin/httpd-go-uring/errors"
)

type Config struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	WebRoot string `json:"web_root"`
	// Socket, when set, serves on a Unix domain socket instead of Host:Port
	Socket  string `json:"socket"`
	Verbose bool   `json:"verbose"`

	IdleTimeoutSeconds int `json:"idle_timeout_seconds"`
	MaxHeaderBytes     int `json:"max_header_bytes"`
	MaxAccesses        int `json:"max_accesses"`

	ServerName string `json:"server_name"`
	CookieName string `json:"cookie_name"`

	// Form handling
	FormTarget    string   `json:"form_target"`
	OkFile        string   `json:"ok_file"`
	FailFile      string   `json:"fail_file"`
	AllowedEmails []string `json:"allowed_emails"`

	Transport string `json:"transport"`  // net | uring
	Storage   string `json:"storage"`    // os | uring
	LogFormat string `json:"log_format"` // console | json
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		WebRoot:            "./www/",
		IdleTimeoutSeconds: 23,
		MaxHeaderBytes:     64 << 10,
		MaxAccesses:        10,
		ServerName:         "STTT3776.org",
		CookieName:         "cookie_counter_3776",
		FormTarget:         "/accion_form.html",
		OkFile:             "ok_file.html",
		FailFile:           "failed_file.html",
		AllowedEmails: []string{
			"a.navarromartinez1@um.es",
			"german.sanchez2@um.es",
		},
		Transport: "net",
		Storage:   "os",
		LogFormat: "console",
	}
}

// Load reads an optional JSON file over the defaults, then applies
// environment variables. A missing path is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" && fileExists(path) {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := env("STTT_HOST"); v != "" {
		c.Host = v
	}
	if v := env("STTT_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return errors.NewInvalidArgumentError("STTT_PORT: " + v)
		}
		c.Port = p
	}
	if v := env("STTT_WEBROOT"); v != "" {
		c.WebRoot = v
	}
	if v := env("STTT_SOCKET"); v != "" {
		c.Socket = v
	}
	if v := env("STTT_VERBOSE"); v != "" {
		c.Verbose = v == "1" || strings.EqualFold(v, "true")
	}
	if v := env("STTT_TRANSPORT"); v != "" {
		c.Transport = v
	}
	if v := env("STTT_STORAGE"); v != "" {
		c.Storage = v
	}
	if v := env("STTT_IDLE_TIMEOUT"); v != "" {
		s, err := strconv.Atoi(v)
		if err != nil {
			return errors.NewInvalidArgumentError("STTT_IDLE_TIMEOUT: " + v)
		}
		c.IdleTimeoutSeconds = s
	}
	if v := env("STTT_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	return nil
}

// Validate checks ranges and enum values. It normalizes the web root to end
// with a path separator.
func (c *Config) Validate() error {
	if c.Socket == "" && (c.Port < 1 || c.Port > 65535) {
		return errors.NewInvalidArgumentError(fmt.Sprintf("port %d out of range", c.Port))
	}
	if c.WebRoot == "" {
		return errors.NewInvalidArgumentError("web root is required")
	}
	if fi, err := os.Stat(c.WebRoot); err != nil || !fi.IsDir() {
		return errors.NewInvalidArgumentError("web root " + c.WebRoot + " is not a directory")
	}
	if !strings.HasSuffix(c.WebRoot, string(filepath.Separator)) {
		c.WebRoot += string(filepath.Separator)
	}
	if c.IdleTimeoutSeconds <= 0 {
		return errors.NewInvalidArgumentError("idle timeout must be positive")
	}
	if c.MaxAccesses <= 0 {
		return errors.NewInvalidArgumentError("max accesses must be positive")
	}
	if !strings.HasPrefix(c.FormTarget, "/") {
		return errors.NewInvalidArgumentError("form target must start with /")
	}

	switch c.Transport {
	case "net", "uring":
	default:
		return errors.NewInvalidArgumentError("transport must be net or uring")
	}
	switch c.Storage {
	case "os", "uring":
	default:
		return errors.NewInvalidArgumentError("storage must be os or uring")
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return errors.NewInvalidArgumentError("log format must be console or json")
	}
	return nil
}

// IdleTimeout is the per-read wait before a quiet connection is dropped
func (c Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

// Address is the host:port to listen on
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
