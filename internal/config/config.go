// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package config loads Warden settings from flags and an optional YAML file.
package config

import (
	"os"
	"slices"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/warden-auth/warden/internal/auth"
)

// Session store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// DatabaseURLEnv is consulted when database.url is not configured.
const DatabaseURLEnv = "DATABASE_URL"

// Default values for the serve flags.
const (
	DefaultHTTPAddr      = "127.0.0.1:5000"
	DefaultMetricsAddr   = "127.0.0.1:9100"
	DefaultLogFormat     = "json"
	DefaultLogLevel      = "info"
	DefaultAuthType      = auth.StrategySession
	DefaultSessionStore  = StoreMemory
	DefaultResetTokenTTL = int(auth.DefaultResetTokenTTL / time.Second)
)

// DefaultExcludedPaths are reachable without credentials.
var DefaultExcludedPaths = []string{
	"/api/v1/status/",
	"/api/v1/unauthorized/",
	"/api/v1/forbidden/",
	"/api/v1/auth_session/login/",
	"/api/v1/users/",
	"/api/v1/reset_password/",
}

// Config is the full Warden configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http" json:"http,omitempty"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics,omitempty"`
	Log      LogConfig      `koanf:"log" json:"log,omitempty"`
	Database DatabaseConfig `koanf:"database" json:"database,omitempty"`
	Auth     AuthConfig     `koanf:"auth" json:"auth,omitempty"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=API listen address"`
}

// MetricsConfig configures the observability listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=metrics and health probe listen address"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// DatabaseConfig configures PostgreSQL.
type DatabaseConfig struct {
	URL string `koanf:"url" json:"url,omitempty" jsonschema:"description=PostgreSQL connection URL"`
}

// AuthConfig selects and tunes the authentication strategy.
type AuthConfig struct {
	Type            string   `koanf:"type" json:"type,omitempty" jsonschema:"enum=none,enum=basic,enum=session"`
	SessionName     string   `koanf:"session_name" json:"session_name,omitempty" jsonschema:"description=cookie carrying the session token"`
	SessionDuration int      `koanf:"session_duration" json:"session_duration,omitempty" jsonschema:"minimum=0,description=session lifetime in seconds; 0 never expires"`
	SessionStore    string   `koanf:"session_store" json:"session_store,omitempty" jsonschema:"enum=memory,enum=postgres"`
	EvictExpired    bool     `koanf:"evict_expired" json:"evict_expired,omitempty"`
	SecureCookie    bool     `koanf:"secure_cookie" json:"secure_cookie,omitempty" jsonschema:"description=mark the session cookie Secure"`
	ExcludedPaths   []string `koanf:"excluded_paths" json:"excluded_paths,omitempty"`
	ResetTokenTTL   int      `koanf:"reset_token_ttl" json:"reset_token_ttl,omitempty" jsonschema:"minimum=0,description=reset token lifetime in seconds; 0 never expires"`
}

// SessionTTL returns the configured session lifetime.
func (a AuthConfig) SessionTTL() time.Duration {
	return time.Duration(a.SessionDuration) * time.Second
}

// ResetTTL returns the configured reset token lifetime.
func (a AuthConfig) ResetTTL() time.Duration {
	return time.Duration(a.ResetTokenTTL) * time.Second
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"http-addr":        "http.addr",
	"metrics-addr":     "metrics.addr",
	"log-format":       "log.format",
	"log-level":        "log.level",
	"database-url":     "database.url",
	"auth-type":        "auth.type",
	"session-name":     "auth.session_name",
	"session-duration": "auth.session_duration",
	"session-store":    "auth.session_store",
	"evict-expired":    "auth.evict_expired",
	"secure-cookie":    "auth.secure_cookie",
	"excluded-paths":   "auth.excluded_paths",
	"reset-token-ttl":  "auth.reset_token_ttl",
}

// RegisterFlags adds every config flag with its default to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("http-addr", DefaultHTTPAddr, "API listen address")
	fs.String("metrics-addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", DefaultLogFormat, "log format (json or text)")
	fs.String("log-level", DefaultLogLevel, "log level (debug, info, warn, error)")
	fs.String("database-url", "", "PostgreSQL URL (default: $"+DatabaseURLEnv+")")
	fs.String("auth-type", DefaultAuthType, "auth strategy (none, basic, session)")
	fs.String("session-name", auth.DefaultSessionName, "session cookie name")
	fs.Int("session-duration", 0, "session lifetime in seconds (0 = never expires)")
	fs.String("session-store", DefaultSessionStore, "session backend (memory or postgres)")
	fs.Bool("evict-expired", false, "delete sessions found expired on lookup")
	fs.Bool("secure-cookie", false, "mark the session cookie Secure (HTTPS only)")
	fs.StringSlice("excluded-paths", DefaultExcludedPaths, "paths reachable without credentials")
	fs.Int("reset-token-ttl", DefaultResetTokenTTL, "reset token lifetime in seconds (0 = never expires)")
}

// Load reads path (if set) over the flag defaults, then applies flags the
// user set explicitly. getenv supplies DATABASE_URL when no URL is configured;
// nil means os.Getenv.
func Load(fs *pflag.FlagSet, path string, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	k := koanf.New(".")

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
		if err := ValidateSchema(data); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
	}

	provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	})
	if err := k.Load(provider, nil); err != nil {
		return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = getenv(DatabaseURLEnv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated values and ranges.
func (c *Config) Validate() error {
	invalid := func(key string, value any) error {
		return oops.Code("CONFIG_INVALID").With("key", key).With("value", value).
			Errorf("invalid value for %s", key)
	}

	if c.HTTP.Addr == "" {
		return invalid("http.addr", c.HTTP.Addr)
	}
	if !slices.Contains([]string{"json", "text"}, c.Log.Format) {
		return invalid("log.format", c.Log.Format)
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		return invalid("log.level", c.Log.Level)
	}
	if !slices.Contains([]string{auth.StrategyNone, auth.StrategyBasic, auth.StrategySession}, c.Auth.Type) {
		return invalid("auth.type", c.Auth.Type)
	}
	if !slices.Contains([]string{StoreMemory, StorePostgres}, c.Auth.SessionStore) {
		return invalid("auth.session_store", c.Auth.SessionStore)
	}
	if c.Auth.SessionDuration < 0 {
		return invalid("auth.session_duration", c.Auth.SessionDuration)
	}
	if c.Auth.ResetTokenTTL < 0 {
		return invalid("auth.reset_token_ttl", c.Auth.ResetTokenTTL)
	}
	if c.Auth.SessionStore == StorePostgres && c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").With("key", "database.url").
			Errorf("session_store %q requires database.url", StorePostgres)
	}
	return nil
}

// UsesDatabase reports whether users and sessions can be persisted.
func (c *Config) UsesDatabase() bool {
	return c.Database.URL != ""
}
