// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

// Package config loads AuthGate configuration from defaults, a YAML file,
// a .env file, the environment, and command flags, in that order of precedence.
package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/logging"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Mail providers.
const (
	MailLog    = "log"
	MailResend = "resend"
)

// MinKeyBytes is the minimum decoded length of app.key.
const MinKeyBytes = 32

// Config is the complete service configuration.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Metrics      MetricsConfig      `koanf:"metrics"`
	Database     DatabaseConfig     `koanf:"database"`
	App          AppConfig          `koanf:"app"`
	Tokens       TokensConfig       `koanf:"tokens"`
	Reset        ResetConfig        `koanf:"reset"`
	Verification VerificationConfig `koanf:"verification"`
	Hasher       HasherConfig       `koanf:"hasher"`
	Mail         MailConfig         `koanf:"mail"`
	Log          LogConfig          `koanf:"log"`
}

// ServerConfig configures the public API listener.
type ServerConfig struct {
	Addr            string        `koanf:"addr" jsonschema:"description=API listen address (host:port)"`
	CORSOrigins     []string      `koanf:"cors_origins" jsonschema:"description=Allowed CORS origins as glob patterns"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// MetricsConfig configures the observability listener. An empty addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig selects and configures the credential store.
type DatabaseConfig struct {
	Driver         string `koanf:"driver" jsonschema:"enum=postgres,enum=memory"`
	URL            string `koanf:"url"`
	AutoMigrate    bool   `koanf:"auto_migrate"`
	MaxConns       int32  `koanf:"max_conns" jsonschema:"minimum=0"`
	ConnectRetries uint64 `koanf:"connect_retries"`
}

// AppConfig holds the public base URL and the signing key for verification links.
type AppConfig struct {
	Name string `koanf:"name"`
	URL  string `koanf:"url" jsonschema:"format=uri"`
	Key  string `koanf:"key" jsonschema:"description=At least 32 bytes; prefix with base64: for encoded keys"`
}

// TokensConfig sets access token lifetimes. PruneInterval is how often
// serve deletes expired tokens and reset records; zero disables it.
type TokensConfig struct {
	DefaultTTL    time.Duration `koanf:"default_ttl"`
	RememberTTL   time.Duration `koanf:"remember_ttl"`
	PruneInterval time.Duration `koanf:"prune_interval"`
}

// ResetConfig sets password reset timings.
type ResetConfig struct {
	Expiry   time.Duration `koanf:"expiry"`
	Throttle time.Duration `koanf:"throttle"`
}

// VerificationConfig controls whether login requires a verified email.
type VerificationConfig struct {
	Required bool `koanf:"required"`
}

// HasherConfig sets argon2id cost parameters. Zero values use the defaults.
type HasherConfig struct {
	Iterations  uint32 `koanf:"iterations"`
	MemoryKiB   uint32 `koanf:"memory_kib"`
	Parallelism uint8  `koanf:"parallelism"`
}

// MailConfig selects the mail transport.
type MailConfig struct {
	Provider string `koanf:"provider" jsonschema:"enum=log,enum=resend"`
	From     string `koanf:"from"`
	APIKey   string `koanf:"api_key"`
	Endpoint string `koanf:"endpoint"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// Defaults returns the built-in configuration as a flat koanf key map.
func Defaults() map[string]any {
	hp := auth.DefaultArgon2Params()
	return map[string]any{
		"server.addr":              ":8080",
		"server.cors_origins":      []string{"http://localhost:*"},
		"server.shutdown_timeout":  "10s",
		"metrics.addr":             "127.0.0.1:9100",
		"database.driver":          DriverPostgres,
		"database.url":             "",
		"database.auto_migrate":    false,
		"database.max_conns":       10,
		"database.connect_retries": 5,
		"app.name":                 "AuthGate",
		"app.url":                  "http://localhost:8080",
		"app.key":                  "",
		"tokens.default_ttl":       auth.DefaultTokenTTL.String(),
		"tokens.remember_ttl":      auth.RememberTokenTTL.String(),
		"tokens.prune_interval":    "1h",
		"reset.expiry":             auth.ResetTokenExpiry.String(),
		"reset.throttle":           auth.ResetThrottle.String(),
		"verification.required":    true,
		"hasher.iterations":        hp.Iterations,
		"hasher.memory_kib":        hp.MemoryKiB,
		"hasher.parallelism":       hp.Parallelism,
		"mail.provider":            MailLog,
		"mail.from":                "AuthGate <noreply@localhost>",
		"mail.api_key":             "",
		"mail.endpoint":            "",
		"log.format":               "json",
		"log.level":                "info",
	}
}

// SigningKey returns the decoded app key.
func (c *Config) SigningKey() ([]byte, error) {
	if rest, ok := strings.CutPrefix(c.App.Key, "base64:"); ok {
		key, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("field", "app.key").Wrap(err)
		}
		return key, nil
	}
	return []byte(c.App.Key), nil
}

// HasherParams converts the hasher section to auth.Argon2Params.
func (c *Config) HasherParams() auth.Argon2Params {
	return auth.Argon2Params{
		Iterations:  c.Hasher.Iterations,
		MemoryKiB:   c.Hasher.MemoryKiB,
		Parallelism: c.Hasher.Parallelism,
	}
}

// Validate reports every invalid setting in one CONFIG_INVALID error.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	if c.Server.Addr == "" {
		add("server.addr is required")
	}
	for _, origin := range c.Server.CORSOrigins {
		if _, err := glob.Compile(origin); err != nil {
			add("server.cors_origins: invalid pattern %q", origin)
		}
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			add("database.url is required for the postgres driver")
		}
	case DriverMemory:
	default:
		add("database.driver must be %q or %q, got %q", DriverPostgres, DriverMemory, c.Database.Driver)
	}

	if u, err := url.Parse(c.App.URL); err != nil || u.Scheme == "" || u.Host == "" {
		add("app.url must be an absolute URL")
	}
	if key, err := c.SigningKey(); err != nil {
		add("app.key is not valid base64")
	} else if len(key) < MinKeyBytes {
		add("app.key must be at least %d bytes", MinKeyBytes)
	}

	if c.Tokens.DefaultTTL <= 0 {
		add("tokens.default_ttl must be positive")
	}
	if c.Tokens.RememberTTL < c.Tokens.DefaultTTL {
		add("tokens.remember_ttl must not be shorter than tokens.default_ttl")
	}
	if c.Tokens.PruneInterval < 0 {
		add("tokens.prune_interval must not be negative")
	}
	if c.Reset.Expiry <= 0 {
		add("reset.expiry must be positive")
	}
	if c.Reset.Throttle < 0 {
		add("reset.throttle must not be negative")
	}

	switch c.Mail.Provider {
	case MailLog:
	case MailResend:
		if c.Mail.APIKey == "" {
			add("mail.api_key is required for the resend provider")
		}
		if c.Mail.From == "" {
			add("mail.from is required for the resend provider")
		}
	default:
		add("mail.provider must be %q or %q, got %q", MailLog, MailResend, c.Mail.Provider)
	}

	if !slices.Contains([]string{"json", "text"}, c.Log.Format) {
		add("log.format must be json or text")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		add("log.level %q is not a level", c.Log.Level)
	}

	if len(problems) > 0 {
		return oops.Code("CONFIG_INVALID").
			With("problems", problems).
			Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
