// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package config

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment override, e.g. AUTHGATE_SERVER_ADDR.
const EnvPrefix = "AUTHGATE_"

// LoadOptions names the sources Load reads. Empty fields are skipped.
type LoadOptions struct {
	// File is a YAML config file. A missing file is an error.
	File string
	// EnvFile is a dotenv file. A missing file is ignored.
	EnvFile string
	// Flags are applied last. Only flags listed in FlagKeys are read.
	Flags *pflag.FlagSet
	// SkipValidation returns the merged config without calling Validate.
	SkipValidation bool
}

// FlagKeys maps command-line flag names to config keys.
var FlagKeys = map[string]string{
	"addr":         "server.addr",
	"metrics-addr": "metrics.addr",
	"database-url": "database.url",
	"driver":       "database.driver",
	"auto-migrate": "database.auto_migrate",
	"log-format":   "log.format",
	"log-level":    "log.level",
}

// Loaded is a resolved configuration together with the koanf tree it came from.
type Loaded struct {
	Config *Config
	k      *koanf.Koanf
}

// Load layers defaults, the YAML file, the dotenv file, the environment,
// and flags, then unmarshals and validates the result.
func Load(opts LoadOptions) (*Loaded, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}

	if opts.File != "" {
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "file").
				With("path", opts.File).
				Wrap(err)
		}
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "dotenv").
				With("path", opts.EnvFile).
				Wrap(err)
		}
	}

	if dsn, ok := os.LookupEnv("DATABASE_URL"); ok && dsn != "" {
		if err := k.Set("database.url", dsn); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
		}
	}
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if opts.Flags != nil {
		fs := opts.Flags
		flagKey := func(f *pflag.Flag) (string, any) {
			key, ok := FlagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		}
		if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, flagKey), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "unmarshal").Wrap(err)
	}
	if !opts.SkipValidation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return &Loaded{Config: &cfg, k: k}, nil
}

// envValue turns AUTHGATE_TOKENS_DEFAULT_TTL into tokens.default_ttl. Every
// key has exactly one section, so only the first underscore separates.
// List values are comma separated.
func envValue(name, value string) (string, any) {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return "", nil
	}
	key = section + "." + rest
	if key == "server.cors_origins" {
		var origins []string
		for _, o := range strings.Split(value, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		return key, origins
	}
	return key, value
}

const redacted = "[REDACTED]"

// Redacted renders the resolved configuration as YAML with secrets masked.
func (l *Loaded) Redacted() ([]byte, error) {
	c := koanf.New(".")
	if err := c.Load(confmap.Provider(l.k.All(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_RENDER_FAILED").Wrap(err)
	}
	for _, key := range []string{"app.key", "mail.api_key"} {
		if c.String(key) != "" {
			_ = c.Set(key, redacted) //nolint:errcheck // key exists
		}
	}
	if dsn := c.String("database.url"); dsn != "" {
		_ = c.Set("database.url", redactURL(dsn)) //nolint:errcheck // key exists
	}
	out, err := c.Marshal(yaml.Parser())
	if err != nil {
		return nil, oops.Code("CONFIG_RENDER_FAILED").Wrap(err)
	}
	return out, nil
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return redacted
	}
	if _, has := u.User.Password(); has {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
