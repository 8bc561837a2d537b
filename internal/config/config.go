// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

// Package config loads the service configuration from defaults, an optional
// YAML file, command-line flags and SQUADZ_ environment variables.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/squadz/squadz/internal/token"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SQUADZ_"

// Configuration keys.
const (
	KeyHTTPAddr         = "http-addr"
	KeyMetricsAddr      = "metrics-addr"
	KeyLogFormat        = "log-format"
	KeyLogLevel         = "log-level"
	KeyDatabaseURL      = "database-url"
	KeyJWTAccessSecret  = "jwt-access-secret"
	KeyJWTRefreshSecret = "jwt-refresh-secret"
	KeyAccessTokenTTL   = "access-token-ttl"
	KeyRefreshTokenTTL  = "refresh-token-ttl"
	KeyAppleClientID    = "apple-client-id"
	KeyGoogleClientID   = "google-client-id"
	KeyKafkaBrokers     = "kafka-brokers"
	KeyKafkaTopic       = "kafka-topic"
	KeyAutoMigrate      = "auto-migrate"
)

// Default values.
const (
	DefaultHTTPAddr    = ":8080"
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultLogFormat   = "json"
	DefaultLogLevel    = "info"
	DefaultKafkaTopic  = "account-notifications"
)

// Redacted replaces secret values in Config.Redacted.
const Redacted = "[REDACTED]"

// Config is the effective service configuration.
type Config struct {
	HTTPAddr    string `koanf:"http-addr" yaml:"http-addr"`
	MetricsAddr string `koanf:"metrics-addr" yaml:"metrics-addr"`
	LogFormat   string `koanf:"log-format" yaml:"log-format"`
	LogLevel    string `koanf:"log-level" yaml:"log-level"`

	DatabaseURL string `koanf:"database-url" yaml:"database-url"`
	AutoMigrate bool   `koanf:"auto-migrate" yaml:"auto-migrate"`

	JWTAccessSecret  string        `koanf:"jwt-access-secret" yaml:"jwt-access-secret"`
	JWTRefreshSecret string        `koanf:"jwt-refresh-secret" yaml:"jwt-refresh-secret"`
	AccessTokenTTL   time.Duration `koanf:"access-token-ttl" yaml:"access-token-ttl"`
	RefreshTokenTTL  time.Duration `koanf:"refresh-token-ttl" yaml:"refresh-token-ttl"`

	AppleClientID  string `koanf:"apple-client-id" yaml:"apple-client-id"`
	GoogleClientID string `koanf:"google-client-id" yaml:"google-client-id"`

	KafkaBrokers []string `koanf:"kafka-brokers" yaml:"kafka-brokers"`
	KafkaTopic   string   `koanf:"kafka-topic" yaml:"kafka-topic"`
}

// Defaults returns the built-in value of every key.
func Defaults() map[string]any {
	return map[string]any{
		KeyHTTPAddr:         DefaultHTTPAddr,
		KeyMetricsAddr:      DefaultMetricsAddr,
		KeyLogFormat:        DefaultLogFormat,
		KeyLogLevel:         DefaultLogLevel,
		KeyDatabaseURL:      "",
		KeyJWTAccessSecret:  "",
		KeyJWTRefreshSecret: "",
		KeyAccessTokenTTL:   token.DefaultAccessTTL.String(),
		KeyRefreshTokenTTL:  token.DefaultRefreshTTL.String(),
		KeyAppleClientID:    "",
		KeyGoogleClientID:   "",
		KeyKafkaBrokers:     []string{},
		KeyKafkaTopic:       DefaultKafkaTopic,
		KeyAutoMigrate:      false,
	}
}

// RegisterFlags defines a flag for every operational key. Secrets have no
// flags; set them in the file or the environment.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(KeyHTTPAddr, DefaultHTTPAddr, "API listen address")
	fs.String(KeyMetricsAddr, DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String(KeyLogFormat, DefaultLogFormat, "log format (json or text)")
	fs.String(KeyLogLevel, DefaultLogLevel, "log level (debug, info, warn, error)")
	fs.String(KeyDatabaseURL, "", "PostgreSQL connection URL (default: $DATABASE_URL)")
	fs.Duration(KeyAccessTokenTTL, token.DefaultAccessTTL, "access token lifetime")
	fs.Duration(KeyRefreshTokenTTL, token.DefaultRefreshTTL, "refresh token lifetime")
	fs.String(KeyAppleClientID, "", "Apple Sign In client id (empty = disabled)")
	fs.String(KeyGoogleClientID, "", "Google Sign In client id (empty = disabled)")
	fs.StringSlice(KeyKafkaBrokers, nil, "kafka brokers for notifications (empty = log only)")
	fs.String(KeyKafkaTopic, DefaultKafkaTopic, "kafka topic for notifications")
	fs.Bool(KeyAutoMigrate, false, "apply pending migrations on start")
}

// LoadOptions selects the sources Load reads.
type LoadOptions struct {
	// File is an optional YAML file. A missing file is an error.
	File string
	// Flags, when set, overrides file values with explicitly set flags.
	Flags *pflag.FlagSet
	// DotEnv is a .env file loaded into the process environment when it
	// exists. Variables already set are not overwritten.
	DotEnv string
	// LookupEnv overrides os.LookupEnv for the DATABASE_URL fallback.
	LookupEnv func(string) (string, bool)
}

// Load builds a Config. It does not validate it.
func Load(opts LoadOptions) (*Config, error) {
	if opts.DotEnv != "" {
		if err := godotenv.Load(opts.DotEnv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, oops.Code("CONFIG_DOTENV_FAILED").With("path", opts.DotEnv).Wrap(err)
		}
	}
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}
	if opts.File != "" {
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "file").With("path", opts.File).Wrap(err)
		}
	}
	if opts.Flags != nil {
		if err := k.Load(posflag.Provider(opts.Flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}
	known := Defaults()
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", "-")
		if _, ok := known[key]; !ok {
			return ""
		}
		return key
	}), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if cfg.DatabaseURL == "" {
		if url, ok := lookup("DATABASE_URL"); ok {
			cfg.DatabaseURL = url
		}
	}
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers)
	return &cfg, nil
}

// splitList flattens comma-joined entries and drops blanks.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks cfg and names the first invalid key.
func (c *Config) Validate() error {
	invalid := func(key, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("key", key).Errorf("%s: "+format, append([]any{key}, args...)...)
	}

	if c.HTTPAddr == "" {
		return invalid(KeyHTTPAddr, "is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return invalid(KeyLogFormat, "must be 'json' or 'text', got %q", c.LogFormat)
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return invalid(KeyLogLevel, "unknown level %q", c.LogLevel)
	}
	if c.DatabaseURL == "" {
		return invalid(KeyDatabaseURL, "is required (set %sDATABASE_URL or DATABASE_URL)", EnvPrefix)
	}
	if len(c.JWTAccessSecret) < token.MinKeyLength {
		return invalid(KeyJWTAccessSecret, "must be at least %d bytes", token.MinKeyLength)
	}
	if len(c.JWTRefreshSecret) < token.MinKeyLength {
		return invalid(KeyJWTRefreshSecret, "must be at least %d bytes", token.MinKeyLength)
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return invalid(KeyJWTRefreshSecret, "must differ from %s", KeyJWTAccessSecret)
	}
	if c.AccessTokenTTL <= 0 {
		return invalid(KeyAccessTokenTTL, "must be positive")
	}
	if c.RefreshTokenTTL <= c.AccessTokenTTL {
		return invalid(KeyRefreshTokenTTL, "must be longer than %s", KeyAccessTokenTTL)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return invalid(KeyKafkaTopic, "is required when %s is set", KeyKafkaBrokers)
	}
	return nil
}

// Redacted returns a copy of c safe to print.
func (c Config) Redacted() Config {
	if c.JWTAccessSecret != "" {
		c.JWTAccessSecret = Redacted
	}
	if c.JWTRefreshSecret != "" {
		c.JWTRefreshSecret = Redacted
	}
	if c.DatabaseURL != "" {
		c.DatabaseURL = redactURL(c.DatabaseURL)
	}
	c.KafkaBrokers = append([]string(nil), c.KafkaBrokers...)
	return c
}

// redactURL hides the password of a connection URL.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return Redacted
	}
	return u.Redacted()
}
