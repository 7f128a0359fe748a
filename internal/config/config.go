// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/ericfisherdev/credvault/internal/cipher"
)

// Prefix is prepended to every environment variable name, e.g. CREDVAULT_LISTEN_ADDR.
const Prefix = "CREDVAULT"

// Supported storage backends.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ConfigurationError reports a missing or malformed setting. It is fatal:
// the process must not start serving when Load returns one.
type ConfigurationError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("%s_%s %s", Prefix, e.Key, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// env mirrors the raw environment variables.
type env struct {
	EncryptionKey string `envconfig:"ENCRYPTION_KEY"`
	ListenAddr    string `envconfig:"LISTEN_ADDR" default:"127.0.0.1:8080"`
	DBDriver      string `envconfig:"DB_DRIVER" default:"sqlite"`
	DBPath        string `envconfig:"DB_PATH" default:"credvault.db"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	JWTSecret     string `envconfig:"JWT_SECRET"`
	JWTIssuer     string `envconfig:"JWT_ISSUER"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
}

// authEnv is the subset of env needed to issue tokens.
type authEnv struct {
	JWTSecret string `envconfig:"JWT_SECRET"`
	JWTIssuer string `envconfig:"JWT_ISSUER"`
}

// Auth holds the token signing settings.
type Auth struct {
	JWTSecret []byte
	JWTIssuer string
}

// Config holds the validated application configuration.
type Config struct {
	// EncryptionKey is the decoded 32-byte vault key. It is never logged.
	EncryptionKey []byte
	ListenAddr    string
	DBDriver      string
	DBPath        string
	DatabaseURL   string
	JWTSecret     []byte
	JWTIssuer     string
	LogLevel      slog.Level
}

// Load reads configuration from CREDVAULT_* environment variables and returns
// a validated Config. CREDVAULT_ENCRYPTION_KEY (base64 or hex, 32 bytes) and
// CREDVAULT_JWT_SECRET are required; CREDVAULT_DATABASE_URL is required when
// CREDVAULT_DB_DRIVER is postgres. There is no fallback for a missing key.
func Load() (*Config, error) {
	var e env
	if err := envconfig.Process(Prefix, &e); err != nil {
		return nil, &ConfigurationError{Key: "*", Reason: "could not be parsed", Err: err}
	}

	if e.EncryptionKey == "" {
		return nil, &ConfigurationError{Key: "ENCRYPTION_KEY", Reason: "is required"}
	}
	key, err := cipher.ParseKey(e.EncryptionKey)
	if err != nil {
		return nil, &ConfigurationError{Key: "ENCRYPTION_KEY", Reason: "is invalid", Err: err}
	}

	driver := strings.ToLower(strings.TrimSpace(e.DBDriver))
	switch driver {
	case DriverSQLite:
		if e.DBPath == "" {
			return nil, &ConfigurationError{Key: "DB_PATH", Reason: "must not be empty"}
		}
	case DriverPostgres:
		if e.DatabaseURL == "" {
			return nil, &ConfigurationError{Key: "DATABASE_URL", Reason: "is required when DB_DRIVER is postgres"}
		}
	default:
		return nil, &ConfigurationError{Key: "DB_DRIVER", Reason: fmt.Sprintf("has unsupported value %q", e.DBDriver)}
	}

	if e.JWTSecret == "" {
		return nil, &ConfigurationError{Key: "JWT_SECRET", Reason: "is required"}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return nil, &ConfigurationError{Key: "LOG_LEVEL", Reason: "is invalid", Err: err}
	}

	return &Config{
		EncryptionKey: key,
		ListenAddr:    e.ListenAddr,
		DBDriver:      driver,
		DBPath:        e.DBPath,
		DatabaseURL:   e.DatabaseURL,
		JWTSecret:     []byte(e.JWTSecret),
		JWTIssuer:     e.JWTIssuer,
		LogLevel:      level,
	}, nil
}

// LoadAuth reads only the JWT settings. It backs tooling that signs tokens and
// must not require the vault key.
func LoadAuth() (*Auth, error) {
	var e authEnv
	if err := envconfig.Process(Prefix, &e); err != nil {
		return nil, &ConfigurationError{Key: "*", Reason: "could not be parsed", Err: err}
	}
	if e.JWTSecret == "" {
		return nil, &ConfigurationError{Key: "JWT_SECRET", Reason: "is required"}
	}
	return &Auth{JWTSecret: []byte(e.JWTSecret), JWTIssuer: e.JWTIssuer}, nil
}
