package config

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the API process.
type Config struct {
	Port      string `envconfig:"PORT" default:"8080"`
	AppEnv    string `envconfig:"APP_ENV" default:"development"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	// StorageBackend selects the tree store adapter: "memory" or "postgres".
	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"memory"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`

	// AuthMode selects identity resolution: "jwt" verifies bearer tokens
	// against a JWKS endpoint; "dev" trusts the X-Debug-Subject header.
	AuthMode   string `envconfig:"AUTH_MODE" default:"jwt"`
	DevSubject string `envconfig:"DEV_SUBJECT" default:"dev|local"`

	JWTIssuer   string `envconfig:"JWT_ISSUER"`
	JWTAudience string `envconfig:"JWT_AUDIENCE"`
	JWKSURL     string `envconfig:"JWT_JWKS_URL"`

	// Reasonable defaults that make local/dev/test behavior predictable.
	JWTClockSkew        time.Duration `envconfig:"JWT_CLOCK_SKEW" default:"30s"`
	JWKSRefreshInterval time.Duration `envconfig:"JWT_JWKS_REFRESH_INTERVAL" default:"5m"`
	JWTHTTPTimeout      time.Duration `envconfig:"JWT_HTTP_TIMEOUT" default:"5s"`

	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.AuthMode == "jwt" && (cfg.JWTIssuer == "" || cfg.JWTAudience == "" || cfg.JWKSURL == "") {
		return nil, errors.New("missing required env vars: JWT_ISSUER, JWT_AUDIENCE, JWT_JWKS_URL")
	}
	if cfg.StorageBackend == "postgres" && cfg.DatabaseURL == "" {
		return nil, errors.New("STORAGE_BACKEND=postgres requires DATABASE_URL")
	}
	return &cfg, nil
}

// IsProduction reports whether the process runs with production settings.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
