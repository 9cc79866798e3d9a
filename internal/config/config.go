// Package config loads runtime settings from the environment (and an optional
// .env file).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every variable, e.g. DANAOM_DB_DSN.
const EnvPrefix = "DANAOM"

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory" // nothing persists past exit
)

// Config is the process configuration. Flags in cmd/ may override fields
// after Load.
type Config struct {
	DBDriver string `envconfig:"DB_DRIVER" default:"sqlite" validate:"oneof=sqlite postgres memory"`
	DBDSN    string `envconfig:"DB_DSN" default:"file:danaom.db" validate:"required"`

	NaverBaseURL      string        `envconfig:"NAVER_BASE_URL" default:"https://openapi.naver.com/" validate:"required,url"`
	NaverClientID     string        `envconfig:"NAVER_CLIENT_ID"`
	NaverClientSecret string        `envconfig:"NAVER_CLIENT_SECRET"`
	HTTPTimeout       time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s" validate:"gt=0"`

	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	MetricsAddr string `envconfig:"METRICS_ADDR"`
}

// Load reads .env files (missing ones are ignored) and then the environment.
func Load(dotenv ...string) (*Config, error) {
	if err := godotenv.Load(dotenv...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
