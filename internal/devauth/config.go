package devauth

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the development service.
type Config struct {
	Addr       string        `envconfig:"DEVAUTH_ADDR" default:":8081"`
	SigningKey string        `envconfig:"DEVAUTH_SIGNING_KEY" default:"devauth-insecure-signing-key"`
	TokenTTL   time.Duration `envconfig:"DEVAUTH_TOKEN_TTL" default:"12h"`
	LogFormat  string        `envconfig:"LOG_FORMAT" default:"pretty"`
	Seed       bool          `envconfig:"DEVAUTH_SEED" default:"true"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if len(cfg.SigningKey) < 16 {
		return nil, errors.New("DEVAUTH_SIGNING_KEY must be at least 16 characters")
	}
	if cfg.TokenTTL <= 0 {
		return nil, errors.New("DEVAUTH_TOKEN_TTL must be positive")
	}
	return &cfg, nil
}
