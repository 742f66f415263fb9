package cli

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "PANEL_CONFIG"

const envPrefix = "PANEL_"

// Config holds panelctl settings.
type Config struct {
	AuthServiceURL string        `koanf:"auth_service_url"`
	Timeout        time.Duration `koanf:"timeout"`
	CredentialFile string        `koanf:"credential_file"`
}

func defaultConfig(home string) Config {
	return Config{
		AuthServiceURL: "http://127.0.0.1:8081",
		Timeout:        10 * time.Second,
		CredentialFile: filepath.Join(home, ".config", "panel", "credential"),
	}
}

// LoadConfig layers defaults, the optional YAML file and PANEL_* variables,
// later sources winning.
func LoadConfig() (Config, error) {
	home, _ := os.UserHomeDir()

	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(home), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path := configPath(home); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, any) {
		if key == ConfigPathEnvVar || value == "" {
			return "", nil
		}
		return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate ensures the configuration is usable.
func (c Config) Validate() error {
	u, err := url.Parse(c.AuthServiceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("auth_service_url must be an absolute http(s) URL, got %q", c.AuthServiceURL)
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if strings.TrimSpace(c.CredentialFile) == "" {
		return errors.New("credential_file is required")
	}
	return nil
}

func configPath(home string) string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	if home == "" {
		return ""
	}
	path := filepath.Join(home, ".config", "panel", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
