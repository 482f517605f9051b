// Package config loads the keeper configuration from an optional YAML file
// with KEEPER_* environment overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks when no explicit path is given.
const DefaultPath = "keeper.yaml"

// Config is the full runtime configuration.
type Config struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	DBPath         string `yaml:"db_path"`
	FingerprintDir string `yaml:"fingerprint_dir"`

	Browser BrowserConfig `yaml:"browser"`
	Auth    AuthConfig    `yaml:"auth"`
}

// BrowserConfig controls how the driven browser is launched.
type BrowserConfig struct {
	Headless       bool   `yaml:"headless"`
	ExecutablePath string `yaml:"executable_path"`
	UserAgent      string `yaml:"user_agent"`
}

// AuthConfig overrides the authorization endpoint defaults.
type AuthConfig struct {
	AuthURL     string `yaml:"auth_url"`
	ClientID    string `yaml:"client_id"`
	RedirectURL string `yaml:"redirect_url"`
}

func defaults() Config {
	return Config{
		Host:           "127.0.0.1",
		Port:           8788,
		DBPath:         "data/accounts.db",
		FingerprintDir: "data/fingerprints",
		Browser:        BrowserConfig{Headless: true},
	}
}

// Load reads the config file at path (DefaultPath when empty) and applies
// environment overrides. A missing file is not an error; defaults apply.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("failed to read %s: %w", path, err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("KEEPER_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("KEEPER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("KEEPER_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("KEEPER_FINGERPRINT_DIR"); v != "" {
		cfg.FingerprintDir = v
	}
	if v := os.Getenv("KEEPER_HEADLESS"); v != "" {
		if headless, err := strconv.ParseBool(v); err == nil {
			cfg.Browser.Headless = headless
		}
	}
	if v := os.Getenv("KEEPER_CHROME_PATH"); v != "" {
		cfg.Browser.ExecutablePath = v
	}
	if v := os.Getenv("KEEPER_AUTH_URL"); v != "" {
		cfg.Auth.AuthURL = v
	}
	if v := os.Getenv("KEEPER_CLIENT_ID"); v != "" {
		cfg.Auth.ClientID = v
	}
	if v := os.Getenv("KEEPER_REDIRECT_URL"); v != "" {
		cfg.Auth.RedirectURL = v
	}
}

// Addr renders the host:port listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
