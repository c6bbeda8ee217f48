// Package config provides layered configuration for the authkit CLI.
// Precedence: flags > environment > config file > defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the resolved CLI configuration.
type Config struct {
	// Endpoint is the base URL of the authentication service.
	Endpoint string `yaml:"endpoint" env:"AUTHKIT_ENDPOINT"`
	// Method selects the authentication method: oauth, lightweight, legacy,
	// or basic.
	Method string `yaml:"method" env:"AUTHKIT_METHOD"`

	// OAuth client credentials, used by the oauth method only.
	ClientID     string `yaml:"client_id" env:"AUTHKIT_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"AUTHKIT_CLIENT_SECRET"`

	// LoginPath and RefreshPath locate the token endpoints on Endpoint.
	LoginPath   string `yaml:"login_path" env:"AUTHKIT_LOGIN_PATH"`
	RefreshPath string `yaml:"refresh_path" env:"AUTHKIT_REFRESH_PATH"`

	// Service namespaces keyring entries and the vault file.
	Service string `yaml:"service" env:"AUTHKIT_SERVICE"`
	// Dir is the state directory for the vault and fallback files.
	Dir string `yaml:"dir" env:"AUTHKIT_DIR"`
	// Prompt is shown on every protected-tier access.
	Prompt string `yaml:"prompt" env:"AUTHKIT_PROMPT"`
	// NoKeyring forces the plaintext file fallback.
	NoKeyring bool `yaml:"no_keyring" env:"AUTHKIT_NO_KEYRING"`

	// KeyBits is the RSA modulus size for newly generated signing keys.
	KeyBits int `yaml:"key_bits" env:"AUTHKIT_KEY_BITS"`

	// Token overrides stored credentials when set (inspection and CI use).
	Token string `yaml:"-" env:"AUTHKIT_TOKEN"`

	Verbose bool `yaml:"verbose" env:"AUTHKIT_VERBOSE"`
}

// Default returns the default configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Method:    "oauth",
		LoginPath: "/oauth/token",
		Service:   "authkit",
		Dir:       filepath.Join(home, ".authkit"),
		Prompt:    "Verify your identity to access stored credentials",
		KeyBits:   2048,
	}
}

// Load resolves configuration from the file and environment layers. Flag
// overrides are applied afterwards by the command layer.
func Load() (*Config, error) {
	cfg := Default()

	if err := loadFile(cfg, filePath()); err != nil {
		return nil, err
	}

	// A .env in the working directory feeds the environment layer; absence
	// is fine.
	_ = godotenv.Load()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}
	return cfg, nil
}

func filePath() string {
	if p := os.Getenv("AUTHKIT_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".authkit", "config.yaml")
}

func loadFile(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}
