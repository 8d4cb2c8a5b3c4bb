// Package config loads application configuration from a YAML file with
// environment-variable overrides. A local .env file is honored for
// development.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Vendor   VendorConfig   `yaml:"vendor"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds Postgres settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the optional Redis connection used for the campaign
// dispatch lock. An empty URL disables Redis; the lock falls back to a
// Postgres advisory lock.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// OpenAIConfig holds AI provider settings. An empty API key disables the
// AI endpoints.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
}

// VendorConfig tunes the simulated messaging vendor.
type VendorConfig struct {
	SuccessRate float64 `yaml:"success_rate"`
	MinDelayMS  int     `yaml:"min_delay_ms"`
	MaxDelayMS  int     `yaml:"max_delay_ms"`
}

// AuthConfig maps API bearer tokens to principal IDs.
type AuthConfig struct {
	Tokens map[string]string `yaml:"tokens"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Load reads the YAML file at path and applies defaults. An empty path
// yields a default configuration.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Vendor.SuccessRate == 0 {
		cfg.Vendor.SuccessRate = 0.9
	}
	if cfg.Vendor.MinDelayMS == 0 {
		cfg.Vendor.MinDelayMS = 50
	}
	if cfg.Vendor.MaxDelayMS == 0 {
		cfg.Vendor.MaxDelayMS = 550
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Server.Port)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("API_TOKENS"); v != "" {
		tokens, err := parseTokenPairs(v)
		if err != nil {
			return nil, err
		}
		cfg.Auth.Tokens = tokens
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg, nil
}

// parseTokenPairs parses "token:principal,token2:principal2".
func parseTokenPairs(raw string) (map[string]string, error) {
	tokens := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, principal, ok := strings.Cut(pair, ":")
		if !ok || token == "" || principal == "" {
			return nil, fmt.Errorf("malformed API_TOKENS entry %q", pair)
		}
		tokens[token] = principal
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("API_TOKENS set but empty")
	}
	return tokens, nil
}
