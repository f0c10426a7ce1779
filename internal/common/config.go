// Package common provides shared utilities for farmor-aktier
package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Simon-Egedal/farmor-aktier/internal/interfaces"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for farmor-aktier
type Config struct {
	Environment  string          `toml:"environment"`
	BaseCurrency string          `toml:"base_currency"` // Currency all portfolio totals are reported in (default "DKK")
	Server       ServerConfig    `toml:"server"`
	Storage      StorageConfig   `toml:"storage"`
	Clients      ClientsConfig   `toml:"clients"`
	Logging      LoggingConfig   `toml:"logging"`
	Auth         AuthConfig      `toml:"auth"`
	Portfolio    PortfolioConfig `toml:"portfolio"`
}

// PortfolioConfig holds the planned allocation used by portfolio setup.
type PortfolioConfig struct {
	Bankroll   float64           `toml:"bankroll"` // starting cash for setup, in base currency
	Allocation []PlannedPosition `toml:"allocation"`
}

// PlannedPosition is one target position in the planned allocation.
type PlannedPosition struct {
	Ticker   string  `toml:"ticker"`
	Amount   float64 `toml:"amount"` // target spend in base currency
	Category string  `toml:"category"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds SurrealDB connection configuration.
type StorageConfig struct {
	Address   string `toml:"address"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	DataPath  string `toml:"data_path"` // Local path for raw artifacts (rendered charts)
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	EODHD EODHDConfig `toml:"eodhd"`
}

// EODHDConfig holds EODHD API configuration
type EODHDConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
	CacheTTL  string `toml:"cache_ttl"` // How long quotes/fundamentals are served from cache
}

// GetTimeout parses and returns the timeout duration
func (c *EODHDConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetCacheTTL parses and returns the market data cache TTL
func (c *EODHDConfig) GetCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// AuthConfig holds JWT authentication configuration.
type AuthConfig struct {
	JWTSecret   string `toml:"jwt_secret"`
	TokenExpiry string `toml:"token_expiry"` // duration string, default "24h"
}

// GetTokenExpiry parses and returns the token expiry duration.
func (c *AuthConfig) GetTokenExpiry() time.Duration {
	d, err := time.ParseDuration(c.TokenExpiry)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment:  "development",
		BaseCurrency: "DKK",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Address:   "ws://localhost:8000",
			Username:  "root",
			Password:  "root",
			Namespace: "farmor",
			Database:  "farmor",
			DataPath:  "data",
		},
		Clients: ClientsConfig{
			EODHD: EODHDConfig{
				BaseURL:   "https://eodhd.com/api",
				RateLimit: 10,
				Timeout:   "30s",
				CacheTTL:  "10m",
			},
		},
		Auth: AuthConfig{
			JWTSecret:   "dev-jwt-secret-change-in-production",
			TokenExpiry: "24h",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// Apply environment overrides
	applyEnvOverrides(config)

	// Validate base currency
	validateBaseCurrency(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FARMOR_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("FARMOR_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("FARMOR_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("FARMOR_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if addr := os.Getenv("FARMOR_SURREALDB_ADDRESS"); addr != "" {
		config.Storage.Address = addr
	}
	if user := os.Getenv("FARMOR_SURREALDB_USERNAME"); user != "" {
		config.Storage.Username = user
	}
	if pass := os.Getenv("FARMOR_SURREALDB_PASSWORD"); pass != "" {
		config.Storage.Password = pass
	}
	if ns := os.Getenv("FARMOR_SURREALDB_NAMESPACE"); ns != "" {
		config.Storage.Namespace = ns
	}
	if db := os.Getenv("FARMOR_SURREALDB_DATABASE"); db != "" {
		config.Storage.Database = db
	}

	if bc := os.Getenv("FARMOR_BASE_CURRENCY"); bc != "" {
		config.BaseCurrency = strings.ToUpper(bc)
	}

	if br := os.Getenv("FARMOR_BANKROLL"); br != "" {
		if v, err := strconv.ParseFloat(br, 64); err == nil {
			config.Portfolio.Bankroll = v
		}
	}

	// Auth overrides
	if v := os.Getenv("FARMOR_AUTH_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("FARMOR_AUTH_TOKEN_EXPIRY"); v != "" {
		config.Auth.TokenExpiry = v
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ResolveAPIKey resolves an API key from environment, InternalStore, or fallback
func ResolveAPIKey(ctx context.Context, store interfaces.InternalStore, name string, fallback string) (string, error) {
	// Environment variable mapping
	keyToEnvMapping := map[string][]string{
		"eodhd_api_key": {"EODHD_API_KEY", "FARMOR_EODHD_API_KEY"},
	}

	// Check environment variables first (highest priority)
	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	// Try InternalStore system KV (medium priority)
	if store != nil {
		apiKey, err := store.GetSystemKV(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	// Fallback (lowest priority)
	if fallback != "" {
		return fallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or store", name)
}

// validateBaseCurrency upper-cases BaseCurrency, defaulting to "DKK" when empty.
func validateBaseCurrency(config *Config) {
	bc := strings.ToUpper(strings.TrimSpace(config.BaseCurrency))
	if bc == "" {
		bc = "DKK"
	}
	config.BaseCurrency = bc
}
