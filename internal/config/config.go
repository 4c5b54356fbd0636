// Package config provides configuration loading and validation for the audit service and CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Session backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults.
type Config struct {
	// Storage
	DatabaseURL       string `json:"database_url,omitempty"`        // PostgreSQL connection URL
	SessionBackend    string `json:"session_backend,omitempty"`     // memory, postgres or redis
	RedisURL          string `json:"redis_url,omitempty"`           // Redis URL for the redis session backend
	SessionTTLMinutes int    `json:"session_ttl_minutes,omitempty"` // Idle expiry for memory and redis sessions

	// Server
	Port       int    `json:"port,omitempty"`
	LogFile    string `json:"log_file,omitempty"`   // Rotated JSON log file
	LogLevel   string `json:"log_level,omitempty"`  // debug, info, warn, error
	Production bool   `json:"production,omitempty"` // JSON console logs

	// Collaborators
	APIKey              string `json:"api_key,omitempty"`               // Gemini API key
	MaxRevisionAttempts int    `json:"max_revision_attempts,omitempty"` // Automatic rewrites per session
	QuickSuggestions    bool   `json:"quick_suggestions,omitempty"`     // Use the short suggestion mode

	// Caches
	StageCacheSize    int `json:"stage_cache_size,omitempty"`    // Live stage instances kept by the server
	DocumentCacheSize int `json:"document_cache_size,omitempty"` // Documents kept in memory
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		SessionBackend:      BackendMemory,
		SessionTTLMinutes:   120,
		Port:                8080,
		LogLevel:            "info",
		MaxRevisionAttempts: 3,
		StageCacheSize:      512,
		DocumentCacheSize:   256,
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// ApplyEnv overrides fields from DATABASE_URL, GEMINI_API_KEY, REDIS_URL and AUDIT_PORT.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("AUDIT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config error: AUDIT_PORT must be a number: %w", err)
		}
		c.Port = port
	}
	return nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	switch c.SessionBackend {
	case "", BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config error: 'database_url' is required for the postgres session backend")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("config error: 'redis_url' is required for the redis session backend")
		}
	default:
		return fmt.Errorf("config error: unknown session backend %q", c.SessionBackend)
	}

	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	if c.MaxRevisionAttempts < 0 {
		return fmt.Errorf("config error: 'max_revision_attempts' must be non-negative")
	}
	if c.StageCacheSize < 0 || c.DocumentCacheSize < 0 {
		return fmt.Errorf("config error: cache sizes must be non-negative")
	}
	if c.SessionTTLMinutes < 0 {
		return fmt.Errorf("config error: 'session_ttl_minutes' must be non-negative")
	}
	return nil
}

// MergeWithDefaults returns a new Config with zero fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.SessionBackend == "" {
		result.SessionBackend = defaults.SessionBackend
	}
	if result.RedisURL == "" {
		result.RedisURL = defaults.RedisURL
	}
	if result.LogFile == "" {
		result.LogFile = defaults.LogFile
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}

	if result.SessionTTLMinutes == 0 {
		result.SessionTTLMinutes = defaults.SessionTTLMinutes
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.MaxRevisionAttempts == 0 {
		result.MaxRevisionAttempts = defaults.MaxRevisionAttempts
	}
	if result.StageCacheSize == 0 {
		result.StageCacheSize = defaults.StageCacheSize
	}
	if result.DocumentCacheSize == 0 {
		result.DocumentCacheSize = defaults.DocumentCacheSize
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// SessionTTL returns the session idle expiry.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// Load reads path when non-empty, applies environment overrides, fills
// defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	merged := cfg.MergeWithDefaults(Defaults())
	if err := merged.Validate(); err != nil {
		return Config{}, err
	}
	return merged, nil
}
