package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Load loads configuration from a file path and applies environment variable overrides.
// Validation is deferred to allow CLI flag overrides to be applied first.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := loadFromFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	applyEnvironmentOverrides(cfg)

	return cfg, nil
}

// LoadFromEnvironment creates a configuration using only environment variables
func LoadFromEnvironment() (*Config, error) {
	return Load("")
}

// loadFromFile decodes a JSON or YAML file over the defaults in cfg
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrConfigFileNotFound
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfigFormat, err)
	}
	return nil
}

func envBool(v string) bool {
	return v == "true" || v == "1"
}

// applyEnvironmentOverrides applies configuration from environment variables
func applyEnvironmentOverrides(cfg *Config) {
	if v := os.Getenv("SHOPSYNC_API_BASE_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("SHOPSYNC_DEV_MODE"); envBool(v) {
		cfg.DevMode = true
	}
	if v := os.Getenv("SHOPSYNC_DEV_SUB"); v != "" {
		cfg.DevSubject = v
	}
	if v := os.Getenv("SHOPSYNC_DEBUG"); envBool(v) {
		cfg.Debug = true
	}
	if v := os.Getenv("SHOPSYNC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	// Auth
	if v := os.Getenv("SHOPSYNC_TOKEN"); v != "" {
		cfg.Auth.Token = v
	}
	if v := os.Getenv("SHOPSYNC_JWT_SECRET"); v != "" {
		cfg.Auth.HS256Secret = v
	}
	if v := os.Getenv("SHOPSYNC_JWT_SUBJECT"); v != "" {
		cfg.Auth.Subject = v
	}
	if v := os.Getenv("SHOPSYNC_JWT_ISSUER"); v != "" {
		cfg.Auth.Issuer = v
	}
	if v := os.Getenv("SHOPSYNC_JWT_AUDIENCE"); v != "" {
		cfg.Auth.Audience = v
	}

	// Server
	if v := os.Getenv("SHOPSYNC_HTTP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Server.DatabaseURL = v
	}

	// Summary
	if v := os.Getenv("SHOPSYNC_TAX_RATE"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			log.Warn().Str("value", v).Msg("ignoring invalid SHOPSYNC_TAX_RATE")
		} else {
			cfg.Summary.TaxRate = rate
		}
	}
}
