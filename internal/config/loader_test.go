package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

var envKeys = []string{
	"SHOPSYNC_API_BASE_URL", "SHOPSYNC_DEV_MODE", "SHOPSYNC_DEV_SUB", "SHOPSYNC_DEBUG",
	"SHOPSYNC_LOG_LEVEL", "SHOPSYNC_TOKEN", "SHOPSYNC_JWT_SECRET", "SHOPSYNC_JWT_SUBJECT",
	"SHOPSYNC_JWT_ISSUER", "SHOPSYNC_JWT_AUDIENCE", "SHOPSYNC_HTTP_ADDR", "DATABASE_URL",
	"SHOPSYNC_TAX_RATE",
}

// clearEnv blanks every variable the loader reads for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		checks  func(*testing.T, *Config)
	}{
		{
			name: "dev mode",
			envVars: map[string]string{
				"SHOPSYNC_API_BASE_URL": "http://shop.local:9000",
				"SHOPSYNC_DEV_MODE":     "true",
				"SHOPSYNC_DEV_SUB":      "alice",
			},
			checks: func(t *testing.T, cfg *Config) {
				if cfg.APIBaseURL != "http://shop.local:9000" {
					t.Errorf("expected APIBaseURL override, got %s", cfg.APIBaseURL)
				}
				if !cfg.DevMode || cfg.DevSubject != "alice" {
					t.Errorf("expected dev mode for alice, got %v %q", cfg.DevMode, cfg.DevSubject)
				}
			},
		},
		{
			name: "signed tokens and server",
			envVars: map[string]string{
				"SHOPSYNC_JWT_SECRET":  "s3cret",
				"SHOPSYNC_JWT_SUBJECT": "bob",
				"SHOPSYNC_HTTP_ADDR":   ":9999",
				"DATABASE_URL":         "postgres://localhost/shop",
				"SHOPSYNC_TAX_RATE":    "0.055",
			},
			checks: func(t *testing.T, cfg *Config) {
				if cfg.Auth.HS256Secret != "s3cret" || cfg.Auth.Subject != "bob" {
					t.Errorf("expected auth from env, got %+v", cfg.Auth)
				}
				if cfg.Server.Addr != ":9999" || cfg.Server.DatabaseURL != "postgres://localhost/shop" {
					t.Errorf("expected server from env, got %+v", cfg.Server)
				}
				if cfg.Summary.TaxRate != 0.055 {
					t.Errorf("expected tax rate 0.055, got %v", cfg.Summary.TaxRate)
				}
			},
		},
		{
			name:    "default values when no env set",
			envVars: map[string]string{},
			checks: func(t *testing.T, cfg *Config) {
				if cfg.APIBaseURL != "http://localhost:8081" {
					t.Errorf("expected default APIBaseURL, got %s", cfg.APIBaseURL)
				}
				if cfg.LogLevel != "info" {
					t.Errorf("expected default LogLevel=info, got %s", cfg.LogLevel)
				}
				if cfg.Summary.ShippingFlatCents != 499 {
					t.Errorf("expected default shipping 499, got %d", cfg.Summary.ShippingFlatCents)
				}
			},
		},
		{
			name:    "invalid tax rate is ignored",
			envVars: map[string]string{"SHOPSYNC_TAX_RATE": "lots"},
			checks: func(t *testing.T, cfg *Config) {
				if cfg.Summary.TaxRate != 0.20 {
					t.Errorf("expected default tax rate, got %v", cfg.Summary.TaxRate)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := LoadFromEnvironment()
			if err != nil {
				t.Fatalf("LoadFromEnvironment() error = %v", err)
			}
			tt.checks(t, cfg)
		})
	}
}

func TestLoad_Files(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "shopsync.yaml")
	yamlData := `
apiBaseUrl: https://shop.example.com
auth:
  token: abc
summary:
  taxRate: 0.1
server:
  rateLimit:
    burst: 10
`
	if err := os.WriteFile(yamlPath, []byte(yamlData), 0o600); err != nil {
		t.Fatal(err)
	}

	jsonPath := filepath.Join(dir, "shopsync.json")
	jsonData := `{"apiBaseUrl":"https://json.example.com","devMode":true,"devSubject":"dev"}`
	if err := os.WriteFile(jsonPath, []byte(jsonData), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(yamlPath)
	if err != nil {
		t.Fatalf("Load(yaml) error = %v", err)
	}
	if cfg.APIBaseURL != "https://shop.example.com" || cfg.Auth.Token != "abc" {
		t.Errorf("unexpected yaml config: %+v", cfg)
	}
	if cfg.Summary.TaxRate != 0.1 || cfg.Summary.ShippingFlatCents != 499 {
		t.Errorf("expected file tax rate over default shipping, got %+v", cfg.Summary)
	}
	if cfg.Server.RateLimit.Burst != 10 || cfg.Server.RateLimit.MaxRequests != 600 {
		t.Errorf("expected partial rate limit override, got %+v", cfg.Server.RateLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	cfg, err = Load(jsonPath)
	if err != nil {
		t.Fatalf("Load(json) error = %v", err)
	}
	if !cfg.DevMode || cfg.DevSubject != "dev" {
		t.Errorf("unexpected json config: %+v", cfg)
	}

	// Environment wins over the file
	t.Setenv("SHOPSYNC_API_BASE_URL", "http://override:1")
	cfg, _ = Load(jsonPath)
	if cfg.APIBaseURL != "http://override:1" {
		t.Errorf("expected env override, got %s", cfg.APIBaseURL)
	}
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	if !errors.Is(err, ErrConfigFileNotFound) {
		t.Errorf("expected ErrConfigFileNotFound, got %v", err)
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("{not json"), 0o600)
	_, err = Load(bad)
	if !errors.Is(err, ErrInvalidConfigFormat) {
		t.Errorf("expected ErrInvalidConfigFormat, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		server  bool
		wantErr error
	}{
		{"missing base url", func(c *Config) { c.APIBaseURL = ""; c.Auth.Token = "t" }, false, ErrMissingAPIBaseURL},
		{"no credentials", func(c *Config) {}, false, ErrMissingCredentials},
		{"secret without subject", func(c *Config) { c.Auth.HS256Secret = "s" }, false, ErrMissingCredentials},
		{"signed ok", func(c *Config) { c.Auth.HS256Secret = "s"; c.Auth.Subject = "u" }, false, nil},
		{"dev without subject", func(c *Config) { c.DevMode = true }, false, ErrMissingDevSubject},
		{"tax rate above one", func(c *Config) { c.Auth.Token = "t"; c.Summary.TaxRate = 1.5 }, false, ErrInvalidSummaryRules},
		{"server without secret", func(c *Config) {}, true, ErrMissingJWTSecret},
		{"server dev mode", func(c *Config) { c.DevMode = true }, true, nil},
		{"server bad rate limit", func(c *Config) { c.DevMode = true; c.Server.RateLimit.Burst = 0 }, true, ErrInvalidRateLimit},
		{"server negative write burst", func(c *Config) { c.DevMode = true; c.Server.RateLimit.WriteBurst = -1 }, true, ErrInvalidRateLimit},
		{"server no addr", func(c *Config) { c.DevMode = true; c.Server.Addr = "" }, true, ErrMissingAddr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			var err error
			if tt.server {
				err = cfg.ValidateServer()
			} else {
				err = cfg.Validate()
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
