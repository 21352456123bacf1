// Package config loads shopsync settings shared by the CLI and the server.
package config

import (
	"time"

	"github.com/erauner12/shopsync/internal/summary"
)

// Config holds all configuration for shopctl and the reference server
type Config struct {
	APIBaseURL string        `json:"apiBaseUrl" yaml:"apiBaseUrl"`
	DevMode    bool          `json:"devMode" yaml:"devMode"`       // enables X-Debug-Sub header fallback
	DevSubject string        `json:"devSubject" yaml:"devSubject"` // subject sent as X-Debug-Sub
	Auth       AuthConfig    `json:"auth" yaml:"auth"`
	Server     ServerConfig  `json:"server" yaml:"server"`
	Summary    summary.Rules `json:"summary" yaml:"summary"`
	Debug      bool          `json:"debug" yaml:"debug"`
	LogLevel   string        `json:"logLevel" yaml:"logLevel"`
}

// AuthConfig describes how requests are authenticated.
// A static Token wins; otherwise HS256 tokens are minted for Subject.
type AuthConfig struct {
	Token           string `json:"token,omitempty" yaml:"token,omitempty"`
	HS256Secret     string `json:"hs256Secret,omitempty" yaml:"hs256Secret,omitempty"`
	Subject         string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Issuer          string `json:"issuer,omitempty" yaml:"issuer,omitempty"`
	Audience        string `json:"audience,omitempty" yaml:"audience,omitempty"`
	TokenTTLSeconds int    `json:"tokenTtlSeconds,omitempty" yaml:"tokenTtlSeconds,omitempty"`
}

// ServerConfig is only read by cmd/server
type ServerConfig struct {
	Addr              string          `json:"addr" yaml:"addr"`
	DatabaseURL       string          `json:"databaseUrl,omitempty" yaml:"databaseUrl,omitempty"` // empty for memory, "sqlite:<path>", or a postgres URL
	DBMaxConns        int32           `json:"dbMaxConns,omitempty" yaml:"dbMaxConns,omitempty"`
	SessionTTLSeconds int             `json:"sessionTtlSeconds" yaml:"sessionTtlSeconds"`
	RateLimit         RateLimitConfig `json:"rateLimit" yaml:"rateLimit"`
}

// RateLimitConfig mirrors the server's token buckets. Write limits apply to
// mutating requests; zero reuses the read limits.
type RateLimitConfig struct {
	WindowSeconds    int `json:"windowSeconds" yaml:"windowSeconds"`
	MaxRequests      int `json:"maxRequests" yaml:"maxRequests"`
	Burst            int `json:"burst" yaml:"burst"`
	WriteMaxRequests int `json:"writeMaxRequests,omitempty" yaml:"writeMaxRequests,omitempty"`
	WriteBurst       int `json:"writeBurst,omitempty" yaml:"writeBurst,omitempty"`
}

// Validate checks the client side of the configuration
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return ErrMissingAPIBaseURL
	}

	if c.DevMode {
		if c.DevSubject == "" {
			return ErrMissingDevSubject
		}
	} else if c.Auth.Token == "" && (c.Auth.HS256Secret == "" || c.Auth.Subject == "") {
		return ErrMissingCredentials
	}

	return c.validateSummary()
}

// ValidateServer checks the server side of the configuration
func (c *Config) ValidateServer() error {
	if c.Server.Addr == "" {
		return ErrMissingAddr
	}
	if !c.DevMode && c.Auth.HS256Secret == "" {
		return ErrMissingJWTSecret
	}
	rl := c.Server.RateLimit
	if rl.WindowSeconds <= 0 || rl.MaxRequests <= 0 || rl.Burst <= 0 || rl.WriteMaxRequests < 0 || rl.WriteBurst < 0 {
		return ErrInvalidRateLimit
	}
	return c.validateSummary()
}

func (c *Config) validateSummary() error {
	r := c.Summary
	if r.TaxRate < 0 || r.TaxRate > 1 || r.ShippingFlatCents < 0 || r.FreeShippingThreshold < 0 {
		return ErrInvalidSummaryRules
	}
	return nil
}

// TokenTTL returns the lifetime of minted tokens
func (c *Config) TokenTTL() time.Duration {
	if c.Auth.TokenTTLSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(c.Auth.TokenTTLSeconds) * time.Second
}

// SessionTTL returns how long the server keeps sync sessions alive
func (c *Config) SessionTTL() time.Duration {
	if c.Server.SessionTTLSeconds <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Server.SessionTTLSeconds) * time.Second
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL: "http://localhost:8081",
		LogLevel:   "info",
		Server: ServerConfig{
			Addr:              ":8081",
			SessionTTLSeconds: 1800,
			RateLimit: RateLimitConfig{
				WindowSeconds:    60,
				MaxRequests:      600,
				Burst:            120,
				WriteMaxRequests: 120,
				WriteBurst:       30,
			},
		},
		Summary: summary.DefaultRules(),
	}
}
