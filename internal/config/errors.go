package config

import "errors"

var (
	// ErrMissingAPIBaseURL indicates that the API base URL is not configured
	ErrMissingAPIBaseURL = errors.New("apiBaseUrl is required in configuration")

	// ErrMissingDevSubject indicates dev mode without a subject to impersonate
	ErrMissingDevSubject = errors.New("devSubject is required in dev mode")

	// ErrMissingCredentials indicates neither a static token nor a signing secret and subject
	ErrMissingCredentials = errors.New("auth.token or auth.hs256Secret with auth.subject is required when not in dev mode")

	// ErrMissingJWTSecret indicates a production server without a signing secret
	ErrMissingJWTSecret = errors.New("auth.hs256Secret is required when not in dev mode")

	// ErrMissingAddr indicates the server listen address is empty
	ErrMissingAddr = errors.New("server.addr is required")

	// ErrInvalidRateLimit indicates a non-positive rate limit setting
	ErrInvalidRateLimit = errors.New("server.rateLimit values must be positive")

	// ErrInvalidSummaryRules indicates a tax rate outside [0,1] or negative amounts
	ErrInvalidSummaryRules = errors.New("summary rules are out of range")

	// ErrConfigFileNotFound indicates that the config file was not found
	ErrConfigFileNotFound = errors.New("configuration file not found")

	// ErrInvalidConfigFormat indicates that the config file could not be parsed
	ErrInvalidConfigFormat = errors.New("invalid configuration file format")
)
