package storeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MaxRecoveries bounds how often one request is replayed after the client
// repaired its own credentials (401, 409 epoch, 428). Waiting and retrying
// after a failure is left to the caller's retry policy.
const MaxRecoveries = 1

// HTTPClient wraps http.Client with authentication and session headers.
// Automatically injects:
// - Authorization: Bearer <token> (or X-Debug-Sub in dev mode)
// - X-Sync-Session / X-Sync-Epoch
// - X-Correlation-ID
//
// Transport-level recoveries, each replaying the request immediately:
// - 401: invalidate the cached token
// - 409 epoch_mismatch: refresh the session
// - 428: session missing or expired, refresh
//
// A 429 is returned at once as ErrRateLimited carrying Retry-After.
// Anything else is handed back to the caller untouched.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenProvider   // nil in dev mode
	sessions   SessionProvider // nil disables session headers
	debugSub   string
}

// Option customizes an HTTPClient
type Option func(*HTTPClient)

// WithHTTPClient overrides the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// NewHTTPClient creates an authenticated client.
// Pass a nil tokens provider and a debugSub for dev mode.
func NewHTTPClient(baseURL string, tokens TokenProvider, sessions SessionProvider, debugSub string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
		sessions:   sessions,
		debugSub:   debugSub,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server root the client talks to
func (c *HTTPClient) BaseURL() string { return c.baseURL }

// Do executes req with header injection and transport-level recoveries
func (c *HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	correlationID := uuid.New().String()

	logger := log.Ctx(ctx).With().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("correlationId", correlationID).
		Logger()
	if logger.GetLevel() == zerolog.Disabled {
		logger = log.With().
			Str("method", req.Method).
			Str("url", req.URL.String()).
			Str("correlationId", correlationID).
			Logger()
	}

	return c.doWithRetry(ctx, req, &logger, correlationID, 0)
}

func (c *HTTPClient) doWithRetry(ctx context.Context, req *http.Request, logger *zerolog.Logger, correlationID string, retryCount int) (*http.Response, error) {
	reqClone, err := cloneRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to clone request: %w", err)
	}

	reqClone.Header.Set("X-Correlation-ID", correlationID)

	if c.tokens == nil {
		reqClone.Header.Set("X-Debug-Sub", c.debugSub)
	} else {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get auth token: %w", err)
		}
		reqClone.Header.Set("Authorization", "Bearer "+token)
	}

	if c.sessions != nil {
		session, err := c.sessions.EnsureSession(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to ensure session: %w", err)
		}
		reqClone.Header.Set("X-Sync-Session", session.ID)
		reqClone.Header.Set("X-Sync-Epoch", strconv.Itoa(session.Epoch))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(reqClone)
	duration := time.Since(start)

	if err != nil {
		logger.Error().Err(err).Dur("duration", duration).Msg("HTTP request failed")
		return nil, err
	}

	logger.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Int("retryCount", retryCount).
		Msg("HTTP request completed")

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return c.handleUnauthorized(ctx, req, resp, logger, correlationID, retryCount)
	case http.StatusConflict:
		return c.handleConflict(ctx, req, resp, logger, correlationID, retryCount)
	case http.StatusPreconditionRequired:
		return c.handlePreconditionRequired(ctx, req, resp, logger, correlationID, retryCount)
	case http.StatusTooManyRequests:
		return nil, c.rateLimited(resp, logger)
	default:
		return resp, nil
	}
}

func (c *HTTPClient) handleUnauthorized(ctx context.Context, req *http.Request, resp *http.Response, logger *zerolog.Logger, correlationID string, retryCount int) (*http.Response, error) {
	resp.Body.Close()

	if c.tokens == nil {
		logger.Error().Msg("401 in dev mode, server may not accept X-Debug-Sub")
		return nil, fmt.Errorf("%w: dev mode subject rejected", ErrUnauthorized)
	}

	if retryCount >= MaxRecoveries {
		logger.Warn().Msg("401 Unauthorized - token refresh did not help")
		return nil, fmt.Errorf("%w after %d retries", ErrUnauthorized, retryCount)
	}

	logger.Warn().Msg("401 Unauthorized - invalidating token and retrying")
	c.tokens.Invalidate()

	return c.doWithRetry(ctx, req, logger, correlationID, retryCount+1)
}

// handleConflict recovers from epoch mismatches only. Business conflicts
// (duplicate product, stale data) go back to the caller with the body intact.
func (c *HTTPClient) handleConflict(ctx context.Context, req *http.Request, resp *http.Response, logger *zerolog.Logger, correlationID string, retryCount int) (*http.Response, error) {
	bodyBytes, err := io.ReadAll(resp.Body)
	resp.Body.Close()

	var errResp errorResponse
	if err == nil && json.Unmarshal(bodyBytes, &errResp) == nil && errResp.Error == "epoch_mismatch" {
		if h := resp.Header.Get("X-Sync-Epoch"); h != "" {
			if e, perr := strconv.Atoi(h); perr == nil {
				errResp.Epoch = e
			}
		}
		return c.handleEpochMismatch(ctx, req, errResp.Epoch, logger, correlationID, retryCount)
	}

	logger.Debug().Str("error", errResp.Error).Msg("409 Conflict returned to caller")
	resp.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	return resp, nil
}

func (c *HTTPClient) handleEpochMismatch(ctx context.Context, req *http.Request, serverEpoch int, logger *zerolog.Logger, correlationID string, retryCount int) (*http.Response, error) {
	if retryCount >= MaxRecoveries || c.sessions == nil {
		logger.Error().Int("serverEpoch", serverEpoch).Msg("epoch mismatch, giving up")
		return nil, ErrEpochMismatch{ServerEpoch: serverEpoch}
	}

	logger.Warn().Int("serverEpoch", serverEpoch).Msg("epoch mismatch - refreshing session and retrying")
	c.sessions.InvalidateSession()

	return c.doWithRetry(ctx, req, logger, correlationID, retryCount+1)
}

func (c *HTTPClient) handlePreconditionRequired(ctx context.Context, req *http.Request, resp *http.Response, logger *zerolog.Logger, correlationID string, retryCount int) (*http.Response, error) {
	resp.Body.Close()

	if c.sessions == nil {
		return nil, fmt.Errorf("session required but no session manager configured")
	}
	if retryCount >= MaxRecoveries {
		logger.Error().Msg("428 Precondition Required - fresh session rejected")
		return nil, fmt.Errorf("session precondition failed after %d session refresh", retryCount)
	}

	logger.Warn().Msg("428 Precondition Required - refreshing session and retrying")
	c.sessions.InvalidateSession()

	return c.doWithRetry(ctx, req, logger, correlationID, retryCount+1)
}

// rateLimited turns a 429 into ErrRateLimited without replaying the request
func (c *HTTPClient) rateLimited(resp *http.Response, logger *zerolog.Logger) error {
	resp.Body.Close()

	retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
	logger.Warn().
		Dur("retryAfter", retryAfter).
		Str("rateLimitRemaining", resp.Header.Get("X-RateLimit-Remaining")).
		Msg("rate limited")

	return ErrRateLimited{RetryAfter: retryAfter}
}

// cloneRequest copies req so the body can be replayed on retry.
// Auth and session headers are dropped; they are re-injected per attempt.
func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	reqClone, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}

	for k, v := range req.Header {
		switch k {
		case "Authorization", "X-Sync-Session", "X-Sync-Epoch", "X-Debug-Sub":
			continue
		}
		reqClone.Header[k] = v
	}

	return reqClone, nil
}

// parseRetryAfter accepts integer seconds or an HTTP-date
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}

	return 0
}
