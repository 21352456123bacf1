package storeclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// SessionRefreshBuffer is how long before expiry a cached session is replaced
const SessionRefreshBuffer = 1 * time.Minute

// SessionManager creates and caches the sync session for one principal
type SessionManager struct {
	mu         sync.RWMutex
	baseURL    string
	httpClient *http.Client
	tokens     TokenProvider
	debugSub   string // used when tokens is nil

	cached *Session
}

// NewSessionManager creates a session manager. Pass nil tokens and a
// debugSub for dev mode.
func NewSessionManager(baseURL string, tokens TokenProvider, debugSub string) *SessionManager {
	return &SessionManager{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
		debugSub:   debugSub,
	}
}

// EnsureSession returns a valid session, creating one if needed.
// Concurrent callers share a single creation.
func (sm *SessionManager) EnsureSession(ctx context.Context) (*Session, error) {
	sm.mu.RLock()
	cached := sm.cached
	sm.mu.RUnlock()

	if cached.fresh() {
		return cached, nil
	}
	return sm.createSession(ctx)
}

// Current returns the cached session without contacting the server
func (sm *SessionManager) Current() (*Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.cached.fresh() {
		return nil, false
	}
	return sm.cached, true
}

// InvalidateSession clears the cached session
func (sm *SessionManager) InvalidateSession() {
	sm.mu.Lock()
	sm.cached = nil
	sm.mu.Unlock()

	log.Debug().Msg("invalidated cached session")
}

// EndSession deletes the current session on the server, if any
func (sm *SessionManager) EndSession(ctx context.Context) error {
	sm.mu.Lock()
	s := sm.cached
	sm.cached = nil
	sm.mu.Unlock()

	if s == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, sm.baseURL+"/v1/sync/sessions/"+s.ID, nil)
	if err != nil {
		return err
	}
	if err := sm.authorize(ctx, req); err != nil {
		return err
	}

	resp, err := sm.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	defer resp.Body.Close()

	// 404: already expired server-side
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return readStatusError(resp)
	}

	log.Info().Str("sessionId", s.ID).Msg("ended session")
	return nil
}

func (s *Session) fresh() bool {
	return s != nil && time.Now().Add(SessionRefreshBuffer).Before(s.ExpiresAt)
}

func (sm *SessionManager) authorize(ctx context.Context, req *http.Request) error {
	if sm.tokens == nil {
		req.Header.Set("X-Debug-Sub", sm.debugSub)
		return nil
	}
	token, err := sm.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get auth token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (sm *SessionManager) createSession(ctx context.Context) (*Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	// Another goroutine may have won the race
	if sm.cached.fresh() {
		return sm.cached, nil
	}

	url := sm.baseURL + "/v1/sync/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := sm.authorize(ctx, req); err != nil {
		return nil, err
	}

	resp, err := sm.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && sm.tokens != nil {
		sm.tokens.Invalidate()
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, readStatusError(resp)
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to parse session response: %w", err)
	}

	if h := resp.Header.Get("X-Sync-Epoch"); h != "" {
		if e, err := strconv.Atoi(h); err == nil {
			session.Epoch = e
		}
	}

	sm.cached = &session

	log.Info().
		Str("sessionId", session.ID).
		Int("epoch", session.Epoch).
		Time("expiresAt", session.ExpiresAt).
		Msg("created new session")

	return &session, nil
}
