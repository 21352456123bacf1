package httpapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/erauner12/shopsync/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultSessionTTL is how long a sync session stays valid
const DefaultSessionTTL = 30 * time.Minute

// Session represents an active sync session
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Epoch     int       `json:"epoch"` // owner epoch at session start
}

// SessionStore manages active sync sessions in memory
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session // key: sessionId
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates an empty store whose sessions expire after ttl
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]Session),
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession generates a new session ID for the user
func (s *SessionStore) CreateSession(userID string, epoch int) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	session := Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		Epoch:     epoch,
	}
	s.sessions[session.ID] = session

	// Clean up expired sessions opportunistically
	s.cleanupExpiredLocked()

	return session
}

// GetSession retrieves a live session by ID
func (s *SessionStore) GetSession(sessionID string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists || s.now().After(session.ExpiresAt) {
		return Session{}, false
	}
	return session, true
}

// DeleteSession removes a session
func (s *SessionStore) DeleteSession(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	return exists
}

// DeleteUserSessions removes all sessions for a given user and returns how
// many were deleted. Used when wiping account data.
func (s *SessionStore) DeleteUserSessions(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, id)
			count++
		}
	}
	return count
}

// cleanupExpiredLocked removes expired sessions (caller must hold write lock)
func (s *SessionStore) cleanupExpiredLocked() {
	now := s.now()
	for id, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
}

// BeginSession handles POST /v1/sync/sessions
func (s *Server) BeginSession(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	epoch, err := s.Svc.Epoch(r.Context(), userID)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("userId", userID).Msg("Failed to load epoch")
		writeError(w, r, http.StatusInternalServerError, "Failed to load epoch")
		return
	}

	session := s.Sessions.CreateSession(userID, epoch)

	log.Ctx(r.Context()).Info().
		Str("sessionId", session.ID).
		Str("userId", userID).
		Int("epoch", epoch).
		Time("expiresAt", session.ExpiresAt).
		Msg("sync session created")

	w.Header().Set("X-Sync-Epoch", strconv.Itoa(epoch))
	writeJSON(w, http.StatusCreated, session)
}

// ownSession loads the {id} session and checks it belongs to the caller
func (s *Server) ownSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	sessionID := chi.URLParam(r, "id")
	userID := auth.UserID(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return Session{}, false
	}

	session, exists := s.Sessions.GetSession(sessionID)
	if !exists {
		writeError(w, r, http.StatusNotFound, "session not found or expired")
		return Session{}, false
	}
	if session.UserID != userID {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return Session{}, false
	}
	return session, true
}

// EndSession handles DELETE /v1/sync/sessions/{id}
func (s *Server) EndSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.ownSession(w, r)
	if !ok {
		return
	}
	s.Sessions.DeleteSession(session.ID)

	log.Ctx(r.Context()).Info().
		Str("sessionId", session.ID).
		Str("userId", session.UserID).
		Msg("sync session ended")

	w.WriteHeader(http.StatusNoContent)
}

// GetSession handles GET /v1/sync/sessions/{id}
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.ownSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session)
}
