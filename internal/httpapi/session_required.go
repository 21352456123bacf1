package httpapi

import (
	"net/http"

	"github.com/erauner12/shopsync/internal/auth"
	"github.com/rs/zerolog/log"
)

// SessionRequired enforces that a valid sync session is active.
// Applied to collection endpoints but NOT to /info or session management.
func (s *Server) SessionRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := GetSessionID(r.Context())
		logger := log.Ctx(r.Context())

		if sessionID == "" {
			logger.Warn().
				Str("path", r.URL.Path).
				Str("method", r.Method).
				Msg("Request without X-Sync-Session header")

			writeError(w, r, http.StatusPreconditionRequired,
				"X-Sync-Session header required. Please call POST /v1/sync/sessions to begin a session.")
			return
		}

		session, ok := s.Sessions.GetSession(sessionID)
		if !ok {
			logger.Warn().Str("path", r.URL.Path).Msg("Invalid or expired sync session")

			writeError(w, r, http.StatusPreconditionRequired,
				"Invalid or expired sync session. Please call POST /v1/sync/sessions to begin a new session.")
			return
		}

		authenticatedUserID := auth.UserID(r.Context())
		if session.UserID != authenticatedUserID {
			logger.Warn().
				Str("sessionUserId", session.UserID).
				Str("authenticatedUserId", authenticatedUserID).
				Str("path", r.URL.Path).
				Msg("Session does not belong to authenticated user")

			writeError(w, r, http.StatusForbidden, "Session does not belong to authenticated user.")
			return
		}

		next.ServeHTTP(w, r)
	})
}
