package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/erauner12/shopsync/internal/auth"
	"github.com/erauner12/shopsync/internal/service/collectionsvc"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

const (
	defaultPageSize = 200
	maxPageSize     = 1000
	maxBodyBytes    = 1 << 20
)

// Server holds dependencies for HTTP handlers
type Server struct {
	Svc             *collectionsvc.Service
	Users           auth.UserStore
	Sessions        *SessionStore
	RateLimitConfig RateLimitInfo
}

// apiError is the body of every non-2xx JSON response
type apiError struct {
	Error         string `json:"error"`
	Epoch         int    `json:"epoch,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

// writeError writes an apiError carrying the request's correlation id
func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, apiError{
		Error:         msg,
		CorrelationID: GetCorrelationID(r.Context()),
	})
}

// parseLimit parses a limit query param with default and max
func parseLimit(q string, def, max int) int {
	if q == "" {
		return def
	}
	n, err := strconv.Atoi(q)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// Routes creates the HTTP router with all collection and sync endpoints
func (s *Server) Routes(jwt auth.JWTCfg) http.Handler {
	if s.Sessions == nil {
		s.Sessions = NewSessionStore(DefaultSessionTTL)
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestContext)
	r.Use(AccessLog)
	r.Use(middleware.Recoverer)

	// Health check (unauthenticated)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	})
	r.Get("/v1/sync/info", s.Info)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.Users, jwt))

		// Session management does not require an active session
		r.Post("/v1/sync/sessions", s.BeginSession)
		r.Get("/v1/sync/sessions/{id}", s.GetSession)
		r.Delete("/v1/sync/sessions/{id}", s.EndSession)
		r.Get("/v1/sync/state", s.GetSyncState)

		r.Group(func(r chi.Router) {
			r.Use(s.SessionRequired)
			r.Use(RateLimitMiddleware(s.RateLimitConfig))
			r.Use(s.EpochRequired)

			r.Post("/v1/sync/wipe", s.WipeAccount)

			r.Route("/v1/{collection}", func(r chi.Router) {
				r.Delete("/", s.ClearCollection)
				r.Get("/items", s.ListItems)
				r.Post("/items", s.AddItem)
				r.Delete("/items", s.RemoveItemByProduct)
				r.Patch("/items/{id}", s.UpdateItem)
				r.Delete("/items/{id}", s.RemoveItem)
				r.Post("/move", s.MoveItems)
			})
		})
	})

	log.Info().Msg("HTTP routes registered")
	return r
}
