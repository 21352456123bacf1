package httpapi

import (
	"net/http"
	"strconv"

	"github.com/erauner12/shopsync/internal/auth"
	"github.com/rs/zerolog/log"
)

// EpochRequired validates that the client's X-Sync-Epoch header matches the
// owner's current epoch.
//
// A client behind the server epoch gets 409 Conflict with the current epoch
// in the body and the X-Sync-Epoch header, so data written before a wipe is
// never mixed with data written after it.
func (s *Server) EpochRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		epoch, err := s.Svc.Epoch(r.Context(), userID)
		if err != nil {
			log.Ctx(r.Context()).Error().Err(err).Str("userId", userID).Msg("Failed to load epoch")
			writeError(w, r, http.StatusInternalServerError, "epoch load failed")
			return
		}

		clientEpoch := 0
		if h := r.Header.Get("X-Sync-Epoch"); h != "" {
			clientEpoch, _ = strconv.Atoi(h)
		}

		if clientEpoch < epoch {
			log.Ctx(r.Context()).Warn().
				Str("userId", userID).
				Int("clientEpoch", clientEpoch).
				Int("serverEpoch", epoch).
				Msg("Epoch mismatch detected - client must reset")

			w.Header().Set("X-Sync-Epoch", strconv.Itoa(epoch))
			writeJSON(w, http.StatusConflict, apiError{
				Error:         "epoch_mismatch",
				Epoch:         epoch,
				CorrelationID: GetCorrelationID(r.Context()),
			})
			return
		}

		// Epoch matches or client is ahead (shouldn't happen, but allow)
		next.ServeHTTP(w, r)
	})
}
