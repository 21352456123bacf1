package httpapi

import (
	"net/http"

	"github.com/erauner12/shopsync/internal/auth"
	"github.com/rs/zerolog/log"
)

type syncStateResponse struct {
	Epoch int `json:"epoch"`
}

// GetSyncState returns the owner's current epoch so clients can check
// whether a reset is required without touching a collection.
func (s *Server) GetSyncState(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	epoch, err := s.Svc.Epoch(r.Context(), userID)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("userId", userID).Msg("Failed to load sync state")
		writeError(w, r, http.StatusInternalServerError, "failed to load sync state")
		return
	}

	writeJSON(w, http.StatusOK, syncStateResponse{Epoch: epoch})
}
