package httpapi

import (
	"net/http"

	"github.com/erauner12/shopsync/internal/auth"
	"github.com/rs/zerolog/log"
)

type wipeRequest struct {
	Confirm string `json:"confirm"` // Must be "WIPE"
}

type wipeResponse struct {
	Epoch   int            `json:"epoch"`
	Deleted map[string]int `json:"deleted"`
}

// WipeAccount permanently deletes every collection line of the caller.
//
// This operation:
// 1. Bumps the owner epoch (invalidates all devices)
// 2. Deletes all lines owned by the user
// 3. Invalidates all active sessions for the user
//
// Requires the confirmation string "WIPE" in the request body.
func (s *Server) WipeAccount(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req wipeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Confirm != "WIPE" {
		writeError(w, r, http.StatusBadRequest, "confirmation required: must send {\"confirm\":\"WIPE\"}")
		return
	}

	epoch, deleted, err := s.Svc.Wipe(r.Context(), userID)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("userId", userID).Msg("Failed to wipe account")
		writeError(w, r, http.StatusInternalServerError, "wipe failed")
		return
	}

	sessionsDeleted := s.Sessions.DeleteUserSessions(userID)

	log.Ctx(r.Context()).Info().
		Str("userId", userID).
		Int("newEpoch", epoch).
		Interface("deleted", deleted).
		Int("sessionsInvalidated", sessionsDeleted).
		Msg("Account wiped successfully")

	writeJSON(w, http.StatusOK, wipeResponse{Epoch: epoch, Deleted: deleted})
}
