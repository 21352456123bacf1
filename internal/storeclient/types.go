package storeclient

import (
	"context"
	"time"

	"github.com/erauner12/shopsync/internal/optimistic"
	"github.com/erauner12/shopsync/internal/summary"
)

// Session is a sync session issued by POST /v1/sync/sessions
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Epoch     int       `json:"epoch"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TokenProvider supplies bearer tokens for outgoing requests
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	// Invalidate drops any cached token so the next call fetches a fresh one
	Invalidate()
}

// SessionProvider supplies the sync session headers
type SessionProvider interface {
	EnsureSession(ctx context.Context) (*Session, error)
	InvalidateSession()
}

// listResponse is the body of GET /v1/{collection}/items
type listResponse struct {
	Items      []optimistic.Item      `json:"items"`
	NextCursor *string                `json:"nextCursor,omitempty"`
	Summary    *summary.Authoritative `json:"summary,omitempty"`
}

type moveRequest struct {
	ItemIDs []string `json:"itemIds"`
	Target  string   `json:"target"`
}

type errorResponse struct {
	Error         string `json:"error"`
	Epoch         int    `json:"epoch,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}
