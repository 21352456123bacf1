package optimistic

import (
	"context"
	"strings"
	"time"

	"github.com/erauner12/shopsync/internal/summary"
)

// Payload is the domain data of a collection line
type Payload struct {
	ProductID  string `json:"productId"`
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents"`
	Quantity   int    `json:"quantity"`
	ImageURL   string `json:"imageUrl,omitempty"`
}

// Validate rejects payloads before any optimistic change is made
func (p Payload) Validate() error {
	if strings.TrimSpace(p.ProductID) == "" {
		return &OperationError{Kind: KindValidation, Message: "identifiant produit manquant"}
	}
	if p.PriceCents < 0 {
		return &OperationError{Kind: KindValidation, Message: "prix invalide"}
	}
	if p.Quantity < 1 {
		return &OperationError{Kind: KindValidation, Message: "la quantité doit être au moins 1"}
	}
	return nil
}

// Item is a locally held record mirroring a remote collection line
type Item struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Payload   Payload   `json:"payload"`
	CreatedAt time.Time `json:"createdAt"`
}

// Patch is a partial update of an item; nil fields are left unchanged
type Patch struct {
	Quantity *int `json:"quantity,omitempty"`
}

// Validate rejects empty or out of range patches
func (p Patch) Validate() error {
	if p.Quantity == nil {
		return &OperationError{Kind: KindValidation, Message: "aucune modification"}
	}
	if *p.Quantity < 1 {
		return &OperationError{Kind: KindValidation, Message: "la quantité doit être au moins 1"}
	}
	return nil
}

func (p Patch) apply(item Item) Item {
	if p.Quantity != nil {
		item.Payload.Quantity = *p.Quantity
	}
	return item
}

// Collection is the authoritative state returned by FetchAll
type Collection struct {
	Items   []Item                 `json:"items"`
	Summary *summary.Authoritative `json:"summary,omitempty"`
}

// MoveResult reports a bulk move; Errors lists the item ids that did not move
type MoveResult struct {
	Moved  int      `json:"moved"`
	Errors []string `json:"errors"`
}

// RemoteStore is the remote system a controller reconciles against.
// Failures should be *OperationError values (see Classify); a remove of a
// missing item should return an error wrapping ErrNotFound.
type RemoteStore interface {
	FetchAll(ctx context.Context, ownerID string) (Collection, error)
	Add(ctx context.Context, ownerID string, p Payload) (Item, error)
	RemoveByKey(ctx context.Context, ownerID, productID string) error
	RemoveByID(ctx context.Context, ownerID, itemID string) error
	Update(ctx context.Context, ownerID, itemID string, patch Patch) (Item, error)
	Clear(ctx context.Context, ownerID string) error
	MoveSubset(ctx context.Context, ownerID string, itemIDs []string) (MoveResult, error)
}

// OwnerSource yields the authenticated owner identity, or "" when signed out
type OwnerSource interface {
	OwnerID() string
}

// OwnerFunc adapts a function to OwnerSource
type OwnerFunc func() string

// OwnerID implements OwnerSource
func (f OwnerFunc) OwnerID() string { return f() }

// Lines converts items into summary lines
func Lines(items []Item) []summary.Line {
	lines := make([]summary.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, summary.Line{PriceCents: it.Payload.PriceCents, Quantity: it.Payload.Quantity})
	}
	return lines
}
