// Package collectionsvc implements the business rules of the cart and
// wishlist collections on top of a Store.
package collectionsvc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erauner12/shopsync/internal/optimistic"
	"github.com/erauner12/shopsync/internal/summary"
	"github.com/erauner12/shopsync/internal/syncx"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ValidationError rejects a request before it reaches the store
type ValidationError struct {
	Code string // stable machine code, e.g. "invalid_quantity"
}

func (e ValidationError) Error() string { return "validation failed: " + e.Code }

// Page is one slice of a collection listing
type Page struct {
	Items      []optimistic.Item      `json:"items"`
	NextCursor *string                `json:"nextCursor,omitempty"`
	Summary    *summary.Authoritative `json:"summary,omitempty"`
}

// Service applies collection rules. Safe for concurrent use.
type Service struct {
	store       Store
	rules       summary.Rules
	collections map[string]bool
	now         func() time.Time
}

// New creates a service serving the named collections
func New(store Store, rules summary.Rules, collections ...string) *Service {
	if len(collections) == 0 {
		collections = []string{"cart", "wishlist"}
	}
	known := make(map[string]bool, len(collections))
	for _, c := range collections {
		known[c] = true
	}
	return &Service{
		store:       store,
		rules:       rules,
		collections: known,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) check(collection string) error {
	if !s.collections[collection] {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	return nil
}

// List returns a page and the authoritative summary of the whole collection
func (s *Service) List(ctx context.Context, owner, collection, cursor string, limit int) (Page, error) {
	if err := s.check(collection); err != nil {
		return Page{}, err
	}

	after, ok := syncx.DecodeCursor(cursor)
	if cursor != "" && !ok {
		return Page{}, ValidationError{Code: "invalid_cursor"}
	}
	items, err := s.store.List(ctx, owner, collection, after, limit)
	if err != nil {
		return Page{}, err
	}
	if items == nil {
		items = []optimistic.Item{}
	}

	page := Page{Items: items}
	if len(items) == limit {
		last := items[len(items)-1]
		if id, err := uuid.Parse(last.ID); err == nil {
			next := syncx.EncodeCursor(syncx.At(last.CreatedAt, id))
			page.NextCursor = &next
		}
	}

	all, err := s.store.All(ctx, owner, collection)
	if err != nil {
		return Page{}, err
	}
	page.Summary = summary.Authoritize(summary.Project(optimistic.Lines(all), nil, s.rules))

	return page, nil
}

// Add creates a new line for a product not yet in the collection
func (s *Service) Add(ctx context.Context, owner, collection string, p optimistic.Payload) (optimistic.Item, error) {
	if err := s.check(collection); err != nil {
		return optimistic.Item{}, err
	}
	p.ProductID = strings.TrimSpace(p.ProductID)
	switch {
	case p.ProductID == "":
		return optimistic.Item{}, ValidationError{Code: "missing_product"}
	case p.PriceCents < 0:
		return optimistic.Item{}, ValidationError{Code: "invalid_price"}
	case p.Quantity < 1:
		return optimistic.Item{}, ValidationError{Code: "invalid_quantity"}
	}

	item := optimistic.Item{
		ID:        uuid.New().String(),
		OwnerID:   owner,
		Payload:   p,
		CreatedAt: s.now().Truncate(time.Millisecond),
	}
	if err := s.store.Insert(ctx, owner, collection, item); err != nil {
		return optimistic.Item{}, err
	}

	log.Ctx(ctx).Debug().
		Str("collection", collection).
		Str("itemId", item.ID).
		Str("productId", p.ProductID).
		Msg("item added")
	return item, nil
}

// Update changes the quantity of a line
func (s *Service) Update(ctx context.Context, owner, collection, id string, patch optimistic.Patch) (optimistic.Item, error) {
	if err := s.check(collection); err != nil {
		return optimistic.Item{}, err
	}
	if patch.Quantity == nil || *patch.Quantity < 1 {
		return optimistic.Item{}, ValidationError{Code: "invalid_quantity"}
	}
	return s.store.SetQuantity(ctx, owner, collection, id, *patch.Quantity)
}

// Remove deletes a line by id
func (s *Service) Remove(ctx context.Context, owner, collection, id string) error {
	if err := s.check(collection); err != nil {
		return err
	}
	return s.store.Delete(ctx, owner, collection, id)
}

// RemoveByProduct deletes the line holding productID
func (s *Service) RemoveByProduct(ctx context.Context, owner, collection, productID string) error {
	if err := s.check(collection); err != nil {
		return err
	}
	if strings.TrimSpace(productID) == "" {
		return ValidationError{Code: "missing_product"}
	}
	return s.store.DeleteByProduct(ctx, owner, collection, productID)
}

// Clear empties a collection
func (s *Service) Clear(ctx context.Context, owner, collection string) (int, error) {
	if err := s.check(collection); err != nil {
		return 0, err
	}
	return s.store.Clear(ctx, owner, collection)
}

// Move transfers items one by one. A failure on one item is reported in
// the result and does not stop the others.
func (s *Service) Move(ctx context.Context, owner, from, to string, ids []string) (optimistic.MoveResult, error) {
	if err := s.check(from); err != nil {
		return optimistic.MoveResult{}, err
	}
	if err := s.check(to); err != nil {
		return optimistic.MoveResult{}, err
	}
	if from == to {
		return optimistic.MoveResult{}, ValidationError{Code: "same_collection"}
	}
	if len(ids) == 0 {
		return optimistic.MoveResult{}, ValidationError{Code: "empty_selection"}
	}

	res := optimistic.MoveResult{Errors: []string{}}
	for _, id := range ids {
		err := s.store.Move(ctx, owner, from, to, id)
		switch {
		case err == nil:
			res.Moved++
		case errors.Is(err, ErrNotFound):
			res.Errors = append(res.Errors, id)
		default:
			if ctx.Err() != nil {
				return optimistic.MoveResult{}, ctx.Err()
			}
			log.Ctx(ctx).Warn().Err(err).Str("itemId", id).Msg("move failed")
			res.Errors = append(res.Errors, id)
		}
	}

	log.Ctx(ctx).Info().
		Str("from", from).
		Str("to", to).
		Int("moved", res.Moved).
		Int("failed", len(res.Errors)).
		Msg("bulk move")
	return res, nil
}

// Epoch returns the owner's sync epoch
func (s *Service) Epoch(ctx context.Context, owner string) (int, error) {
	return s.store.Epoch(ctx, owner)
}

// Wipe removes every line the owner has and bumps the epoch
func (s *Service) Wipe(ctx context.Context, owner string) (int, map[string]int, error) {
	return s.store.Wipe(ctx, owner)
}
