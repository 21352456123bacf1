// Package memory is an in-process collectionsvc.Store used in development
// and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/erauner12/shopsync/internal/optimistic"
	"github.com/erauner12/shopsync/internal/service/collectionsvc"
	"github.com/erauner12/shopsync/internal/syncx"
	"github.com/google/uuid"
)

type key struct {
	owner      string
	collection string
}

// Store keeps every collection in maps guarded by a single mutex
type Store struct {
	mu     sync.Mutex
	lines  map[key][]optimistic.Item
	epochs map[string]int
}

var _ collectionsvc.Store = (*Store)(nil)

// New returns an empty store
func New() *Store {
	return &Store{
		lines:  make(map[key][]optimistic.Item),
		epochs: make(map[string]int),
	}
}

func (s *Store) find(k key, match func(optimistic.Item) bool) int {
	for i, it := range s.lines[k] {
		if match(it) {
			return i
		}
	}
	return -1
}

func byID(id string) func(optimistic.Item) bool {
	return func(it optimistic.Item) bool { return it.ID == id }
}

func byProduct(productID string) func(optimistic.Item) bool {
	return func(it optimistic.Item) bool { return it.Payload.ProductID == productID }
}

func (s *Store) sorted(k key) []optimistic.Item {
	items := append([]optimistic.Item(nil), s.lines[k]...)
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return items
}

// List implements collectionsvc.Store
func (s *Store) List(ctx context.Context, owner, collection string, after syncx.Cursor, limit int) ([]optimistic.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]optimistic.Item, 0, limit)
	for _, it := range s.sorted(key{owner, collection}) {
		if len(out) == limit {
			break
		}
		if !after.IsZero() {
			id, err := uuid.Parse(it.ID)
			if err != nil || !after.After(it.CreatedAt.UnixMilli(), id) {
				continue
			}
		}
		out = append(out, it)
	}
	return out, nil
}

// All implements collectionsvc.Store
func (s *Store) All(ctx context.Context, owner, collection string) ([]optimistic.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(key{owner, collection}), nil
}

// Insert implements collectionsvc.Store
func (s *Store) Insert(ctx context.Context, owner, collection string, item optimistic.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{owner, collection}
	if s.find(k, byProduct(item.Payload.ProductID)) >= 0 {
		return collectionsvc.ErrDuplicate
	}
	s.lines[k] = append(s.lines[k], item)
	return nil
}

// SetQuantity implements collectionsvc.Store
func (s *Store) SetQuantity(ctx context.Context, owner, collection, id string, quantity int) (optimistic.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{owner, collection}
	i := s.find(k, byID(id))
	if i < 0 {
		return optimistic.Item{}, collectionsvc.ErrNotFound
	}
	s.lines[k][i].Payload.Quantity = quantity
	return s.lines[k][i], nil
}

func (s *Store) removeAt(k key, i int) {
	lines := s.lines[k]
	s.lines[k] = append(lines[:i:i], lines[i+1:]...)
}

// Delete implements collectionsvc.Store
func (s *Store) Delete(ctx context.Context, owner, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{owner, collection}
	i := s.find(k, byID(id))
	if i < 0 {
		return collectionsvc.ErrNotFound
	}
	s.removeAt(k, i)
	return nil
}

// DeleteByProduct implements collectionsvc.Store
func (s *Store) DeleteByProduct(ctx context.Context, owner, collection, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{owner, collection}
	i := s.find(k, byProduct(productID))
	if i < 0 {
		return collectionsvc.ErrNotFound
	}
	s.removeAt(k, i)
	return nil
}

// Clear implements collectionsvc.Store
func (s *Store) Clear(ctx context.Context, owner, collection string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{owner, collection}
	n := len(s.lines[k])
	delete(s.lines, k)
	return n, nil
}

// Move implements collectionsvc.Store
func (s *Store) Move(ctx context.Context, owner, from, to, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src := key{owner, from}
	dst := key{owner, to}

	i := s.find(src, byID(id))
	if i < 0 {
		return collectionsvc.ErrNotFound
	}
	item := s.lines[src][i]
	s.removeAt(src, i)

	if j := s.find(dst, byProduct(item.Payload.ProductID)); j >= 0 {
		s.lines[dst][j].Payload.Quantity += item.Payload.Quantity
		return nil
	}
	s.lines[dst] = append(s.lines[dst], item)
	return nil
}

// Epoch implements collectionsvc.Store
func (s *Store) Epoch(ctx context.Context, owner string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epochs[owner] == 0 {
		s.epochs[owner] = 1
	}
	return s.epochs[owner], nil
}

// Wipe implements collectionsvc.Store
func (s *Store) Wipe(ctx context.Context, owner string) (int, map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := make(map[string]int)
	for k, lines := range s.lines {
		if k.owner != owner {
			continue
		}
		deleted[k.collection] = len(lines)
		delete(s.lines, k)
	}

	if s.epochs[owner] == 0 {
		s.epochs[owner] = 1
	}
	s.epochs[owner]++
	return s.epochs[owner], deleted, nil
}

// EnsureUser uses the token subject as the user id
func (s *Store) EnsureUser(ctx context.Context, sub string) (string, error) {
	return sub, nil
}
