// Package session ties the cart and wishlist controllers to the lifetime of
// a signed-in owner.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erauner12/shopsync/internal/notify"
	"github.com/erauner12/shopsync/internal/optimistic"
	"github.com/erauner12/shopsync/internal/storeclient"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	CartCollection     = "cart"
	WishlistCollection = "wishlist"
)

// Options configures a SyncStore
type Options struct {
	Cart     optimistic.RemoteStore
	Wishlist optimistic.RemoteStore // its MoveSubset must move into the cart
	Notifier notify.Sink
	Sleep    optimistic.Sleeper
	Now      func() time.Time
}

// SyncStore owns one cart and one wishlist controller for the current owner.
// It is the OwnerSource of both controllers, so clearing the owner makes
// every mutation fail the auth precondition.
type SyncStore struct {
	Cart     *optimistic.Controller
	Wishlist *optimistic.Controller

	mu    sync.RWMutex
	owner string
}

var _ optimistic.OwnerSource = (*SyncStore)(nil)

// New creates a store with no owner
func New(opts Options) *SyncStore {
	s := &SyncStore{}
	s.Cart = optimistic.New(optimistic.Options{
		Collection: CartCollection,
		Label:      "panier",
		Remote:     opts.Cart,
		Owner:      s,
		Notifier:   opts.Notifier,
		Sleep:      opts.Sleep,
		Now:        opts.Now,
	})
	s.Wishlist = optimistic.New(optimistic.Options{
		Collection: WishlistCollection,
		Label:      "liste d'envies",
		Remote:     opts.Wishlist,
		Owner:      s,
		Notifier:   opts.Notifier,
		Sleep:      opts.Sleep,
		Now:        opts.Now,
	})
	return s
}

// NewHTTP wires both controllers to a remote server through hc
func NewHTTP(hc *storeclient.HTTPClient, opts Options) *SyncStore {
	opts.Cart = storeclient.NewCollectionClient(hc, CartCollection, "")
	opts.Wishlist = storeclient.NewCollectionClient(hc, WishlistCollection, CartCollection)
	return New(opts)
}

// OwnerID implements optimistic.OwnerSource
func (s *SyncStore) OwnerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner
}

// Start installs the owner and loads both collections concurrently.
// Each load reports into its own collection's state; one failing does not
// cancel the other. The owner stays installed when a load fails so the
// caller can retry.
func (s *SyncStore) Start(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return fmt.Errorf("start session: empty owner id")
	}

	s.mu.Lock()
	prev := s.owner
	s.owner = ownerID
	s.mu.Unlock()

	if prev != "" && prev != ownerID {
		// Never show one owner's lines to another
		s.Cart.Reset()
		s.Wishlist.Reset()
	}

	log.Ctx(ctx).Info().Str("ownerId", ownerID).Msg("sync session started")

	var g errgroup.Group
	g.Go(func() error { return s.Cart.Refresh(ctx) })
	g.Go(func() error { return s.Wishlist.Refresh(ctx) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}
	return nil
}

// End clears the owner and empties both collections. Operations still in
// flight settle without touching the reset state.
func (s *SyncStore) End() {
	s.mu.Lock()
	owner := s.owner
	s.owner = ""
	s.mu.Unlock()

	s.Cart.Reset()
	s.Wishlist.Reset()

	log.Info().Str("ownerId", owner).Msg("sync session ended")
}

// MoveWishlistToCart moves the selected wishlist items and reloads the cart
func (s *SyncStore) MoveWishlistToCart(ctx context.Context, itemIDs []string) (optimistic.MoveResult, error) {
	res, err := s.Wishlist.MoveSubset(ctx, itemIDs)
	if err != nil {
		return res, err
	}
	if res.Moved == 0 {
		return res, nil
	}
	if err := s.Cart.Refresh(ctx); err != nil {
		return res, fmt.Errorf("refresh cart after move: %w", err)
	}
	return res, nil
}
