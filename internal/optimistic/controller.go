// Package optimistic keeps a client-side copy of a remote collection (cart,
// wishlist) and applies user mutations to it before the remote system has
// confirmed them.
//
// Every mutation follows the same path:
//
//	check owner → validate → apply locally and publish → call remote (with retry)
//	  → success: drop pending entry, refetch authoritative state
//	  → failure: undo the local change, record the intent for RetryLast
//
// A conflict reported by the remote blocks further mutations until
// ResolveConflict is called.
package optimistic

import (
	"context"
	"sync"
	"time"

	"github.com/erauner12/shopsync/internal/notify"
	"github.com/erauner12/shopsync/internal/retry"
	"github.com/erauner12/shopsync/internal/summary"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Options configures a Controller
type Options struct {
	Collection string // e.g. "cart", "wishlist"
	Label      string // human readable name used in notifications
	Remote     RemoteStore
	Owner      OwnerSource
	Notifier   notify.Sink
	Sleep      Sleeper
	Now        func() time.Time
}

// Controller owns the SyncState of one collection
type Controller struct {
	name   string
	label  string
	remote RemoteStore
	owner  OwnerSource
	sink   notify.Sink
	sleep  Sleeper
	now    func() time.Time
	logger zerolog.Logger

	mu         sync.Mutex
	state      SyncState
	pending    []*PendingOperation
	lastFailed *PendingRetry
	gen        uint64
	subs       map[int]func(SyncState)
	nextSub    int
}

// New creates a controller with an empty state
func New(opts Options) *Controller {
	c := &Controller{
		name:   opts.Collection,
		label:  opts.Label,
		remote: opts.Remote,
		owner:  opts.Owner,
		sink:   opts.Notifier,
		sleep:  opts.Sleep,
		now:    opts.Now,
		subs:   make(map[int]func(SyncState)),
	}
	if c.label == "" {
		c.label = c.name
	}
	if c.owner == nil {
		c.owner = OwnerFunc(func() string { return "" })
	}
	if c.sink == nil {
		c.sink = notify.Discard{}
	}
	if c.sleep == nil {
		c.sleep = sleepCtx
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.logger = log.With().Str("collection", c.name).Logger()
	return c
}

// Name returns the collection name
func (c *Controller) Name() string { return c.name }

// State returns a copy of the current state
func (c *Controller) State() SyncState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Summary projects display totals from the current state. While mutations
// are in flight the backend's line totals describe the confirmed lines only,
// so they are recomputed from the optimistic lines.
func (c *Controller) Summary(rules summary.Rules) summary.Summary {
	c.mu.Lock()
	s := c.state.clone()
	inFlight := len(c.pending) > 0
	c.mu.Unlock()

	auth := s.Summary
	if inFlight {
		auth = auth.WithoutLineTotals()
	}
	return summary.Project(Lines(s.Items), auth, rules)
}

// Pending returns a copy of the in-flight operations
func (c *Controller) Pending() []PendingOperation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]PendingOperation, 0, len(c.pending))
	for _, op := range c.pending {
		out = append(out, *op)
	}
	return out
}

// LastFailed returns the intent RetryLast would replay, if any
func (c *Controller) LastFailed() (PendingRetry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastFailed == nil {
		return PendingRetry{}, false
	}
	return c.lastFailed.clone(), true
}

// Subscribe registers fn to receive every published state.
// fn is called outside the controller lock and must not block for long.
func (c *Controller) Subscribe(fn func(SyncState)) (cancel func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Reset drops all local state. Operations still in flight are ignored when they settle.
func (c *Controller) Reset() {
	c.mutate(func(s *SyncState) {
		c.gen++
		c.pending = nil
		c.lastFailed = nil
		*s = SyncState{}
	})
	c.logger.Debug().Msg("collection state reset")
}

// mutate runs fn under the lock, then publishes the new state
func (c *Controller) mutate(fn func(s *SyncState)) {
	c.mu.Lock()
	fn(&c.state)
	c.state.Syncing = len(c.pending) > 0
	snapshot := c.state.clone()
	subs := make([]func(SyncState), 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		sub(snapshot.clone())
	}
}

func (c *Controller) notify(ctx context.Context, level notify.Level, msg string, action notify.Action, blocking bool) {
	c.sink.Notify(ctx, notify.Notification{
		Level:      level,
		Collection: c.name,
		Message:    msg,
		Action:     action,
		Blocking:   blocking,
	})
}

// begin performs the checks shared by every mutation and returns the owner id
func (c *Controller) begin(ctx context.Context) (string, error) {
	c.mu.Lock()
	blocked := c.state.Conflict != nil
	c.mu.Unlock()

	if blocked {
		err := NewError(KindConflict, msgConflictPending, nil)
		c.notify(ctx, notify.LevelWarning, msgConflictPending, notify.ActionResolve, true)
		return "", err
	}

	owner := c.owner.OwnerID()
	if owner == "" {
		err := NewError(KindAuth, msgLoginRequired, nil)
		c.mutate(func(s *SyncState) { s.Error = err })
		c.notify(ctx, notify.LevelError, msgLoginRequired, notify.ActionLogin, true)
		return "", err
	}

	return owner, nil
}

// rejectLocal surfaces an input error; no optimistic change has been made
func (c *Controller) rejectLocal(ctx context.Context, err error) error {
	opErr := Classify(err)
	c.mutate(func(s *SyncState) { s.Error = opErr })
	c.notify(ctx, notify.LevelError, opErr.Message, notify.ActionNone, false)
	return opErr
}

// pushPending must be called with the lock held (inside mutate)
func (c *Controller) pushPending(kind OpKind, snap Snapshot) *PendingOperation {
	op := &PendingOperation{
		OperationID: uuid.New().String(),
		Kind:        kind,
		Snapshot:    snap,
		CreatedAt:   c.now(),
		Phase:       PhaseCreated,
		gen:         c.gen,
	}
	c.pending = append(c.pending, op)
	return op
}

// dropPending must be called with the lock held
func (c *Controller) dropPending(op *PendingOperation) {
	for i, p := range c.pending {
		if p == op {
			c.pending = append(c.pending[:i:i], c.pending[i+1:]...)
			return
		}
	}
}

func (c *Controller) setPhase(op *PendingOperation, phase Phase) {
	c.mu.Lock()
	op.Phase = phase
	c.mu.Unlock()
}

// remoteCall performs the remote side of a mutation. A returned item, when
// non-nil, replaces the optimistic record until the next refresh lands.
type remoteCall func(ctx context.Context) (*Item, error)

// execute drives a pending operation through remote calls and retries
func (c *Controller) execute(ctx context.Context, op *PendingOperation, intent PendingRetry, call remoteCall) error {
	c.mutate(func(s *SyncState) { s.RetryCount = 0 })

	logger := c.logger.With().
		Str("operationId", op.OperationID).
		Str("kind", string(op.Kind)).
		Logger()

	for attempt := 0; ; attempt++ {
		c.setPhase(op, PhaseInFlight)

		item, err := call(ctx)
		if err == nil || (isRemoval(op.Kind) && IsNotFound(err)) {
			if err != nil {
				logger.Debug().Msg("remote reported not found on remove, treating as success")
			}
			c.confirm(ctx, op, item)
			return nil
		}

		opErr := Classify(err)
		if opErr.Kind == KindConflict {
			logger.Warn().Err(err).Msg("remote reported a conflict")
			c.enterConflict(ctx, op, opErr)
			return opErr
		}

		decision := retry.ShouldRetry(attempt, opErr)
		if !decision.Retry {
			logger.Warn().Err(err).Int("attempts", attempt+1).Msg("mutation failed, rolling back")
			c.rollback(ctx, op, intent, opErr)
			return opErr
		}

		c.setPhase(op, PhaseRetryScheduled)
		c.mutate(func(s *SyncState) { s.RetryCount = attempt + 1 })

		logger.Debug().
			Err(err).
			Int("retryCount", attempt+1).
			Dur("delay", decision.Delay).
			Msg("mutation failed, retry scheduled")

		if serr := c.sleep(ctx, decision.Delay); serr != nil {
			opErr = Classify(serr)
			c.rollback(ctx, op, intent, opErr)
			return opErr
		}
	}
}

func isRemoval(kind OpKind) bool {
	return kind == OpRemove || kind == OpClear
}

// confirm discards the pending entry and reconciles with the remote
func (c *Controller) confirm(ctx context.Context, op *PendingOperation, item *Item) {
	stale := false
	c.mutate(func(s *SyncState) {
		op.Phase = PhaseConfirmed
		c.dropPending(op)
		if op.gen != c.gen {
			stale = true
			return
		}
		c.lastFailed = nil
		s.Error = nil
		if item != nil {
			replaceConfirmed(s, op, *item)
		}
	})
	if stale {
		return
	}

	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn().Err(err).Str("operationId", op.OperationID).Msg("reconciliation refresh failed, keeping optimistic state")
	}
}

func replaceConfirmed(s *SyncState, op *PendingOperation, item Item) {
	switch {
	case op.Snapshot.AddedID != "":
		if i := indexByID(s.Items, op.Snapshot.AddedID); i >= 0 {
			s.Items[i] = item
		}
	case op.Snapshot.Previous != nil:
		if i := indexByID(s.Items, item.ID); i >= 0 {
			s.Items[i] = item
		}
	}
}

// rollback undoes the optimistic change and remembers the intent
func (c *Controller) rollback(ctx context.Context, op *PendingOperation, intent PendingRetry, opErr *OperationError) {
	stale := false
	c.mutate(func(s *SyncState) {
		op.Phase = PhaseRolledBack
		c.dropPending(op)
		if op.gen != c.gen {
			stale = true
			return
		}
		s.Items = undo(s.Items, op.Snapshot)
		s.Error = opErr
		failed := intent.clone()
		c.lastFailed = &failed
	})
	if stale {
		return
	}

	switch {
	case opErr.Kind == KindAuth:
		c.notify(ctx, notify.LevelError, msgLoginRequired, notify.ActionLogin, true)
	case opErr.Retryable:
		c.notify(ctx, notify.LevelError, failureMessage(op.Kind), notify.ActionRetry, false)
	default:
		c.notify(ctx, notify.LevelError, opErr.Message, notify.ActionNone, false)
	}
}

// Refresh replaces local items with the authoritative remote state
func (c *Controller) Refresh(ctx context.Context) error {
	owner := c.owner.OwnerID()
	if owner == "" {
		err := NewError(KindAuth, msgLoginRequired, nil)
		c.mutate(func(s *SyncState) { s.Error = err })
		return err
	}

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	c.mutate(func(s *SyncState) { s.Loading = true })

	coll, err := c.remote.FetchAll(ctx, owner)
	if err != nil {
		opErr := Classify(err)
		c.mutate(func(s *SyncState) {
			s.Loading = false
			if gen == c.gen {
				s.Error = opErr
			}
		})
		c.logger.Warn().Err(err).Msg("refresh failed")
		return opErr
	}

	c.mutate(func(s *SyncState) {
		s.Loading = false
		if gen != c.gen {
			return
		}
		s.Items = cloneItems(coll.Items)
		if s.Items == nil {
			s.Items = []Item{}
		}
		s.Summary = coll.Summary
		s.LastSyncedAt = c.now()
		if s.Error != nil && s.Error.Kind != KindConflict {
			s.Error = nil
		}
	})

	c.logger.Debug().Int("items", len(coll.Items)).Msg("collection refreshed")
	return nil
}

// Add inserts a new line. Adding a product already present is a no-op.
func (c *Controller) Add(ctx context.Context, p Payload) error {
	owner, err := c.begin(ctx)
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return c.rejectLocal(ctx, err)
	}

	var (
		op  *PendingOperation
		dup bool
	)
	c.mutate(func(s *SyncState) {
		if indexByProduct(s.Items, p.ProductID) >= 0 {
			dup = true
			return
		}
		item := Item{
			ID:        "tmp-" + uuid.New().String(),
			OwnerID:   owner,
			Payload:   p,
			CreatedAt: c.now(),
		}
		s.Items = append(cloneItems(s.Items), item)
		op = c.pushPending(OpAdd, Snapshot{AddedID: item.ID})
	})

	if dup {
		c.notify(ctx, notify.LevelInfo, alreadyPresentMessage(c.label, p.Name), notify.ActionNone, false)
		return nil
	}

	payload := p
	err = c.execute(ctx, op, PendingRetry{Kind: OpAdd, Payload: &payload}, func(ctx context.Context) (*Item, error) {
		item, err := c.remote.Add(ctx, owner, p)
		if err != nil {
			return nil, err
		}
		return &item, nil
	})
	if err == nil {
		c.notify(ctx, notify.LevelSuccess, addedMessage(c.label, p.Name), notify.ActionNone, false)
	}
	return err
}

// Remove deletes the line holding productID
func (c *Controller) Remove(ctx context.Context, productID string) error {
	owner, err := c.begin(ctx)
	if err != nil {
		return err
	}
	if productID == "" {
		return c.rejectLocal(ctx, NewError(KindValidation, "identifiant produit manquant", nil))
	}

	op := c.removeLocally(func(items []Item) int { return indexByProduct(items, productID) })

	err = c.execute(ctx, op, PendingRetry{Kind: OpRemove, ProductID: productID}, func(ctx context.Context) (*Item, error) {
		return nil, c.remote.RemoveByKey(ctx, owner, productID)
	})
	if err == nil {
		c.notify(ctx, notify.LevelSuccess, removedMessage(c.label), notify.ActionNone, false)
	}
	return err
}

// RemoveItem deletes the line with the given item id
func (c *Controller) RemoveItem(ctx context.Context, itemID string) error {
	owner, err := c.begin(ctx)
	if err != nil {
		return err
	}
	if itemID == "" {
		return c.rejectLocal(ctx, NewError(KindValidation, "identifiant article manquant", nil))
	}

	op := c.removeLocally(func(items []Item) int { return indexByID(items, itemID) })

	err = c.execute(ctx, op, PendingRetry{Kind: OpRemove, ItemID: itemID}, func(ctx context.Context) (*Item, error) {
		return nil, c.remote.RemoveByID(ctx, owner, itemID)
	})
	if err == nil {
		c.notify(ctx, notify.LevelSuccess, removedMessage(c.label), notify.ActionNone, false)
	}
	return err
}

// removeLocally drops the matched item, if any, and tracks the change.
// A missing item still yields a pending operation so the remote delete runs.
func (c *Controller) removeLocally(match func([]Item) int) *PendingOperation {
	var op *PendingOperation
	c.mutate(func(s *SyncState) {
		var snap Snapshot
		if i := match(s.Items); i >= 0 {
			snap.Removed = []IndexedItem{{Index: i, Item: s.Items[i]}}
			s.Items = removeAt(s.Items, i)
		}
		op = c.pushPending(OpRemove, snap)
	})
	return op
}

// Update applies patch to the line with the given item id
func (c *Controller) Update(ctx context.Context, itemID string, patch Patch) error {
	owner, err := c.begin(ctx)
	if err != nil {
		return err
	}
	if err := patch.Validate(); err != nil {
		return c.rejectLocal(ctx, err)
	}

	var (
		op      *PendingOperation
		missing bool
	)
	c.mutate(func(s *SyncState) {
		i := indexByID(s.Items, itemID)
		if i < 0 {
			missing = true
			return
		}
		prev := s.Items[i]
		s.Items = cloneItems(s.Items)
		s.Items[i] = patch.apply(prev)
		op = c.pushPending(OpUpdate, Snapshot{Previous: &prev})
	})

	if missing {
		opErr := NewError(KindValidation, "article introuvable", nil)
		opErr.RelatedItemID = itemID
		return c.rejectLocal(ctx, opErr)
	}

	p := patch
	return c.execute(ctx, op, PendingRetry{Kind: OpUpdate, ItemID: itemID, Patch: &p}, func(ctx context.Context) (*Item, error) {
		item, err := c.remote.Update(ctx, owner, itemID, patch)
		if err != nil {
			return nil, err
		}
		return &item, nil
	})
}

// Clear empties the collection
func (c *Controller) Clear(ctx context.Context) error {
	owner, err := c.begin(ctx)
	if err != nil {
		return err
	}

	var op *PendingOperation
	c.mutate(func(s *SyncState) {
		removed := make([]IndexedItem, 0, len(s.Items))
		for i, it := range s.Items {
			removed = append(removed, IndexedItem{Index: i, Item: it})
		}
		s.Items = []Item{}
		op = c.pushPending(OpClear, Snapshot{Removed: removed})
	})

	err = c.execute(ctx, op, PendingRetry{Kind: OpClear}, func(ctx context.Context) (*Item, error) {
		return nil, c.remote.Clear(ctx, owner)
	})
	if err == nil {
		c.notify(ctx, notify.LevelSuccess, clearedMessage(c.label), notify.ActionNone, false)
	}
	return err
}

// MoveSubset moves the given items out of this collection in one remote
// batch. Partial success is reported through the result and notifications;
// only a failure of the whole call is rolled back.
func (c *Controller) MoveSubset(ctx context.Context, itemIDs []string) (MoveResult, error) {
	owner, err := c.begin(ctx)
	if err != nil {
		return MoveResult{}, err
	}
	if len(itemIDs) == 0 {
		return MoveResult{}, c.rejectLocal(ctx, NewError(KindValidation, "aucun article sélectionné", nil))
	}

	selected := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		selected[id] = true
	}

	var op *PendingOperation
	c.mutate(func(s *SyncState) {
		var removed []IndexedItem
		kept := make([]Item, 0, len(s.Items))
		for i, it := range s.Items {
			if selected[it.ID] {
				removed = append(removed, IndexedItem{Index: i, Item: it})
				continue
			}
			kept = append(kept, it)
		}
		s.Items = kept
		op = c.pushPending(OpMove, Snapshot{Removed: removed})
	})

	ids := append([]string(nil), itemIDs...)
	var result MoveResult
	err = c.execute(ctx, op, PendingRetry{Kind: OpMove, ItemIDs: ids}, func(ctx context.Context) (*Item, error) {
		res, err := c.remote.MoveSubset(ctx, owner, ids)
		if err != nil {
			return nil, err
		}
		result = res
		return nil, nil
	})
	if err != nil {
		return MoveResult{}, err
	}

	if len(result.Errors) > 0 {
		c.restoreUnmoved(op.Snapshot, result.Errors)
	}

	if result.Moved > 0 {
		c.notify(ctx, notify.LevelSuccess, movedMessage(result.Moved), notify.ActionNone, false)
	}
	if len(result.Errors) > 0 {
		c.notify(ctx, notify.LevelWarning, moveErrorsMessage(len(result.Errors)), notify.ActionNone, false)
	}

	c.logger.Info().
		Int("moved", result.Moved).
		Strs("failed", result.Errors).
		Msg("bulk move completed")

	return result, nil
}

// restoreUnmoved puts back items the remote refused to move. After a
// successful refresh they are already present and undo skips them.
func (c *Controller) restoreUnmoved(snap Snapshot, failed []string) {
	failedSet := make(map[string]bool, len(failed))
	for _, id := range failed {
		failedSet[id] = true
	}

	var back Snapshot
	for _, r := range snap.Removed {
		if failedSet[r.Item.ID] {
			back.Removed = append(back.Removed, r)
		}
	}
	if len(back.Removed) == 0 {
		return
	}

	c.mutate(func(s *SyncState) {
		s.Items = undo(s.Items, back)
	})
}

// RetryLast replays the last failed intent. It is a no-op when nothing failed.
func (c *Controller) RetryLast(ctx context.Context) error {
	intent, ok := c.LastFailed()
	if !ok {
		return nil
	}

	c.logger.Info().Str("kind", string(intent.Kind)).Msg("retrying last failed operation")

	switch intent.Kind {
	case OpAdd:
		return c.Add(ctx, *intent.Payload)
	case OpRemove:
		if intent.ItemID != "" {
			return c.RemoveItem(ctx, intent.ItemID)
		}
		return c.Remove(ctx, intent.ProductID)
	case OpUpdate:
		return c.Update(ctx, intent.ItemID, *intent.Patch)
	case OpClear:
		return c.Clear(ctx)
	case OpMove:
		_, err := c.MoveSubset(ctx, intent.ItemIDs)
		return err
	default:
		return NewError(KindValidation, "opération inconnue", nil)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
