package optimistic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erauner12/shopsync/internal/summary"
)

// fakeRemote is an in-memory RemoteStore with scripted failures
type fakeRemote struct {
	mu       sync.Mutex
	items    []Item
	seq      int
	failures map[string][]error
	calls    map[string]int
	unmoved  map[string]bool
	summary  *summary.Authoritative
	onCall   func(method string)
}

func newFakeRemote(items ...Item) *fakeRemote {
	return &fakeRemote{
		items:    items,
		failures: make(map[string][]error),
		calls:    make(map[string]int),
		unmoved:  make(map[string]bool),
	}
}

// failNext queues errors returned by the next calls of method
func (f *fakeRemote) failNext(method string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = append(f.failures[method], errs...)
}

func (f *fakeRemote) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeRemote) snapshot() []Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneItems(f.items)
}

// enter records the call and pops a scripted failure; caller must not hold mu
func (f *fakeRemote) enter(method string) error {
	if f.onCall != nil {
		f.onCall(method)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	if q := f.failures[method]; len(q) > 0 {
		f.failures[method] = q[1:]
		return q[0]
	}
	return nil
}

func (f *fakeRemote) FetchAll(ctx context.Context, ownerID string) (Collection, error) {
	if err := f.enter("FetchAll"); err != nil {
		return Collection{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return Collection{Items: cloneItems(f.items), Summary: f.summary}, nil
}

func (f *fakeRemote) Add(ctx context.Context, ownerID string, p Payload) (Item, error) {
	if err := f.enter("Add"); err != nil {
		return Item{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if indexByProduct(f.items, p.ProductID) >= 0 {
		return Item{}, NewError(KindConflict, "already_exists", nil)
	}
	f.seq++
	item := Item{
		ID:        fmt.Sprintf("srv-%d", f.seq),
		OwnerID:   ownerID,
		Payload:   p,
		CreatedAt: time.Unix(int64(f.seq), 0).UTC(),
	}
	f.items = append(f.items, item)
	return item, nil
}

func (f *fakeRemote) RemoveByKey(ctx context.Context, ownerID, productID string) error {
	if err := f.enter("RemoveByKey"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := indexByProduct(f.items, productID)
	if i < 0 {
		return fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	f.items = removeAt(f.items, i)
	return nil
}

func (f *fakeRemote) RemoveByID(ctx context.Context, ownerID, itemID string) error {
	if err := f.enter("RemoveByID"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := indexByID(f.items, itemID)
	if i < 0 {
		return fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	f.items = removeAt(f.items, i)
	return nil
}

func (f *fakeRemote) Update(ctx context.Context, ownerID, itemID string, patch Patch) (Item, error) {
	if err := f.enter("Update"); err != nil {
		return Item{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := indexByID(f.items, itemID)
	if i < 0 {
		return Item{}, fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	f.items[i] = patch.apply(f.items[i])
	return f.items[i], nil
}

func (f *fakeRemote) Clear(ctx context.Context, ownerID string) error {
	if err := f.enter("Clear"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = nil
	return nil
}

func (f *fakeRemote) MoveSubset(ctx context.Context, ownerID string, itemIDs []string) (MoveResult, error) {
	if err := f.enter("MoveSubset"); err != nil {
		return MoveResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	res := MoveResult{Errors: []string{}}
	for _, id := range itemIDs {
		i := indexByID(f.items, id)
		if i < 0 || f.unmoved[id] {
			res.Errors = append(res.Errors, id)
			continue
		}
		f.items = removeAt(f.items, i)
		res.Moved++
	}
	return res, nil
}

// recordingSleeper captures requested delays without waiting
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}
