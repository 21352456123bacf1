package optimistic

import (
	"time"

	"github.com/erauner12/shopsync/internal/summary"
)

// SyncState is the read-only view a controller publishes to its consumers
type SyncState struct {
	Items        []Item                 `json:"items"`
	Loading      bool                   `json:"loading"`
	Syncing      bool                   `json:"syncing"`
	LastSyncedAt time.Time              `json:"lastSyncedAt"`
	Error        *OperationError        `json:"error,omitempty"`
	RetryCount   int                    `json:"retryCount"`
	Conflict     *Conflict              `json:"conflict,omitempty"`
	Summary      *summary.Authoritative `json:"summary,omitempty"`
}

func (s SyncState) clone() SyncState {
	out := s
	out.Items = cloneItems(s.Items)
	if s.Error != nil {
		e := *s.Error
		out.Error = &e
	}
	if s.Conflict != nil {
		c := *s.Conflict
		c.Local = cloneItems(s.Conflict.Local)
		c.Remote = cloneItems(s.Conflict.Remote)
		out.Conflict = &c
	}
	if s.Summary != nil {
		a := *s.Summary
		out.Summary = &a
	}
	return out
}

// Find returns the item with the given id
func (s SyncState) Find(id string) (Item, bool) {
	if i := indexByID(s.Items, id); i >= 0 {
		return s.Items[i], true
	}
	return Item{}, false
}

// FindByProduct returns the item holding the given product
func (s SyncState) FindByProduct(productID string) (Item, bool) {
	if i := indexByProduct(s.Items, productID); i >= 0 {
		return s.Items[i], true
	}
	return Item{}, false
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

func indexByID(items []Item, id string) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func indexByProduct(items []Item, productID string) int {
	for i, it := range items {
		if it.Payload.ProductID == productID {
			return i
		}
	}
	return -1
}

func removeAt(items []Item, i int) []Item {
	out := make([]Item, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...)
}

func insertAt(items []Item, i int, item Item) []Item {
	if i > len(items) {
		i = len(items)
	}
	out := make([]Item, 0, len(items)+1)
	out = append(out, items[:i]...)
	out = append(out, item)
	return append(out, items[i:]...)
}
