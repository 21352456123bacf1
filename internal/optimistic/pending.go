package optimistic

import (
	"time"
)

// OpKind is the kind of mutation a PendingOperation tracks
type OpKind string

const (
	OpAdd    OpKind = "add"
	OpRemove OpKind = "remove"
	OpUpdate OpKind = "update"
	OpClear  OpKind = "clear"
	OpMove   OpKind = "move"
)

// Phase is the lifecycle position of a PendingOperation
type Phase string

const (
	PhaseCreated        Phase = "created"
	PhaseInFlight       Phase = "in_flight"
	PhaseRetryScheduled Phase = "retry_scheduled"
	PhaseConfirmed      Phase = "confirmed"
	PhaseRolledBack     Phase = "rolled_back"
)

// IndexedItem remembers where a removed item used to be
type IndexedItem struct {
	Index int
	Item  Item
}

// Snapshot is the minimal state needed to undo one optimistic change
type Snapshot struct {
	AddedID  string        // add: optimistic item to drop
	Removed  []IndexedItem // remove, clear, move: items to put back
	Previous *Item         // update: item before the patch
}

// PendingOperation is an in-flight optimistic change
type PendingOperation struct {
	OperationID string
	Kind        OpKind
	Snapshot    Snapshot
	CreatedAt   time.Time
	Phase       Phase

	gen uint64
}

// undo reverts the change recorded in snap against the current items.
// It patches rather than restores so that overlapping operations survive.
func undo(items []Item, snap Snapshot) []Item {
	out := cloneItems(items)

	if snap.AddedID != "" {
		if i := indexByID(out, snap.AddedID); i >= 0 {
			out = removeAt(out, i)
		}
	}

	if snap.Previous != nil {
		if i := indexByID(out, snap.Previous.ID); i >= 0 {
			out[i] = *snap.Previous
		}
	}

	for _, r := range snap.Removed {
		if indexByID(out, r.Item.ID) >= 0 || indexByProduct(out, r.Item.Payload.ProductID) >= 0 {
			continue
		}
		out = insertAt(out, r.Index, r.Item)
	}

	return out
}
