package optimistic

import (
	"context"
	"fmt"
	"time"

	"github.com/erauner12/shopsync/internal/notify"
)

// Resolution is the user's choice for a pending conflict
type Resolution string

const (
	KeepLocal  Resolution = "keep_local"
	KeepRemote Resolution = "keep_remote"
	Merge      Resolution = "merge"
)

// Conflict captures local and remote views at the time divergence was detected
type Conflict struct {
	DetectedAt time.Time       `json:"detectedAt"`
	Cause      *OperationError `json:"cause"`
	Local      []Item          `json:"local"`
	Remote     []Item          `json:"remote"`
}

// enterConflict rolls back the optimistic change and blocks further mutations.
// Local keeps what the user saw (intent applied); Remote is a best-effort
// fetch for display, refetched again at resolution time.
func (c *Controller) enterConflict(ctx context.Context, op *PendingOperation, opErr *OperationError) {
	var local []Item
	stale := false
	c.mutate(func(s *SyncState) {
		op.Phase = PhaseRolledBack
		c.dropPending(op)
		if op.gen != c.gen {
			stale = true
			return
		}
		local = cloneItems(s.Items)
		s.Items = undo(s.Items, op.Snapshot)
	})
	if stale {
		return
	}

	var remote []Item
	if owner := c.owner.OwnerID(); owner != "" {
		coll, err := c.remote.FetchAll(ctx, owner)
		if err != nil {
			c.logger.Warn().Err(err).Msg("could not fetch remote state for conflict")
		} else {
			remote = coll.Items
		}
	}

	c.mutate(func(s *SyncState) {
		s.Error = opErr
		s.Conflict = &Conflict{
			DetectedAt: c.now(),
			Cause:      opErr,
			Local:      local,
			Remote:     remote,
		}
	})

	c.notify(ctx, notify.LevelError, msgConflictPending, notify.ActionResolve, true)
}

// ResolveConflict applies the user's resolution and unblocks mutations.
// The conflict stays installed if the resolution cannot be applied remotely.
func (c *Controller) ResolveConflict(ctx context.Context, res Resolution) error {
	c.mu.Lock()
	conflict := c.state.Conflict
	var local []Item
	if conflict != nil {
		local = cloneItems(conflict.Local)
	}
	c.mu.Unlock()

	if conflict == nil {
		return nil
	}

	owner := c.owner.OwnerID()
	if owner == "" {
		return NewError(KindAuth, msgLoginRequired, nil)
	}

	coll, err := c.remote.FetchAll(ctx, owner)
	if err != nil {
		return Classify(err)
	}

	var resolved []Item
	switch res {
	case KeepRemote:
		resolved = coll.Items
	case KeepLocal:
		resolved = local
	case Merge:
		resolved = MergeItems(local, coll.Items)
	default:
		return NewError(KindValidation, fmt.Sprintf("résolution inconnue: %s", res), nil)
	}

	if res != KeepRemote {
		if err := c.applyDiff(ctx, owner, coll.Items, resolved); err != nil {
			return err
		}
	}

	c.mutate(func(s *SyncState) {
		s.Conflict = nil
		s.Error = nil
		s.Items = cloneItems(resolved)
		if s.Items == nil {
			s.Items = []Item{}
		}
		if res == KeepRemote {
			s.Summary = coll.Summary
		}
	})

	c.logger.Info().Str("resolution", string(res)).Msg("conflict resolved")

	if err := c.Refresh(ctx); err != nil {
		return err
	}
	c.notify(ctx, notify.LevelSuccess, "conflit résolu", notify.ActionNone, false)
	return nil
}

// applyDiff brings the remote collection from current to target, keyed by product
func (c *Controller) applyDiff(ctx context.Context, owner string, current, target []Item) error {
	for _, it := range current {
		if indexByProduct(target, it.Payload.ProductID) >= 0 {
			continue
		}
		if err := c.remote.RemoveByID(ctx, owner, it.ID); err != nil && !IsNotFound(err) {
			return Classify(err)
		}
	}

	for _, want := range target {
		i := indexByProduct(current, want.Payload.ProductID)
		if i < 0 {
			if _, err := c.remote.Add(ctx, owner, want.Payload); err != nil {
				return Classify(err)
			}
			continue
		}
		have := current[i]
		if have.Payload.Quantity == want.Payload.Quantity {
			continue
		}
		q := want.Payload.Quantity
		if _, err := c.remote.Update(ctx, owner, have.ID, Patch{Quantity: &q}); err != nil {
			return Classify(err)
		}
	}

	return nil
}

// MergeItems unions local and remote by product id. When both hold a
// product, the remote record is kept with the larger quantity.
func MergeItems(local, remote []Item) []Item {
	out := cloneItems(remote)
	if out == nil {
		out = []Item{}
	}
	for _, l := range local {
		i := indexByProduct(out, l.Payload.ProductID)
		if i < 0 {
			out = append(out, l)
			continue
		}
		if l.Payload.Quantity > out[i].Payload.Quantity {
			out[i].Payload.Quantity = l.Payload.Quantity
		}
	}
	return out
}
