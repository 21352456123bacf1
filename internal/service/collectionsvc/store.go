package collectionsvc

import (
	"context"
	"errors"

	"github.com/erauner12/shopsync/internal/optimistic"
	"github.com/erauner12/shopsync/internal/syncx"
)

var (
	// ErrNotFound is returned when the item does not exist for the owner
	ErrNotFound = errors.New("item not found")
	// ErrDuplicate is returned when the collection already holds the product
	ErrDuplicate = errors.New("product already in collection")
	// ErrUnknownCollection is returned for a collection name the service does not serve
	ErrUnknownCollection = errors.New("unknown collection")
)

// Store persists collection lines. Implementations must keep at most one
// line per (owner, collection, product).
type Store interface {
	// List returns up to limit items created after the cursor, oldest first
	List(ctx context.Context, owner, collection string, after syncx.Cursor, limit int) ([]optimistic.Item, error)
	// All returns every item of the collection, oldest first
	All(ctx context.Context, owner, collection string) ([]optimistic.Item, error)
	// Insert stores a new line; ErrDuplicate if the product is present
	Insert(ctx context.Context, owner, collection string, item optimistic.Item) error
	// SetQuantity updates a line; ErrNotFound if missing
	SetQuantity(ctx context.Context, owner, collection, id string, quantity int) (optimistic.Item, error)
	// Delete removes a line by id; ErrNotFound if missing
	Delete(ctx context.Context, owner, collection, id string) error
	// DeleteByProduct removes the line holding productID; ErrNotFound if missing
	DeleteByProduct(ctx context.Context, owner, collection, productID string) error
	// Clear removes every line and returns how many were deleted
	Clear(ctx context.Context, owner, collection string) (int, error)
	// Move transfers a line to another collection atomically. When the target
	// already holds the product, quantities are summed into the target line.
	Move(ctx context.Context, owner, from, to, id string) error

	// Epoch returns the owner's sync epoch, creating it at 1 on first use
	Epoch(ctx context.Context, owner string) (int, error)
	// Wipe deletes all of the owner's lines and bumps the epoch
	Wipe(ctx context.Context, owner string) (epoch int, deleted map[string]int, err error)
}
