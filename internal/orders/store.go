package orders

import (
	"context"
	"time"
)

// Filter narrows List. Zero values match everything.
type Filter struct {
	Status Status
	UserID string
}

func (f Filter) Match(o Order) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.UserID != "" && o.UserID != f.UserID {
		return false
	}
	return true
}

// Store is the single source of truth for orders. It knows nothing about
// notifications.
type Store interface {
	// Create persists o; ErrDuplicateID if o.ID is taken.
	Create(ctx context.Context, o Order) (Order, error)
	// Get returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (Order, error)
	// List returns a snapshot in insertion order.
	List(ctx context.Context, f Filter) ([]Order, error)
	// UpdateStatus sets status and updated_at unconditionally.
	UpdateStatus(ctx context.Context, id string, to Status, at time.Time) (Order, error)
	// CompareAndSetStatus sets status only while the order is still in from;
	// otherwise it returns ErrStatusConflict.
	CompareAndSetStatus(ctx context.Context, id string, from, to Status, at time.Time) (Order, error)
}

// Catalog is the read side of the menu.
type Catalog interface {
	// Dish returns ErrDishNotFound for unknown ids.
	Dish(ctx context.Context, id int64) (Dish, error)
	Available(ctx context.Context) ([]Dish, error)
}
