package orders

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("order not found")

	// ErrConflict means the row was not in the expected status when the
	// conditional update ran.
	ErrConflict = errors.New("order status changed concurrently")

	// ErrDuplicate means the order number or external id is already taken.
	ErrDuplicate = errors.New("order already exists")
)

// TransitionUpdate is applied atomically: status, its timestamp, the optional
// tracking number and the optional note all land, or none do.
type TransitionUpdate struct {
	OrderID        string
	From           Status
	To             Status
	At             time.Time
	TrackingNumber *string
	Note           *Note
}

type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*Order, error)
	FindByExternalID(ctx context.Context, externalID string) (*Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, error)
	// ApplyTransition must only write when the stored status equals u.From.
	ApplyTransition(ctx context.Context, u TransitionUpdate) error
	AppendNote(ctx context.Context, orderID string, n Note) error
	// UpdateTracking must only write when the stored status is one of allowed.
	UpdateTracking(ctx context.Context, orderID, tracking string, allowed []Status, at time.Time) error
}
