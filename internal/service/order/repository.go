package order

import (
	"context"
	"time"

	"github.com/ignite/minicrm/internal/domain"
)

// CustomerDelta is one compensating aggregate update for a customer,
// applied atomically alongside the order write that produced it.
// SpendDelta and VisitDelta use additive increments at the storage layer;
// LastActive only ever moves forward (greatest-wins) and is skipped when
// zero.
type CustomerDelta struct {
	CustomerID string
	SpendDelta float64
	VisitDelta int
	LastActive time.Time
}

// Repository defines the data access contract for orders. Every method
// taking deltas must apply the order write and all customer updates in one
// transaction: any failure rolls back everything.
//
// Implementations must verify that delta targets exist and return
// *MissingCustomerError for a dangling reference.
type Repository interface {
	// Get returns a single order. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Order, error)

	// List returns orders matching the filter plus the total match count,
	// ordered by order_date DESC, created_at DESC.
	List(ctx context.Context, filter ListFilter) ([]domain.Order, int, error)

	// CreateWithDelta inserts the order and applies the customer delta.
	CreateWithDelta(ctx context.Context, o *domain.Order, delta CustomerDelta) error

	// UpdateWithDeltas rewrites the order row and applies each delta.
	// Deltas may target different customers (order reassignment).
	UpdateWithDeltas(ctx context.Context, o *domain.Order, deltas []CustomerDelta) error

	// DeleteWithDelta removes the order and applies the compensating delta.
	DeleteWithDelta(ctx context.Context, id string, delta CustomerDelta) error

	// CreateBatchWithDeltas inserts all orders and applies one delta per
	// distinct customer, all in a single transaction. Customer existence is
	// checked up front inside the transaction.
	CreateBatchWithDeltas(ctx context.Context, orders []domain.Order, deltas []CustomerDelta) error
}

// ListFilter controls filtering and pagination for order lists.
type ListFilter struct {
	CustomerID string
	From       time.Time
	To         time.Time
	MinAmount  *float64
	MaxAmount  *float64
	Limit      int
	Offset     int
}
