package customer

import (
	"context"

	"github.com/ignite/minicrm/internal/domain"
)

// Repository defines the data access contract for customers.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single customer. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Customer, error)

	// List returns customers matching the filter plus the total match count,
	// ordered by created_at DESC.
	List(ctx context.Context, filter ListFilter) ([]domain.Customer, int, error)

	// Create inserts a new customer. Returns ErrDuplicateEmail when the
	// email is already taken.
	Create(ctx context.Context, c *domain.Customer) error

	// CreateBatch inserts all customers atomically. Returns
	// ErrDuplicateEmail when any email collides, aborting the whole batch.
	CreateBatch(ctx context.Context, cs []domain.Customer) error

	// Update applies the non-nil fields. Returns ErrNotFound when the
	// customer doesn't exist and ErrDuplicateEmail on an email collision.
	Update(ctx context.Context, id string, u UpdateFields) error

	// Delete removes a customer. Returns ErrNotFound when absent.
	Delete(ctx context.Context, id string) error
}

// ListFilter controls pagination and text search for customer lists.
// Search matches name or email, case-insensitively.
type ListFilter struct {
	Search string
	Limit  int
	Offset int
}

// UpdateFields holds the mutable customer fields. Nil fields are not applied.
type UpdateFields struct {
	Name  *string
	Email *string
	Phone *string
}
