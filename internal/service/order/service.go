package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/minicrm/internal/domain"
)

// Ledger implements order business logic and keeps customer aggregates
// reconciled with the orders that produced them.
type Ledger struct {
	repo Repository
}

// NewLedger creates an order ledger backed by the given repository.
func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo}
}

// ItemInput is one order line item as supplied by the caller.
type ItemInput struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// CreateInput holds the fields for creating a new order. Amount is never
// accepted from callers; it is always computed from the items.
type CreateInput struct {
	CustomerID string      `json:"customerId"`
	Items      []ItemInput `json:"items"`
	OrderDate  *time.Time  `json:"orderDate"`
}

// UpdateFields holds the mutable order fields. Nil fields are not applied.
type UpdateFields struct {
	CustomerID *string
	Items      *[]ItemInput
	OrderDate  *time.Time
}

// Get returns a single order.
func (l *Ledger) Get(ctx context.Context, id string) (*domain.Order, error) {
	return l.repo.Get(ctx, id)
}

// List returns orders matching the filter plus the total match count.
func (l *Ledger) List(ctx context.Context, f ListFilter) ([]domain.Order, int, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return l.repo.List(ctx, f)
}

// Create validates the input, computes the amount from the items, and
// persists the order together with the owning customer's aggregate update:
// total spend grows by the amount, visits by one, last active advances to
// the order date.
func (l *Ledger) Create(ctx context.Context, input CreateInput) (*domain.Order, error) {
	o, err := buildOrder(input)
	if err != nil {
		return nil, err
	}

	delta := CustomerDelta{
		CustomerID: o.CustomerID,
		SpendDelta: o.Amount,
		VisitDelta: 1,
		LastActive: o.OrderDate,
	}
	if err := l.repo.CreateWithDelta(ctx, o, delta); err != nil {
		return nil, err
	}
	return o, nil
}

// Update applies partial changes. Any change to items recomputes the
// amount. When the owning customer changes, the financial effect migrates:
// the old customer loses the prior amount (spend only), the new customer
// gains the new amount plus a visit. When the customer is unchanged, only
// the amount difference is applied, with no visit change.
func (l *Ledger) Update(ctx context.Context, id string, u UpdateFields) (*domain.Order, error) {
	before, err := l.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	after := *before
	if u.Items != nil {
		items, err := validateItems(*u.Items)
		if err != nil {
			return nil, err
		}
		after.Items = items
		after.Amount = domain.ComputeOrderAmount(items)
	}
	if u.CustomerID != nil {
		if strings.TrimSpace(*u.CustomerID) == "" {
			return nil, fmt.Errorf("customer id cannot be empty")
		}
		after.CustomerID = *u.CustomerID
	}
	if u.OrderDate != nil {
		after.OrderDate = u.OrderDate.UTC()
	}
	after.UpdatedAt = time.Now().UTC()

	var deltas []CustomerDelta
	switch {
	case before.CustomerID != after.CustomerID:
		if before.Amount != 0 {
			deltas = append(deltas, CustomerDelta{
				CustomerID: before.CustomerID,
				SpendDelta: -before.Amount,
			})
		}
		deltas = append(deltas, CustomerDelta{
			CustomerID: after.CustomerID,
			SpendDelta: after.Amount,
			VisitDelta: 1,
			LastActive: after.OrderDate,
		})
	case before.Amount != after.Amount:
		deltas = append(deltas, CustomerDelta{
			CustomerID: after.CustomerID,
			SpendDelta: after.Amount - before.Amount,
			LastActive: after.OrderDate,
		})
	}

	if err := l.repo.UpdateWithDeltas(ctx, &after, deltas); err != nil {
		return nil, err
	}
	return &after, nil
}

// Delete removes the order and subtracts its amount from the owning
// customer's total spend. Visits are not decremented; the customer row
// always persists.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	o, err := l.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	delta := CustomerDelta{CustomerID: o.CustomerID}
	if o.Amount > 0 {
		delta.SpendDelta = -o.Amount
	}
	return l.repo.DeleteWithDelta(ctx, id, delta)
}

// BulkCreate validates every row up front, failing fast with the 1-based
// index of the first invalid row. Amounts are computed per row by the same
// pure function the single-order path uses. Per-customer deltas are
// aggregated across the whole batch so each distinct customer receives
// exactly one update, and everything commits in one transaction.
func (l *Ledger) BulkCreate(ctx context.Context, inputs []CreateInput) ([]domain.Order, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("empty order batch")
	}

	orders := make([]domain.Order, 0, len(inputs))
	for i, input := range inputs {
		o, err := buildOrder(input)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		orders = append(orders, *o)
	}

	byCustomer := make(map[string]*CustomerDelta)
	var customerOrder []string
	for _, o := range orders {
		d, ok := byCustomer[o.CustomerID]
		if !ok {
			d = &CustomerDelta{CustomerID: o.CustomerID}
			byCustomer[o.CustomerID] = d
			customerOrder = append(customerOrder, o.CustomerID)
		}
		d.SpendDelta += o.Amount
		d.VisitDelta++
		if o.OrderDate.After(d.LastActive) {
			d.LastActive = o.OrderDate
		}
	}

	deltas := make([]CustomerDelta, 0, len(byCustomer))
	for _, id := range customerOrder {
		deltas = append(deltas, *byCustomer[id])
	}

	if err := l.repo.CreateBatchWithDeltas(ctx, orders, deltas); err != nil {
		var missing *MissingCustomerError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("row %d: %w", firstRowForCustomer(inputs, missing.CustomerID), err)
		}
		return nil, err
	}
	return orders, nil
}

func buildOrder(input CreateInput) (*domain.Order, error) {
	if strings.TrimSpace(input.CustomerID) == "" {
		return nil, fmt.Errorf("customer id is required")
	}
	items, err := validateItems(input.Items)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	orderDate := now
	if input.OrderDate != nil && !input.OrderDate.IsZero() {
		orderDate = input.OrderDate.UTC()
	}

	return &domain.Order{
		ID:         uuid.New().String(),
		CustomerID: input.CustomerID,
		Items:      items,
		Amount:     domain.ComputeOrderAmount(items),
		OrderDate:  orderDate,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func validateItems(inputs []ItemInput) ([]domain.OrderItem, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("at least one item is required")
	}
	items := make([]domain.OrderItem, 0, len(inputs))
	for i, it := range inputs {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			return nil, fmt.Errorf("item %d: name is required", i+1)
		}
		if it.Quantity < 1 {
			return nil, fmt.Errorf("item %d: quantity must be at least 1", i+1)
		}
		if it.Price < 0 {
			return nil, fmt.Errorf("item %d: price cannot be negative", i+1)
		}
		items = append(items, domain.OrderItem{Name: name, Quantity: it.Quantity, Price: it.Price})
	}
	return items, nil
}

func firstRowForCustomer(inputs []CreateInput, customerID string) int {
	for i, in := range inputs {
		if in.CustomerID == customerID {
			return i + 1
		}
	}
	return 1
}
