package domain

import "time"

// OrderItem is a single line item on an order.
type OrderItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Order represents a purchase attributed to a customer.
//
// Amount is always server-computed as the sum of quantity*price over Items.
// It is never accepted from a client, and it is recomputed on every write
// path that touches Items.
type Order struct {
	ID         string      `json:"id" db:"id"`
	CustomerID string      `json:"customer_id" db:"customer_id"`
	Items      []OrderItem `json:"items" db:"items"`
	Amount     float64     `json:"amount" db:"amount"`
	OrderDate  time.Time   `json:"order_date" db:"order_date"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at" db:"updated_at"`
}

// ComputeOrderAmount returns the server-trusted amount for a set of line
// items. Every order write path (single create, update, bulk ingest) calls
// this explicitly rather than relying on a persistence hook, so the paths
// cannot drift.
func ComputeOrderAmount(items []OrderItem) float64 {
	var sum float64
	for _, it := range items {
		sum += float64(it.Quantity) * it.Price
	}
	return sum
}
