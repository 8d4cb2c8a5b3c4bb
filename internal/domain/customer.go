package domain

import "time"

// Customer represents a single CRM contact with its financial aggregates.
//
// TotalSpend, Visits and LastActive are derived aggregates maintained by the
// order ledger: they must always equal the reconciled sum/count of non-deleted
// orders attributed to this customer. They are never recomputed at query time.
type Customer struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Email      string    `json:"email" db:"email"`
	Phone      string    `json:"phone,omitempty" db:"phone"`
	TotalSpend float64   `json:"total_spend" db:"total_spend"`
	Visits     int       `json:"visits" db:"visits"`
	LastActive time.Time `json:"last_active" db:"last_active"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
