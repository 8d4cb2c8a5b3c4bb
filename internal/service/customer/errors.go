package customer

import "errors"

// Sentinel errors for the customer service layer.
var (
	ErrNotFound       = errors.New("customer not found")
	ErrDuplicateEmail = errors.New("customer email already exists")
)
