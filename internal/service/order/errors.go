package order

import (
	"errors"
	"fmt"
)

// Sentinel errors for the order service layer.
var (
	ErrNotFound         = errors.New("order not found")
	ErrCustomerNotFound = errors.New("customer not found")
)

// MissingCustomerError reports which customer reference failed an existence
// check. It unwraps to ErrCustomerNotFound.
type MissingCustomerError struct {
	CustomerID string
}

func (e *MissingCustomerError) Error() string {
	return fmt.Sprintf("customer %s not found", e.CustomerID)
}

func (e *MissingCustomerError) Unwrap() error { return ErrCustomerNotFound }
