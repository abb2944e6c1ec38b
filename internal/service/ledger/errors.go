package ledger

import "errors"

var (
	// ErrInvalidInput marks requests that fail field validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInsufficientStock is returned when a sale asks for more than is on hand.
	ErrInsufficientStock = errors.New("insufficient stock")
)
