package cart

import "errors"

var (
	// ErrInvalidID is returned when an item ID is empty.
	ErrInvalidID = errors.New("item id is required")
	// ErrInvalidPrice is returned when a price is not a non-negative integer.
	ErrInvalidPrice = errors.New("price must be a non-negative integer")
	// ErrInvalidQuantity is returned when a quantity is not an integer.
	ErrInvalidQuantity = errors.New("quantity must be an integer")
	// ErrQuotaExceeded is returned when a mutation would exceed the line or
	// quantity limits.
	ErrQuotaExceeded = errors.New("cart limit exceeded")

	errDuplicateID     = errors.New("duplicate item id")
	errNonPositiveQty  = errors.New("quantity must be at least 1")
	errNegativePrice   = errors.New("price must not be negative")
	errNotAnInteger    = errors.New("not an integer")
	errIntegerTooLarge = errors.New("integer out of range")
	errTotalOverflow   = errors.New("cart total out of range")
)
