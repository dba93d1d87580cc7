package handlers

import (
	"errors"

	"github.com/maruel/plancart/internal/cart"
	"github.com/maruel/plancart/internal/server/dto"
)

// cartError maps a cart.Store error to an API error.
//
// Input errors are rejected before anything is saved, so any other error is
// a failed save and the cart is unchanged.
func cartError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, cart.ErrInvalidID):
		return dto.InvalidField("id", err)
	case errors.Is(err, cart.ErrInvalidPrice):
		return dto.InvalidField("price", err)
	case errors.Is(err, cart.ErrInvalidQuantity):
		return dto.InvalidField("quantity", err)
	case errors.Is(err, cart.ErrQuotaExceeded):
		return dto.QuotaExceeded(err)
	default:
		return dto.StorageError(err)
	}
}
