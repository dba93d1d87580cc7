package cart

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxPrice bounds unit prices.
const MaxPrice = 1_000_000_000_000

// MaxQuantity bounds the quantity of one line so a subtotal always fits in
// an int64. Grand totals are checked separately.
const MaxQuantity = 1_000_000

// LineItem is one distinct purchasable entry in the cart.
type LineItem struct {
	ID       string `json:"id" jsonschema:"description=Identifier of the plan or product,minLength=1"`
	Name     string `json:"name" jsonschema:"description=Display label"`
	Price    int64  `json:"price" jsonschema:"description=Unit price in whole currency units,minimum=0"`
	Quantity int64  `json:"quantity" jsonschema:"description=Number of units,minimum=1"`
}

// Subtotal returns price × quantity.
func (l LineItem) Subtotal() int64 {
	return l.Price * l.Quantity
}

// Validate checks the invariants of a stored line.
func (l *LineItem) Validate() error {
	if l.ID == "" {
		return ErrInvalidID
	}
	if l.Price < 0 {
		return errNegativePrice
	}
	if l.Price > MaxPrice {
		return fmt.Errorf("%w: %d", ErrInvalidPrice, l.Price)
	}
	if l.Quantity < 1 {
		return errNonPositiveQty
	}
	if l.Quantity > MaxQuantity {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, l.Quantity)
	}
	return nil
}

// ParsePrice coerces a textual price to an integer.
//
// Whole base-10 values, optionally surrounded by spaces, are accepted,
// including JSON spellings such as "1e4" or "10000.0". Values such as "abc",
// "12.5" or "" are rejected rather than stored as garbage.
func ParsePrice(s string) (int64, error) {
	v, err := parseInt(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidPrice, s, err)
	}
	if v < 0 || v > MaxPrice {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPrice, v)
	}
	return v, nil
}

// ParseQuantity coerces a textual quantity to an integer.
//
// Zero and negative values are valid input: they remove the line.
func ParseQuantity(s string) (int64, error) {
	v, err := parseInt(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidQuantity, s, err)
	}
	return v, nil
}

// maxExactFloat is the largest magnitude below which every integer is exact
// in a float64.
const maxExactFloat = 1 << 53

func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errNotAnInteger
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return v, nil
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, errIntegerTooLarge
	}
	// Decimal or exponent spelling of a whole number. ParseFloat also takes
	// hex, "Inf" and "NaN", which are not numbers here.
	if strings.IndexFunc(s, func(r rune) bool { return !strings.ContainsRune("0123456789+-.eE", r) }) >= 0 {
		return 0, errNotAnInteger
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, errIntegerTooLarge
		}
		return 0, errNotAnInteger
	}
	if f != math.Trunc(f) {
		return 0, errNotAnInteger
	}
	if math.Abs(f) > maxExactFloat {
		return 0, errIntegerTooLarge
	}
	return int64(f), nil
}

// checkedTotal returns the sum of subtotals, or false when it does not fit in
// an int64.
func checkedTotal(items []LineItem) (int64, bool) {
	var t int64
	for _, l := range items {
		if l.Quantity > 0 && l.Price > math.MaxInt64/l.Quantity {
			return 0, false
		}
		sub := l.Price * l.Quantity
		if t > math.MaxInt64-sub {
			return 0, false
		}
		t += sub
	}
	return t, true
}
