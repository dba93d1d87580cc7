package dto

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Number is an integer sent either as a JSON number or as a string, such as
// the data-price attribute of a button. It is kept verbatim so the cart's
// coercion rules decide what is valid.
type Number string

// UnmarshalJSON accepts a number, a string or null.
func (n *Number) UnmarshalJSON(b []byte) error {
	d := json.NewDecoder(bytes.NewReader(b))
	d.UseNumber()
	var v any
	if err := d.Decode(&v); err != nil {
		return err
	}
	switch v := v.(type) {
	case nil:
		*n = ""
	case string:
		*n = Number(v)
	case json.Number:
		*n = Number(v.String())
	default:
		return errNotNumber
	}
	return nil
}

// IsZero reports whether the value was absent or null.
func (n Number) IsZero() bool {
	return n == ""
}

var errNotNumber = errors.New("expected a number or a string")
