package dto

import (
	"net/url"
	"strings"

	"github.com/maruel/plancart/internal/cart"
)

// GetCartRequest is a request to read the session's cart.
type GetCartRequest struct{}

// Validate implements Validatable.
func (r *GetCartRequest) Validate() error { return nil }

// AddItemRequest adds one unit of an item.
type AddItemRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price Number `json:"price"`

	price int64
}

// Validate checks the fields and coerces the price.
func (r *AddItemRequest) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return MissingField("id")
	}
	if r.Price.IsZero() {
		return MissingField("price")
	}
	v, err := cart.ParsePrice(string(r.Price))
	if err != nil {
		return InvalidField("price", err)
	}
	r.price = v
	return nil
}

// PriceValue returns the price coerced by Validate.
func (r *AddItemRequest) PriceValue() int64 { return r.price }

// UpdateItemRequest sets the quantity of a line. Zero or less removes it.
type UpdateItemRequest struct {
	ID       string `path:"id" json:"-"`
	Quantity Number `json:"quantity"`

	quantity int64
}

// Validate checks the fields and coerces the quantity.
func (r *UpdateItemRequest) Validate() error {
	if r.ID == "" {
		return MissingField("id")
	}
	if r.Quantity.IsZero() {
		return MissingField("quantity")
	}
	v, err := cart.ParseQuantity(string(r.Quantity))
	if err != nil {
		return InvalidField("quantity", err)
	}
	r.quantity = v
	return nil
}

// QuantityValue returns the quantity coerced by Validate.
func (r *UpdateItemRequest) QuantityValue() int64 { return r.quantity }

// RemoveItemRequest removes a line.
type RemoveItemRequest struct {
	ID string `path:"id" json:"-"`
}

// Validate implements Validatable.
func (r *RemoveItemRequest) Validate() error {
	if r.ID == "" {
		return MissingField("id")
	}
	return nil
}

// ClearCartRequest empties the cart.
type ClearCartRequest struct{}

// Validate implements Validatable.
func (r *ClearCartRequest) Validate() error { return nil }

// ListNotificationsRequest lists the session's visible notifications.
type ListNotificationsRequest struct{}

// Validate implements Validatable.
func (r *ListNotificationsRequest) Validate() error { return nil }

// PushKeys are the subscription keys generated by the browser.
type PushKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// SubscribePushRequest is the JSON form of a browser PushSubscription.
type SubscribePushRequest struct {
	Endpoint       string   `json:"endpoint"`
	ExpirationTime *int64   `json:"expirationTime,omitempty"`
	Keys           PushKeys `json:"keys"`
}

// Validate implements Validatable.
func (r *SubscribePushRequest) Validate() error {
	if r.Endpoint == "" {
		return MissingField("endpoint")
	}
	u, err := url.Parse(r.Endpoint)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return BadRequest("endpoint must be an absolute http(s) URL").WithDetail("field", "endpoint")
	}
	if r.Keys.P256dh == "" {
		return MissingField("keys.p256dh")
	}
	if r.Keys.Auth == "" {
		return MissingField("keys.auth")
	}
	return nil
}

// GetVAPIDKeyRequest asks for the server's application server key.
type GetVAPIDKeyRequest struct{}

// Validate implements Validatable.
func (r *GetVAPIDKeyRequest) Validate() error { return nil }

// ListPlansRequest lists the catalog.
type ListPlansRequest struct{}

// Validate implements Validatable.
func (r *ListPlansRequest) Validate() error { return nil }

// HealthRequest is a health check.
type HealthRequest struct{}

// Validate implements Validatable.
func (r *HealthRequest) Validate() error { return nil }

// CartSchemaRequest asks for the JSON Schema of the persisted cart.
type CartSchemaRequest struct{}

// Validate implements Validatable.
func (r *CartSchemaRequest) Validate() error { return nil }
