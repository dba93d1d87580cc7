package dto

import "time"

// LineItem is one cart line.
type LineItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
	Subtotal int64  `json:"subtotal"`
}

// Regions are the rendered parts of the page that change with the cart.
type Regions struct {
	Badge        string `json:"badge"`
	BadgeVisible bool   `json:"badge_visible"`
	ItemsHTML    string `json:"items_html"`
	Total        string `json:"total"`
	Version      uint64 `json:"version"`
}

// Change describes what a mutation did.
type Change struct {
	Kind string    `json:"kind"`
	Item *LineItem `json:"item,omitempty"`
}

// Notification is a transient confirmation message.
type Notification struct {
	ID      string    `json:"id"`
	ItemID  string    `json:"item_id"`
	Message string    `json:"message"`
	Expires time.Time `json:"expires"`
}

// CartResponse is returned by every cart endpoint.
type CartResponse struct {
	Items        []LineItem `json:"items"`
	ItemCount    int64      `json:"item_count"`
	Total        int64      `json:"total"`
	TotalDisplay string     `json:"total_display"`
	Regions      Regions    `json:"regions"`
	Change       *Change    `json:"change,omitempty"`
	// Notifications are the session's visible confirmations, including the
	// one emitted by this request.
	Notifications []Notification `json:"notifications"`
}

// NotificationsResponse lists visible notifications.
type NotificationsResponse struct {
	Notifications []Notification `json:"notifications"`
	DelayMS       int64          `json:"delay_ms"`
}

// PushSubscriptionResponse confirms a stored push subscription.
type PushSubscriptionResponse struct {
	ID string `json:"id"`
}

// VAPIDKeyResponse carries the key browsers pass to pushManager.subscribe.
type VAPIDKeyResponse struct {
	PublicKey string `json:"public_key"`
}

// Plan is a purchasable plan.
type Plan struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Price        int64    `json:"price"`
	PriceDisplay string   `json:"price_display"`
	Description  string   `json:"description,omitempty"`
	Features     []string `json:"features,omitempty"`
	Highlight    bool     `json:"highlight,omitempty"`
}

// PlansResponse lists the catalog.
type PlansResponse struct {
	Currency string `json:"currency,omitempty"`
	Plans    []Plan `json:"plans"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
