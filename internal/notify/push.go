package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/maruel/ksid"

	"github.com/maruel/plancart/internal/jsonldb"
)

// VAPIDKeys is the key pair identifying this server to push services.
type VAPIDKeys struct {
	Public  string
	Private string
	// Subscriber is a mailto: or https: contact for the push service.
	Subscriber string
}

// Subscription is a browser's Web Push endpoint, bound to a cart session.
type Subscription struct {
	ID       ksid.ID   `json:"id"`
	Session  string    `json:"session"`
	Endpoint string    `json:"endpoint"`
	P256dh   string    `json:"p256dh"`
	Auth     string    `json:"auth"`
	Created  time.Time `json:"created"`
}

// Clone returns a copy.
func (s *Subscription) Clone() *Subscription {
	c := *s
	return &c
}

// Validate checks required fields.
func (s *Subscription) Validate() error {
	if s.ID.IsZero() {
		return errPushSubIDRequired
	}
	if s.Session == "" {
		return errPushSubSessionRequired
	}
	if s.Endpoint == "" {
		return errPushSubEndpointRequired
	}
	return nil
}

// Pusher delivers notifications to the push subscriptions of a session.
type Pusher struct {
	keys   VAPIDKeys
	table  *jsonldb.Table[*Subscription]
	client webpush.HTTPClient
	ttl    int
}

// NewPusher opens the subscription table at path.
func NewPusher(path string, keys VAPIDKeys) (*Pusher, error) {
	if keys.Public == "" || keys.Private == "" {
		return nil, errVAPIDRequired
	}
	table, err := jsonldb.NewTable[*Subscription](path)
	if err != nil {
		return nil, err
	}
	return &Pusher{keys: keys, table: table, client: http.DefaultClient, ttl: 60}, nil
}

// PublicKey returns the VAPID public key browsers subscribe with.
func (p *Pusher) PublicKey() string {
	return p.keys.Public
}

// Subscribe creates or replaces the subscription for endpoint.
func (p *Pusher) Subscribe(session, endpoint, p256dh, auth string) (*Subscription, error) {
	sub := &Subscription{
		ID:       ksid.NewID(),
		Session:  session,
		Endpoint: endpoint,
		P256dh:   p256dh,
		Auth:     auth,
		Created:  time.Now().UTC(),
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	err := p.table.Modify(func(rows []*Subscription) ([]*Subscription, error) {
		rows = slices.DeleteFunc(rows, func(r *Subscription) bool { return r.Endpoint == endpoint })
		return append(rows, sub), nil
	})
	if err != nil {
		return nil, err
	}
	return sub.Clone(), nil
}

// Subscriptions returns the subscriptions of session.
func (p *Pusher) Subscriptions(session string) []*Subscription {
	var out []*Subscription
	for s := range p.table.All() {
		if s.Session == session {
			out = append(out, s)
		}
	}
	return out
}

// Delete removes the subscription id.
func (p *Pusher) Delete(id ksid.ID) error {
	return p.table.Modify(func(rows []*Subscription) ([]*Subscription, error) {
		n := len(rows)
		rows = slices.DeleteFunc(rows, func(r *Subscription) bool { return r.ID == id })
		if len(rows) == n {
			return nil, errPushSubNotFound
		}
		return rows, nil
	})
}

// Push sends n to every subscription of session. Failures are logged.
//
// Subscriptions the push service reports as gone are deleted.
func (p *Pusher) Push(ctx context.Context, session string, n Notification) {
	subs := p.Subscriptions(session)
	if len(subs) == 0 {
		return
	}
	payload, err := json.Marshal(map[string]string{
		"id":      n.ID.String(),
		"item_id": n.ItemID,
		"body":    n.Message,
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to encode push payload", "err", err)
		return
	}
	for _, sub := range subs {
		if ctx.Err() != nil {
			return
		}
		resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
		}, &webpush.Options{
			HTTPClient:      p.client,
			Subscriber:      p.keys.Subscriber,
			VAPIDPublicKey:  p.keys.Public,
			VAPIDPrivateKey: p.keys.Private,
			TTL:             p.ttl,
		})
		if err != nil {
			slog.ErrorContext(ctx, "Web push send failed", "err", err, "endpoint", sub.Endpoint)
			continue
		}
		_ = resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
			if err := p.Delete(sub.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to delete expired push subscription", "err", err, "sub_id", sub.ID)
			}
		case resp.StatusCode >= 400:
			slog.WarnContext(ctx, "Web push rejected", "status", resp.StatusCode, "endpoint", sub.Endpoint)
		}
	}
}

var (
	errVAPIDRequired           = errors.New("vapid public and private keys are required")
	errPushSubIDRequired       = errors.New("push subscription id is required")
	errPushSubSessionRequired  = errors.New("push subscription session is required")
	errPushSubEndpointRequired = errors.New("push subscription endpoint is required")
	errPushSubNotFound         = errors.New("push subscription not found")
)
