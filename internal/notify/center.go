// Package notify shows transient confirmations when items are added to a cart.
//
// Notifications stack per session without deduplication and disappear after a
// fixed delay. They can also be delivered through Web Push.
package notify

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/maruel/ksid"

	"github.com/maruel/plancart/internal/cart"
	"github.com/maruel/plancart/internal/i18n"
)

// DefaultDelay is how long a notification stays visible.
const DefaultDelay = 3 * time.Second

// Notification is one visible confirmation.
type Notification struct {
	ID      ksid.ID   `json:"id"`
	ItemID  string    `json:"item_id"`
	Message string    `json:"message"`
	Created time.Time `json:"created"`
	Expires time.Time `json:"expires"`
}

// Center tracks the visible notifications of every session.
type Center struct {
	delay  time.Duration
	pusher *Pusher

	mu     sync.Mutex
	active map[string][]Notification
}

// NewCenter returns a Center dismissing notifications after delay.
//
// pusher may be nil.
func NewCenter(delay time.Duration, pusher *Pusher) *Center {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Center{delay: delay, pusher: pusher, active: map[string][]Notification{}}
}

// Emit shows message to session and schedules its dismissal.
func (c *Center) Emit(ctx context.Context, session, itemID, message string) Notification {
	now := time.Now()
	n := Notification{
		ID:      ksid.NewID(),
		ItemID:  itemID,
		Message: message,
		Created: now,
		Expires: now.Add(c.delay),
	}
	c.mu.Lock()
	c.active[session] = append(c.active[session], n)
	c.mu.Unlock()

	time.AfterFunc(c.delay, func() { c.dismiss(session, n.ID) })

	if c.pusher != nil {
		go c.pusher.Push(context.WithoutCancel(ctx), session, n)
	}
	slog.DebugContext(ctx, "Notification", "session", session, "item", itemID, "msg", message)
	return n
}

func (c *Center) dismiss(session string, id ksid.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := slices.DeleteFunc(c.active[session], func(n Notification) bool { return n.ID == id })
	if len(list) == 0 {
		delete(c.active, session)
		return
	}
	c.active[session] = list
}

// Active returns the notifications still visible to session, oldest first.
func (c *Center) Active(session string) []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.active[session])
}

// Delay returns the display duration.
func (c *Center) Delay() time.Duration {
	return c.delay
}

// For returns a cart.Notifier emitting localized messages to session.
func (c *Center) For(session string, locale i18n.Locale) cart.Notifier {
	return &sessionNotifier{c: c, session: session, locale: locale}
}

type sessionNotifier struct {
	c       *Center
	session string
	locale  i18n.Locale
}

func (s *sessionNotifier) Notify(ctx context.Context, n cart.Notification) {
	s.c.Emit(ctx, s.session, n.ItemID, s.locale.Added(n.Name))
}
