package handlers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maruel/ksid"
	"github.com/maruel/plancart/internal/cart"
	"github.com/maruel/plancart/internal/i18n"
	"github.com/maruel/plancart/internal/notify"
	"github.com/maruel/plancart/internal/view"
)

// DefaultIdle is how long an unused cart stays in memory.
const DefaultIdle = 30 * time.Minute

// CartsOptions configures Carts.
type CartsOptions struct {
	Locale i18n.Locale
	// Center receives add notifications. May be nil.
	Center      *notify.Center
	MaxLines    int
	MaxQuantity int64
	// MaxSessions bounds carts held in memory; the least recently used is
	// evicted first. 0 means unlimited.
	MaxSessions int
	// Idle is how long an unused cart stays in memory. 0 means DefaultIdle.
	Idle time.Duration
}

// CartSession is the open cart of one browser session.
//
// A CartSession returned by Carts.Get must be released with Release once the
// request is done with it.
type CartSession struct {
	ID      ksid.ID
	Store   *cart.Store
	Surface *view.Surface

	carts    *Carts
	lastUsed time.Time
	// refs counts requests holding the session. Guarded by carts.mu.
	refs int
}

// View returns the cart state and the regions rendered from it, read
// together.
func (cs *CartSession) View() (cart.Snapshot, view.Regions, uint64) {
	var snap cart.Snapshot
	var regions view.Regions
	var version uint64
	cs.Store.Read(func(s cart.Snapshot) {
		snap = s
		regions, version = cs.Surface.Regions()
	})
	return snap, regions, version
}

// Release returns the session to the registry.
func (cs *CartSession) Release() {
	c := cs.carts
	c.mu.Lock()
	defer c.mu.Unlock()
	cs.refs--
	cs.lastUsed = c.now()
	c.evictLocked()
}

// Carts opens carts on demand, one per session, and keeps them in memory
// while they are in use.
//
// A session held by a request is never evicted, so there is at most one
// Store per storage key and concurrent saves of the same cart are
// serialized by that Store.
type Carts struct {
	blobs    cart.Blobs
	opts     CartsOptions
	renderer *view.Renderer
	now      func() time.Time

	mu   sync.Mutex
	open map[ksid.ID]*CartSession
}

// NewCarts returns a registry persisting carts to blobs.
func NewCarts(blobs cart.Blobs, opts CartsOptions) *Carts {
	if opts.Idle <= 0 {
		opts.Idle = DefaultIdle
	}
	if opts.Locale == "" {
		opts.Locale = i18n.DefaultLocale
	}
	return &Carts{
		blobs:    blobs,
		opts:     opts,
		renderer: view.NewRenderer(opts.Locale),
		now:      time.Now,
		open:     map[ksid.ID]*CartSession{},
	}
}

// Key returns the storage key of a session's cart.
func Key(id ksid.ID) string {
	return cart.StorageKey + ":" + id.String()
}

// Get returns the cart of session id, loading it from storage if needed.
//
// The caller must call Release on the result.
func (c *Carts) Get(ctx context.Context, id ksid.ID) *CartSession {
	c.mu.Lock()
	if cs, ok := c.open[id]; ok {
		cs.refs++
		cs.lastUsed = c.now()
		c.mu.Unlock()
		return cs
	}
	c.mu.Unlock()

	// Load without holding the registry lock; a concurrent load of the same
	// session loses the race below and is discarded before it is used.
	loaded := c.load(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if cs, ok := c.open[id]; ok {
		cs.refs++
		cs.lastUsed = c.now()
		return cs
	}
	loaded.refs = 1
	loaded.lastUsed = c.now()
	c.open[id] = loaded
	c.evictLocked()
	return loaded
}

func (c *Carts) load(ctx context.Context, id ksid.ID) *CartSession {
	surface := view.NewSurface(c.renderer, cart.Snapshot{})
	opts := cart.Options{
		Key:         Key(id),
		Renderer:    surface,
		MaxLines:    c.opts.MaxLines,
		MaxQuantity: c.opts.MaxQuantity,
	}
	if c.opts.Center != nil {
		opts.Notifier = c.opts.Center.For(id.String(), c.opts.Locale)
	}
	store := cart.Open(ctx, c.blobs, opts)
	surface.Render(ctx, store.Snapshot())
	return &CartSession{ID: id, Store: store, Surface: surface, carts: c}
}

// evictLocked drops least recently used carts above MaxSessions. Carts held
// by a request are skipped; the cap is restored as they are released.
func (c *Carts) evictLocked() {
	if c.opts.MaxSessions <= 0 {
		return
	}
	for len(c.open) > c.opts.MaxSessions {
		var oldest *CartSession
		for _, cs := range c.open {
			if cs.refs > 0 {
				continue
			}
			if oldest == nil || cs.lastUsed.Before(oldest.lastUsed) {
				oldest = cs
			}
		}
		if oldest == nil {
			return
		}
		delete(c.open, oldest.ID)
	}
}

// Sweep drops carts unused for longer than the idle timeout and returns how
// many were dropped.
func (c *Carts) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, cs := range c.open {
		if cs.refs == 0 && now.Sub(cs.lastUsed) > c.opts.Idle {
			delete(c.open, id)
			n++
		}
	}
	return n
}

// Run sweeps idle carts until ctx is canceled.
func (c *Carts) Run(ctx context.Context) {
	ticker := time.NewTicker(c.opts.Idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				slog.DebugContext(ctx, "Evicted idle carts", "n", n, "open", c.Len())
			}
		}
	}
}

// Len returns the number of carts in memory.
func (c *Carts) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.open)
}

// Locale returns the locale carts are rendered in.
func (c *Carts) Locale() i18n.Locale {
	return c.opts.Locale
}
