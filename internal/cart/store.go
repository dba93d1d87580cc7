package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/maruel/plancart/internal/storage"
)

// StorageKey is the fixed namespace key the cart is persisted under.
const StorageKey = "webflow_cart"

// Default limits applied by Open when Options leaves them at zero.
const (
	DefaultMaxLines    = 50
	DefaultMaxQuantity = 999
)

// Blobs is the persistence the store needs; storage.Blobs satisfies it.
type Blobs interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// Renderer receives the cart state after every successful mutation.
type Renderer interface {
	Render(ctx context.Context, snap Snapshot)
}

// Notifier receives a notification for every added item.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Notification names an item that was just added.
type Notification struct {
	ItemID string
	// Name is the name passed to Add, which may differ from the stored name
	// when the line already existed.
	Name string
}

// Snapshot is an immutable view of the cart.
type Snapshot struct {
	Items     []LineItem
	ItemCount int64
	Total     int64
}

// ChangeKind describes what a mutation did.
type ChangeKind string

// Change kinds.
const (
	ChangeAdded       ChangeKind = "added"
	ChangeIncremented ChangeKind = "incremented"
	ChangeUpdated     ChangeKind = "updated"
	ChangeRemoved     ChangeKind = "removed"
	ChangeCleared     ChangeKind = "cleared"
	ChangeUnchanged   ChangeKind = "unchanged"
)

// Change is the result of a mutating operation.
type Change struct {
	Kind ChangeKind
	// Item is the affected line after the change, or before it for removals.
	// Zero for ChangeCleared and ChangeUnchanged.
	Item LineItem
}

// Options configures a Store.
type Options struct {
	// Key overrides StorageKey, typically to scope the cart to a session.
	Key string
	// Renderer and Notifier may be nil.
	Renderer Renderer
	Notifier Notifier
	// MaxLines limits distinct lines; negative means unlimited.
	MaxLines int
	// MaxQuantity limits each line's quantity; negative or above the package
	// MaxQuantity means MaxQuantity.
	MaxQuantity int64
}

// Store is the sole owner and mutator of one cart.
//
// Operations are serialized; the renderer and notifier are called with the
// store locked so they observe mutations in order. They must not call back
// into the store.
type Store struct {
	blobs    Blobs
	key      string
	renderer Renderer
	notifier Notifier
	maxLines int
	maxQty   int64

	mu    sync.Mutex
	items []LineItem
}

// Open loads the cart stored under the configured key.
//
// A missing value yields an empty cart. A value that cannot be read or does not
// satisfy the cart invariants is logged and also yields an empty cart; it is
// overwritten by the next mutation.
func Open(ctx context.Context, blobs Blobs, opts Options) *Store {
	s := &Store{
		blobs:    blobs,
		key:      opts.Key,
		renderer: opts.Renderer,
		notifier: opts.Notifier,
		maxLines: opts.MaxLines,
		maxQty:   opts.MaxQuantity,
	}
	if s.key == "" {
		s.key = StorageKey
	}
	if s.maxLines == 0 {
		s.maxLines = DefaultMaxLines
	}
	if s.maxQty == 0 {
		s.maxQty = DefaultMaxQuantity
	}
	if s.maxQty < 0 || s.maxQty > MaxQuantity {
		s.maxQty = MaxQuantity
	}
	s.items = s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) []LineItem {
	data, err := s.blobs.Load(ctx, s.key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.ErrorContext(ctx, "Failed to read cart, starting empty", "key", s.key, "err", err)
		}
		return []LineItem{}
	}
	items, err := Decode(data)
	if err != nil {
		slog.WarnContext(ctx, "Discarding malformed cart", "key", s.key, "err", err)
		return []LineItem{}
	}
	return items
}

// Key returns the storage key of this cart.
func (s *Store) Key() string {
	return s.key
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// Total returns the sum of price × quantity over all lines.
func (s *Store) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return total(s.items)
}

// ItemCount returns the sum of quantities over all lines.
func (s *Store) ItemCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return itemCount(s.items)
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.items)
}

// Read calls fn with the current state while holding the store lock, so
// anything the renderer published for that state can be read consistently.
// fn must not call back into the store.
func (s *Store) Read(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(snapshot(s.items))
}

// Add adds one unit of id.
//
// When the line exists its quantity is incremented and the stored name and
// price are kept. Otherwise a new line with quantity 1 is appended.
func (s *Store) Add(ctx context.Context, id, name string, price int64) (Change, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Change{}, ErrInvalidID
	}
	if price < 0 || price > MaxPrice {
		return Change{}, fmt.Errorf("%w: %d", ErrInvalidPrice, price)
	}
	name = strings.TrimSpace(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	next := slices.Clone(s.items)
	var change Change
	if i := indexOf(next, id); i >= 0 {
		if s.maxQty > 0 && next[i].Quantity >= s.maxQty {
			return Change{}, fmt.Errorf("%w: at most %d of %q", ErrQuotaExceeded, s.maxQty, id)
		}
		next[i].Quantity++
		change = Change{Kind: ChangeIncremented, Item: next[i]}
	} else {
		if s.maxLines > 0 && len(next) >= s.maxLines {
			return Change{}, fmt.Errorf("%w: at most %d lines", ErrQuotaExceeded, s.maxLines)
		}
		item := LineItem{ID: id, Name: name, Price: price, Quantity: 1}
		next = append(next, item)
		change = Change{Kind: ChangeAdded, Item: item}
	}
	if err := s.commit(ctx, next); err != nil {
		return Change{}, err
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, Notification{ItemID: id, Name: name})
	}
	return change, nil
}

// Remove deletes the line for id. Removing an absent id is not an error.
func (s *Store) Remove(ctx context.Context, id string) (Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(ctx, strings.TrimSpace(id))
}

func (s *Store) remove(ctx context.Context, id string) (Change, error) {
	change := Change{Kind: ChangeUnchanged}
	next := slices.Clone(s.items)
	if i := indexOf(next, id); i >= 0 {
		change = Change{Kind: ChangeRemoved, Item: next[i]}
		next = slices.Delete(next, i, i+1)
	}
	if err := s.commit(ctx, next); err != nil {
		return Change{}, err
	}
	return change, nil
}

// SetQuantity sets the quantity of id.
//
// A quantity of zero or less removes the line. An absent id is left alone
// and nothing is persisted.
func (s *Store) SetQuantity(ctx context.Context, id string, quantity int64) (Change, error) {
	id = strings.TrimSpace(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.items, id)
	if i < 0 {
		return Change{Kind: ChangeUnchanged}, nil
	}
	if quantity <= 0 {
		return s.remove(ctx, id)
	}
	if s.maxQty > 0 && quantity > s.maxQty {
		return Change{}, fmt.Errorf("%w: at most %d of %q", ErrQuotaExceeded, s.maxQty, id)
	}
	next := slices.Clone(s.items)
	next[i].Quantity = quantity
	if err := s.commit(ctx, next); err != nil {
		return Change{}, err
	}
	return Change{Kind: ChangeUpdated, Item: next[i]}, nil
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) (Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.commit(ctx, []LineItem{}); err != nil {
		return Change{}, err
	}
	return Change{Kind: ChangeCleared}, nil
}

// commit persists next and, on success, makes it the current state and
// renders it.
//
// Must be called with mu held.
func (s *Store) commit(ctx context.Context, next []LineItem) error {
	if _, ok := checkedTotal(next); !ok {
		return fmt.Errorf("%w: total out of range", ErrQuotaExceeded)
	}
	data, err := Encode(next)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := s.blobs.Save(ctx, s.key, data); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	s.items = next
	slog.DebugContext(ctx, "Cart saved", "key", s.key, "lines", len(next), "bytes", len(data))
	if s.renderer != nil {
		s.renderer.Render(ctx, snapshot(next))
	}
	return nil
}

func snapshot(items []LineItem) Snapshot {
	return Snapshot{
		Items:     slices.Clone(items),
		ItemCount: itemCount(items),
		Total:     total(items),
	}
}

func indexOf(items []LineItem, id string) int {
	return slices.IndexFunc(items, func(l LineItem) bool { return l.ID == id })
}

func total(items []LineItem) int64 {
	var t int64
	for _, l := range items {
		t += l.Subtotal()
	}
	return t
}

func itemCount(items []LineItem) int64 {
	var n int64
	for _, l := range items {
		n += l.Quantity
	}
	return n
}
