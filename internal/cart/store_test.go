package cart

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/maruel/plancart/internal/storage"
)

// recorder captures renderer and notifier calls.
type recorder struct {
	mu       sync.Mutex
	renders  []Snapshot
	notified []Notification
}

func (r *recorder) Render(_ context.Context, snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renders = append(r.renders, snap)
}

func (r *recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notified = append(r.notified, n)
}

// flakyBlobs wraps Memory and fails saves on demand.
type flakyBlobs struct {
	*storage.Memory
	failSave bool
	saves    int
}

var errDiskFull = errors.New("disk full")

func (f *flakyBlobs) Save(ctx context.Context, key string, data []byte) error {
	f.saves++
	if f.failSave {
		return errDiskFull
	}
	return f.Memory.Save(ctx, key, data)
}

func newTestStore(t *testing.T) (*Store, *flakyBlobs, *recorder) {
	t.Helper()
	blobs := &flakyBlobs{Memory: storage.NewMemory()}
	rec := &recorder{}
	s := Open(t.Context(), blobs, Options{Renderer: rec, Notifier: rec})
	return s, blobs, rec
}

func persisted(t *testing.T, b Blobs, key string) []LineItem {
	t.Helper()
	data, err := b.Load(t.Context(), key)
	if err != nil {
		t.Fatalf("Load(%q) failed: %v", key, err)
	}
	items, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode(%s) failed: %v", data, err)
	}
	return items
}

func TestStore(t *testing.T) {
	t.Run("Open", func(t *testing.T) {
		t.Run("absent", func(t *testing.T) {
			s, _, rec := newTestStore(t)
			if got := s.Items(); len(got) != 0 {
				t.Errorf("Items() = %v, want empty", got)
			}
			if len(rec.renders) != 0 {
				t.Errorf("Open rendered %d times", len(rec.renders))
			}
			if s.Key() != StorageKey {
				t.Errorf("Key() = %q, want %q", s.Key(), StorageKey)
			}
		})
		t.Run("malformed", func(t *testing.T) {
			tests := []struct {
				name string
				data string
			}{
				{"not json", "{{{"},
				{"object", `{"id":"p1"}`},
				{"zero quantity", `[{"id":"p1","name":"A","price":1,"quantity":0}]`},
				{"negative price", `[{"id":"p1","name":"A","price":-1,"quantity":1}]`},
				{"empty id", `[{"id":"","name":"A","price":1,"quantity":1}]`},
				{"duplicate id", `[{"id":"p1","name":"A","price":1,"quantity":1},{"id":"p1","name":"B","price":2,"quantity":1}]`},
				{"string price", `[{"id":"p1","name":"A","price":"abc","quantity":1}]`},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					blobs := storage.NewMemory()
					if err := blobs.Save(t.Context(), StorageKey, []byte(tt.data)); err != nil {
						t.Fatal(err)
					}
					s := Open(t.Context(), blobs, Options{})
					if got := s.Items(); len(got) != 0 {
						t.Errorf("Items() = %v, want empty", got)
					}
				})
			}
		})
		t.Run("existing", func(t *testing.T) {
			blobs := storage.NewMemory()
			data := `[{"id":"p2","name":"B","price":7000,"quantity":2},{"id":"p1","name":"A","price":5000,"quantity":1}]`
			if err := blobs.Save(t.Context(), "webflow_cart:abc", []byte(data)); err != nil {
				t.Fatal(err)
			}
			s := Open(t.Context(), blobs, Options{Key: "webflow_cart:abc"})
			want := []LineItem{
				{ID: "p2", Name: "B", Price: 7000, Quantity: 2},
				{ID: "p1", Name: "A", Price: 5000, Quantity: 1},
			}
			if got := s.Items(); !slices.Equal(got, want) {
				t.Errorf("Items() = %v, want %v", got, want)
			}
			if got := s.Total(); got != 19000 {
				t.Errorf("Total() = %d, want 19000", got)
			}
			if got := s.ItemCount(); got != 3 {
				t.Errorf("ItemCount() = %d, want 3", got)
			}
		})
	})

	t.Run("Add", func(t *testing.T) {
		t.Run("same id counts calls", func(t *testing.T) {
			for _, n := range []int{1, 2, 7} {
				s, _, _ := newTestStore(t)
				for range n {
					if _, err := s.Add(t.Context(), "p1", "Plan A", 100); err != nil {
						t.Fatal(err)
					}
				}
				items := s.Items()
				if len(items) != 1 {
					t.Fatalf("len(Items()) = %d, want 1", len(items))
				}
				if items[0].Quantity != int64(n) {
					t.Errorf("Quantity = %d, want %d", items[0].Quantity, n)
				}
			}
		})
		t.Run("existing values win", func(t *testing.T) {
			s, _, rec := newTestStore(t)
			if _, err := s.Add(t.Context(), "p1", "Plan A", 100); err != nil {
				t.Fatal(err)
			}
			c, err := s.Add(t.Context(), "p1", "Renamed", 999)
			if err != nil {
				t.Fatal(err)
			}
			want := LineItem{ID: "p1", Name: "Plan A", Price: 100, Quantity: 2}
			if c.Kind != ChangeIncremented || c.Item != want {
				t.Errorf("Add() = %+v, want incremented %+v", c, want)
			}
			if got := rec.notified[1].Name; got != "Renamed" {
				t.Errorf("notification name = %q, want the passed name", got)
			}
		})
		t.Run("insertion order", func(t *testing.T) {
			s, _, _ := newTestStore(t)
			for _, id := range []string{"c", "a", "b", "a"} {
				if _, err := s.Add(t.Context(), id, id, 1); err != nil {
					t.Fatal(err)
				}
			}
			var ids []string
			for _, l := range s.Items() {
				ids = append(ids, l.ID)
			}
			if want := []string{"c", "a", "b"}; !slices.Equal(ids, want) {
				t.Errorf("ids = %v, want %v", ids, want)
			}
		})
		t.Run("invalid", func(t *testing.T) {
			tests := []struct {
				name  string
				id    string
				price int64
				want  error
			}{
				{"empty id", "", 1, ErrInvalidID},
				{"blank id", "   ", 1, ErrInvalidID},
				{"negative price", "p1", -5, ErrInvalidPrice},
				{"huge price", "p1", MaxPrice + 1, ErrInvalidPrice},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					s, blobs, rec := newTestStore(t)
					_, err := s.Add(t.Context(), tt.id, "x", tt.price)
					if !errors.Is(err, tt.want) {
						t.Fatalf("Add() error = %v, want %v", err, tt.want)
					}
					if blobs.saves != 0 || len(rec.renders) != 0 || len(rec.notified) != 0 {
						t.Errorf("rejected Add had side effects: saves=%d renders=%d notified=%d", blobs.saves, len(rec.renders), len(rec.notified))
					}
				})
			}
		})
		t.Run("side effects", func(t *testing.T) {
			s, blobs, rec := newTestStore(t)
			if _, err := s.Add(t.Context(), "p1", "Plan A", 10000); err != nil {
				t.Fatal(err)
			}
			if blobs.saves != 1 {
				t.Errorf("saves = %d, want 1", blobs.saves)
			}
			if len(rec.renders) != 1 || rec.renders[0].Total != 10000 || rec.renders[0].ItemCount != 1 {
				t.Errorf("renders = %+v", rec.renders)
			}
			want := []Notification{{ItemID: "p1", Name: "Plan A"}}
			if !slices.Equal(rec.notified, want) {
				t.Errorf("notified = %v, want %v", rec.notified, want)
			}
		})
	})

	t.Run("SetQuantity", func(t *testing.T) {
		tests := []struct {
			name     string
			qty      int64
			wantKind ChangeKind
			want     []LineItem
		}{
			{"positive", 5, ChangeUpdated, []LineItem{{ID: "p1", Name: "A", Price: 10, Quantity: 5}, {ID: "p2", Name: "B", Price: 20, Quantity: 1}}},
			{"one", 1, ChangeUpdated, []LineItem{{ID: "p1", Name: "A", Price: 10, Quantity: 1}, {ID: "p2", Name: "B", Price: 20, Quantity: 1}}},
			{"zero", 0, ChangeRemoved, []LineItem{{ID: "p2", Name: "B", Price: 20, Quantity: 1}}},
			{"negative", -3, ChangeRemoved, []LineItem{{ID: "p2", Name: "B", Price: 20, Quantity: 1}}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				s, blobs, _ := newTestStore(t)
				mustAdd(t, s, "p1", "A", 10)
				mustAdd(t, s, "p1", "A", 10)
				mustAdd(t, s, "p2", "B", 20)
				c, err := s.SetQuantity(t.Context(), "p1", tt.qty)
				if err != nil {
					t.Fatal(err)
				}
				if c.Kind != tt.wantKind {
					t.Errorf("Kind = %q, want %q", c.Kind, tt.wantKind)
				}
				if got := s.Items(); !slices.Equal(got, tt.want) {
					t.Errorf("Items() = %v, want %v", got, tt.want)
				}
				if got := persisted(t, blobs, StorageKey); !slices.Equal(got, tt.want) {
					t.Errorf("persisted = %v, want %v", got, tt.want)
				}
			})
		}
		t.Run("absent id", func(t *testing.T) {
			s, blobs, rec := newTestStore(t)
			mustAdd(t, s, "p1", "A", 10)
			saves, renders := blobs.saves, len(rec.renders)
			c, err := s.SetQuantity(t.Context(), "nope", 4)
			if err != nil {
				t.Fatal(err)
			}
			if c.Kind != ChangeUnchanged {
				t.Errorf("Kind = %q, want unchanged", c.Kind)
			}
			if blobs.saves != saves || len(rec.renders) != renders {
				t.Error("absent id persisted or rendered")
			}
		})
		t.Run("quota", func(t *testing.T) {
			s, _, _ := newTestStore(t)
			mustAdd(t, s, "p1", "A", 10)
			if _, err := s.SetQuantity(t.Context(), "p1", DefaultMaxQuantity+1); !errors.Is(err, ErrQuotaExceeded) {
				t.Fatalf("SetQuantity() error = %v, want ErrQuotaExceeded", err)
			}
			if got := s.ItemCount(); got != 1 {
				t.Errorf("ItemCount() = %d, want 1", got)
			}
		})
	})

	t.Run("Remove", func(t *testing.T) {
		s, blobs, rec := newTestStore(t)
		mustAdd(t, s, "p1", "A", 10)
		mustAdd(t, s, "p2", "B", 20)
		c, err := s.Remove(t.Context(), "p1")
		if err != nil {
			t.Fatal(err)
		}
		if c.Kind != ChangeRemoved || c.Item.ID != "p1" {
			t.Errorf("Remove() = %+v", c)
		}
		before := s.Items()
		c, err = s.Remove(t.Context(), "p1")
		if err != nil {
			t.Fatalf("second Remove() failed: %v", err)
		}
		if c.Kind != ChangeUnchanged {
			t.Errorf("second Remove() kind = %q, want unchanged", c.Kind)
		}
		if got := s.Items(); !slices.Equal(got, before) {
			t.Errorf("Items() = %v, want %v", got, before)
		}
		// Removing an absent id still saves and renders.
		if blobs.saves != 4 || len(rec.renders) != 4 {
			t.Errorf("saves=%d renders=%d, want 4 each", blobs.saves, len(rec.renders))
		}
	})

	t.Run("Clear", func(t *testing.T) {
		s, blobs, _ := newTestStore(t)
		mustAdd(t, s, "p1", "A", 5000)
		mustAdd(t, s, "p2", "B", 7000)
		if _, err := s.Clear(t.Context()); err != nil {
			t.Fatal(err)
		}
		if got := s.Items(); len(got) != 0 {
			t.Errorf("Items() = %v, want empty", got)
		}
		data, err := blobs.Load(t.Context(), StorageKey)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "[]" {
			t.Errorf("persisted = %s, want []", data)
		}
	})

	t.Run("totals", func(t *testing.T) {
		s, _, _ := newTestStore(t)
		if s.Total() != 0 || s.ItemCount() != 0 {
			t.Fatal("empty cart must have zero totals")
		}
		ops := []struct {
			id    string
			price int64
		}{{"a", 1500}, {"b", 20000}, {"a", 1500}, {"c", 0}, {"b", 20000}, {"a", 1500}}
		for _, op := range ops {
			mustAdd(t, s, op.id, op.id, op.price)
		}
		var wantTotal, wantCount int64
		for _, l := range s.Items() {
			wantTotal += l.Price * l.Quantity
			wantCount += l.Quantity
		}
		if got := s.Total(); got != wantTotal || got != 44500 {
			t.Errorf("Total() = %d, want %d", got, wantTotal)
		}
		if got := s.ItemCount(); got != wantCount || got != 6 {
			t.Errorf("ItemCount() = %d, want %d", got, wantCount)
		}
		snap := s.Snapshot()
		if snap.Total != wantTotal || snap.ItemCount != wantCount {
			t.Errorf("Snapshot() = %+v", snap)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		s, blobs, _ := newTestStore(t)
		mustAdd(t, s, "z", "Último", 12345)
		mustAdd(t, s, "a", "Plan \"A\"", 0)
		mustAdd(t, s, "z", "", 1)
		if _, err := s.SetQuantity(t.Context(), "a", 42); err != nil {
			t.Fatal(err)
		}
		reloaded := Open(t.Context(), blobs, Options{})
		if got, want := reloaded.Items(), s.Items(); !slices.Equal(got, want) {
			t.Errorf("reloaded = %v, want %v", got, want)
		}
	})

	t.Run("save failure", func(t *testing.T) {
		s, blobs, rec := newTestStore(t)
		mustAdd(t, s, "p1", "A", 10)
		before := s.Items()
		renders, notified := len(rec.renders), len(rec.notified)
		blobs.failSave = true

		checks := []struct {
			name string
			op   func() (Change, error)
		}{
			{"Add", func() (Change, error) { return s.Add(t.Context(), "p2", "B", 1) }},
			{"Add existing", func() (Change, error) { return s.Add(t.Context(), "p1", "A", 10) }},
			{"SetQuantity", func() (Change, error) { return s.SetQuantity(t.Context(), "p1", 9) }},
			{"SetQuantity zero", func() (Change, error) { return s.SetQuantity(t.Context(), "p1", 0) }},
			{"Remove", func() (Change, error) { return s.Remove(t.Context(), "p1") }},
			{"Clear", func() (Change, error) { return s.Clear(t.Context()) }},
		}
		for _, c := range checks {
			t.Run(c.name, func(t *testing.T) {
				if _, err := c.op(); !errors.Is(err, errDiskFull) {
					t.Fatalf("error = %v, want errDiskFull", err)
				}
				if got := s.Items(); !slices.Equal(got, before) {
					t.Errorf("Items() = %v, want unchanged %v", got, before)
				}
			})
		}
		if len(rec.renders) != renders || len(rec.notified) != notified {
			t.Error("failed mutations rendered or notified")
		}
	})

	t.Run("line quota", func(t *testing.T) {
		blobs := storage.NewMemory()
		s := Open(t.Context(), blobs, Options{MaxLines: 2, MaxQuantity: 2})
		mustAdd(t, s, "a", "A", 1)
		mustAdd(t, s, "b", "B", 1)
		if _, err := s.Add(t.Context(), "c", "C", 1); !errors.Is(err, ErrQuotaExceeded) {
			t.Errorf("third line error = %v, want ErrQuotaExceeded", err)
		}
		mustAdd(t, s, "a", "A", 1)
		if _, err := s.Add(t.Context(), "a", "A", 1); !errors.Is(err, ErrQuotaExceeded) {
			t.Errorf("third unit error = %v, want ErrQuotaExceeded", err)
		}
		unlimited := Open(t.Context(), storage.NewMemory(), Options{MaxLines: -1, MaxQuantity: -1})
		if _, err := unlimited.SetQuantity(t.Context(), "x", 1); err != nil {
			t.Fatal(err)
		}
		mustAdd(t, unlimited, "x", "X", 1)
		if _, err := unlimited.SetQuantity(t.Context(), "x", 100_000); err != nil {
			t.Errorf("unlimited SetQuantity() failed: %v", err)
		}
	})

	t.Run("total stays in range", func(t *testing.T) {
		s := Open(t.Context(), storage.NewMemory(), Options{MaxLines: -1, MaxQuantity: -1})
		if _, err := s.SetQuantity(t.Context(), "x", MaxQuantity+1); err != nil {
			t.Fatal(err)
		}
		mustAdd(t, s, "x", "X", MaxPrice)
		if _, err := s.SetQuantity(t.Context(), "x", MaxQuantity+1); !errors.Is(err, ErrQuotaExceeded) {
			t.Errorf("SetQuantity(MaxQuantity+1) error = %v, want ErrQuotaExceeded", err)
		}
		for i := range 10 {
			id := "x"
			if i > 0 {
				id = strconv.Itoa(i)
				mustAdd(t, s, id, id, MaxPrice)
			}
			_, err := s.SetQuantity(t.Context(), id, MaxQuantity)
			if i < 9 && err != nil {
				t.Fatalf("line %d: %v", i, err)
			}
			if i == 9 && !errors.Is(err, ErrQuotaExceeded) {
				t.Fatalf("overflowing total error = %v, want ErrQuotaExceeded", err)
			}
		}
		if got := s.Total(); got != 9*MaxPrice*MaxQuantity+MaxPrice {
			t.Errorf("Total() = %d", got)
		}
	})

	t.Run("concurrent", func(t *testing.T) {
		s, _, rec := newTestStore(t)
		var wg sync.WaitGroup
		for range 20 {
			wg.Go(func() {
				for range 10 {
					if _, err := s.Add(context.Background(), "p1", "A", 3); err != nil {
						t.Error(err)
						return
					}
				}
			})
		}
		wg.Wait()
		if got := s.ItemCount(); got != 200 {
			t.Errorf("ItemCount() = %d, want 200", got)
		}
		for i, r := range rec.renders {
			if r.ItemCount != int64(i+1) {
				t.Fatalf("render %d has count %d; renders out of order", i, r.ItemCount)
			}
		}
	})
}

func mustAdd(t *testing.T, s *Store, id, name string, price int64) {
	t.Helper()
	if _, err := s.Add(t.Context(), id, name, price); err != nil {
		t.Fatalf("Add(%q) failed: %v", id, err)
	}
}
