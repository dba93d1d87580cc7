// Package catalog loads the subscription plans offered on the page.
//
// Plans carry the metadata the page's "add to cart" triggers send to the cart:
// id, display name and unit price.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/maruel/plancart/internal/cart"
)

//go:embed default.yaml
var defaultCatalog []byte

// Plan is one purchasable plan.
type Plan struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Price       int64    `yaml:"price" json:"price"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Features    []string `yaml:"features,omitempty" json:"features,omitempty"`
	Highlight   bool     `yaml:"highlight,omitempty" json:"highlight,omitempty"`
}

// Catalog is a parsed plan file.
type Catalog struct {
	Version  int    `yaml:"version" json:"version"`
	Currency string `yaml:"currency,omitempty" json:"currency,omitempty"`
	Plans    []Plan `yaml:"plans" json:"plans"`
}

// Parse parses and validates a catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return &c, nil
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

// Validate checks that every plan can be added to a cart.
func (c *Catalog) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported catalog version: %d", c.Version)
	}
	if len(c.Plans) == 0 {
		return errNoPlans
	}
	seen := map[string]struct{}{}
	for i := range c.Plans {
		p := &c.Plans[i]
		if p.ID == "" {
			return fmt.Errorf("plan %d: id is required", i)
		}
		if p.Name == "" {
			return fmt.Errorf("plan %q: name is required", p.ID)
		}
		if p.Price < 0 || p.Price > cart.MaxPrice {
			return fmt.Errorf("plan %q: %w", p.ID, cart.ErrInvalidPrice)
		}
		if _, ok := seen[p.ID]; ok {
			return fmt.Errorf("plan %q: duplicate id", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

// Find returns the plan with id.
func (c *Catalog) Find(id string) (Plan, bool) {
	i := slices.IndexFunc(c.Plans, func(p Plan) bool { return p.ID == id })
	if i < 0 {
		return Plan{}, false
	}
	return c.Plans[i], true
}

// Source serves the current catalog, optionally reloading it from a file.
type Source struct {
	path string

	mu  sync.RWMutex
	cur *Catalog
}

// Open returns a Source for path, or the embedded catalog when path is empty.
func Open(path string) (*Source, error) {
	s := &Source{path: path}
	if path == "" {
		s.cur = Default()
		return s, nil
	}
	c, err := load(path)
	if err != nil {
		return nil, err
	}
	s.cur = c
	return s, nil
}

func load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-provided catalog path
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Current returns the catalog in effect.
func (s *Source) Current() *Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Reload rereads the file. On error the previous catalog stays in effect.
func (s *Source) Reload() error {
	if s.path == "" {
		return nil
	}
	c, err := load(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cur = c
	s.mu.Unlock()
	return nil
}

// Watch reloads the catalog whenever its file changes until ctx is done.
//
// The parent directory is watched so editors that replace the file by rename
// are handled.
func (s *Source) Watch(ctx context.Context) error {
	if s.path == "" {
		return errNoFile
	}
	abs, err := filepath.Abs(s.path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					continue
				}
				if err := s.Reload(); err != nil {
					slog.WarnContext(ctx, "Keeping previous catalog", "path", s.path, "err", err)
					continue
				}
				slog.InfoContext(ctx, "Catalog reloaded", "path", s.path, "plans", len(s.Current().Plans))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching catalog", "err", err)
			}
		}
	}()
	return nil
}

var (
	errNoPlans = errors.New("catalog has no plans")
	errNoFile  = errors.New("catalog has no file to watch")
)
