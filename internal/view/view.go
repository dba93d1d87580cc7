// Package view renders cart snapshots into the three regions of the cart
// widget: the item-count badge, the item list and the grand total.
package view

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"sync"

	"github.com/maruel/plancart/internal/cart"
	"github.com/maruel/plancart/internal/i18n"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Regions is the rendered content of the cart widget.
type Regions struct {
	// Badge is the formatted item count.
	Badge string `json:"badge"`
	// BadgeVisible is false when the cart is empty.
	BadgeVisible bool          `json:"badge_visible"`
	Items        template.HTML `json:"items_html"`
	Total        string        `json:"total"`
}

// Renderer formats snapshots for one locale.
type Renderer struct {
	locale i18n.Locale
}

// NewRenderer returns a Renderer for locale.
func NewRenderer(locale i18n.Locale) *Renderer {
	return &Renderer{locale: locale}
}

// Locale returns the renderer's locale.
func (r *Renderer) Locale() i18n.Locale {
	return r.locale
}

type itemView struct {
	ID        string
	Name      string
	Price     string
	Quantity  int64
	Decrement int64
	Increment int64
}

type itemsView struct {
	Items []itemView
	Texts *i18n.Texts
}

// Render produces the regions for snap.
func (r *Renderer) Render(snap cart.Snapshot) (Regions, error) {
	v := itemsView{Texts: r.locale.Texts()}
	for _, l := range snap.Items {
		v.Items = append(v.Items, itemView{
			ID:        l.ID,
			Name:      l.Name,
			Price:     r.locale.Money(l.Price),
			Quantity:  l.Quantity,
			Decrement: l.Quantity - 1,
			Increment: l.Quantity + 1,
		})
	}
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "items", v); err != nil {
		return Regions{}, fmt.Errorf("failed to render cart items: %w", err)
	}
	return Regions{
		Badge:        r.locale.Number(snap.ItemCount),
		BadgeVisible: snap.ItemCount > 0,
		Items:        template.HTML(buf.String()), //nolint:gosec // G203: buf was produced by html/template
		Total:        r.locale.Money(snap.Total),
	}, nil
}

// Surface keeps the latest rendered regions of one cart.
//
// It implements cart.Renderer.
type Surface struct {
	r *Renderer

	mu      sync.Mutex
	regions Regions
	version uint64
}

// NewSurface returns a Surface showing snap.
func NewSurface(r *Renderer, snap cart.Snapshot) *Surface {
	s := &Surface{r: r}
	s.set(context.Background(), snap)
	return s
}

// Render implements cart.Renderer.
func (s *Surface) Render(ctx context.Context, snap cart.Snapshot) {
	s.set(ctx, snap)
}

func (s *Surface) set(ctx context.Context, snap cart.Snapshot) {
	regions, err := s.r.Render(snap)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to render cart", "err", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regions = regions
	s.version++
}

// Regions returns the latest regions and how many times they were published.
func (s *Surface) Regions() (Regions, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regions, s.version
}

var _ cart.Renderer = (*Surface)(nil)
