package handlers

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/maruel/plancart/frontend"
	"github.com/maruel/plancart/internal/i18n"
	"github.com/maruel/plancart/internal/server/dto"
	"github.com/maruel/plancart/internal/session"
	"github.com/maruel/plancart/internal/view"
)

// PageHandler renders the storefront with the session's cart already in
// place, so the page is usable before any script runs.
type PageHandler struct {
	svc      *Services
	sessions *session.Manager
	cfg      *Config
}

// NewPageHandler creates a PageHandler.
func NewPageHandler(svc *Services, sessions *session.Manager, cfg *Config) *PageHandler {
	return &PageHandler{svc: svc, sessions: sessions, cfg: cfg}
}

type pageView struct {
	Lang     string
	Texts    *i18n.Texts
	Plans    []dto.Plan
	Regions  view.Regions
	VAPIDKey string
	DelayMS  int64
	Version  string
}

// ServeHTTP implements http.Handler.
func (h *PageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _, err := h.sessions.Resolve(w, r)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to issue session", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	cs := h.svc.Carts.Get(ctx, id)
	_, regions, _ := cs.View()
	cs.Release()

	c := h.svc.Catalog.Current()
	v := pageView{
		Lang:    string(h.cfg.Locale),
		Texts:   h.cfg.Locale.Texts(),
		Plans:   make([]dto.Plan, len(c.Plans)),
		Regions: regions,
		DelayMS: h.svc.Notify.Delay().Milliseconds(),
		Version: h.cfg.Version,
	}
	for i := range c.Plans {
		v.Plans[i] = planToDTO(&c.Plans[i], h.cfg.Locale)
	}
	if h.svc.Pusher != nil {
		v.VAPIDKey = h.svc.Pusher.PublicKey()
	}

	var buf bytes.Buffer
	if err := frontend.Page.ExecuteTemplate(&buf, "index.html", &v); err != nil {
		slog.ErrorContext(ctx, "Failed to render page", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}
