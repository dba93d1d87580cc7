// Package server implements the HTTP server and routing logic.
package server

import (
	"io/fs"
	"net/http"

	"github.com/maruel/plancart/frontend"
	"github.com/maruel/plancart/internal/server/dto"
	"github.com/maruel/plancart/internal/server/handlers"
	"github.com/maruel/plancart/internal/server/ipgeo"
	"github.com/maruel/plancart/internal/server/ratelimit"
	"github.com/maruel/plancart/internal/session"
)

// Config holds everything NewRouter needs beyond the services.
type Config struct {
	handlers.Config

	Sessions *session.Manager
	// Limiters may be nil to disable rate limiting. The caller owns it and
	// closes it.
	Limiters *ratelimit.Config
	// IPGeo may be nil.
	IPGeo *ipgeo.Checker
}

// NewRouter creates and configures the HTTP router.
//
// The JSON API lives under /api/, the storefront at / and its assets under
// /static/.
func NewRouter(svc *handlers.Services, cfg *Config) http.Handler {
	hcfg := &cfg.Config
	lim := cfg.Limiters
	sm := cfg.Sessions
	mux := http.NewServeMux()

	hh := handlers.NewHealthHandler(cfg.Version)
	ch := handlers.NewCartHandler(svc.Carts, svc.Notify)
	nh := handlers.NewNotificationHandler(svc.Notify, svc.Pusher)
	ph := handlers.NewPlansHandler(svc.Catalog, cfg.Locale)
	sh := handlers.NewSchemaHandler()

	mux.Handle("GET /api/health", Wrap(hh.Health, hcfg, lim))

	// Cart
	mux.Handle("GET /api/v1/cart", WrapSession(ch.Get, sm, hcfg, lim))
	mux.Handle("DELETE /api/v1/cart", WrapSession(ch.Clear, sm, hcfg, lim))
	mux.Handle("POST /api/v1/cart/items", WrapSession(ch.AddItem, sm, hcfg, lim))
	mux.Handle("PUT /api/v1/cart/items/{id}", WrapSession(ch.UpdateItem, sm, hcfg, lim))
	mux.Handle("DELETE /api/v1/cart/items/{id}", WrapSession(ch.RemoveItem, sm, hcfg, lim))

	// Notifications
	mux.Handle("GET /api/v1/notifications", WrapSession(nh.List, sm, hcfg, lim))
	mux.Handle("GET /api/v1/push/key", Wrap(nh.VAPIDKey, hcfg, lim))
	mux.Handle("POST /api/v1/push/subscriptions", WrapSession(nh.Subscribe, sm, hcfg, lim))

	// Catalog
	mux.Handle("GET /api/v1/plans", Wrap(ph.List, hcfg, lim))
	mux.Handle("GET /api/v1/schema/cart", Wrap(sh.Cart, hcfg, lim))

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, dto.NotFound("endpoint "+r.Method+" "+r.URL.Path))
	})

	// Storefront
	static := frontend.Static()
	mux.Handle("GET /static/", http.StripPrefix("/static", cacheFor(http.FileServerFS(static), "public, max-age=3600")))
	mux.Handle("GET /sw.js", serviceWorker(static))
	mux.Handle("GET /{$}", handlers.NewPageHandler(svc, sm, hcfg))

	return logRequests(mux, cfg.IPGeo)
}

func cacheFor(h http.Handler, value string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", value)
		h.ServeHTTP(w, r)
	})
}

// serviceWorker serves sw.js from the root so its scope covers the page.
func serviceWorker(static fs.FS) http.Handler {
	return cacheFor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, static, "sw.js")
	}), "no-cache")
}
