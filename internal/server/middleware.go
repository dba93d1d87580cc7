package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/maruel/plancart/internal/server/ipgeo"
	"github.com/maruel/plancart/internal/server/reqctx"
)

// statusWriter records the response status for the request log.
type statusWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// logRequests stores the client metadata in the request context and logs
// each request once it completes. geo may be nil.
func logRequests(next http.Handler, geo *ipgeo.Checker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ip := reqctx.GetClientIP(r)
		country := geo.CountryCode(ip)
		ctx := reqctx.WithClientIP(r.Context(), ip)
		ctx = reqctx.WithUserAgent(ctx, r.Header.Get("User-Agent"))
		ctx = reqctx.WithCountryCode(ctx, country)

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r.WithContext(ctx))

		level := slog.LevelInfo
		switch {
		case sw.status >= http.StatusInternalServerError:
			level = slog.LevelError
		case r.URL.Path == "/api/health" || isStatic(r.URL.Path):
			level = slog.LevelDebug
		}
		slog.Log(ctx, level, "http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"size", sw.size,
			"dur", time.Since(start).Round(time.Microsecond),
			"ip", ip,
			"country", country,
		)
	})
}

func isStatic(path string) bool {
	return strings.HasPrefix(path, "/static/") || path == "/sw.js"
}
