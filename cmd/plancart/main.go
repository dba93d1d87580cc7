// Package main is the entry point for the plancart server.
//
// plancart serves a pricing page with a session cart: visitors add plans,
// adjust quantities and see a short confirmation for each addition. The cart
// persists per anonymous session in JSONL, memory or PostgreSQL.
// Configuration is read from CLI flags, a .env file in the data directory and
// server_config.json (session secret, locale, quotas, VAPID keys).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lmittmann/tint"
	"github.com/maruel/plancart/internal/cart"
	"github.com/maruel/plancart/internal/catalog"
	"github.com/maruel/plancart/internal/config"
	"github.com/maruel/plancart/internal/i18n"
	"github.com/maruel/plancart/internal/notify"
	"github.com/maruel/plancart/internal/server"
	"github.com/maruel/plancart/internal/server/handlers"
	"github.com/maruel/plancart/internal/server/ipgeo"
	"github.com/maruel/plancart/internal/server/ratelimit"
	"github.com/maruel/plancart/internal/session"
	"github.com/maruel/plancart/internal/storage"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "plancart: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	httpAddr := flag.String("http", "localhost:8080", "Address to listen on (e.g., localhost:8080, :8080, 0.0.0.0:8080)")
	dataDir := flag.String("data-dir", "./data", "Data directory")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	geoDB := flag.String("geo-db", "", "Path to MaxMind MMDB file for IP geolocation (optional)")
	catalogPath := flag.String("catalog", "", "Path to a plans YAML file; empty uses the built-in catalog")
	backend := flag.String("storage", "", "Cart storage backend (jsonl, memory, postgres); overrides server_config.json")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string for the postgres backend")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	ll.Set(slog.LevelInfo)
	slog.SetDefault(newLogger(ll))

	if err := os.MkdirAll(*dataDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	env, err := loadDotEnv(*dataDir)
	if err != nil {
		return err
	}
	serverCfg, err := config.Load(*dataDir)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", config.FileName, err)
	}

	// Flags win over .env, which wins over server_config.json.
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	overlay := func(name, key string, dst *string) {
		if !set[name] {
			if v := env[key]; v != "" {
				*dst = v
			}
		}
	}
	overlay("http", "HTTP", httpAddr)
	overlay("log-level", "LOG_LEVEL", logLevel)
	overlay("geo-db", "GEO_DB", geoDB)
	overlay("catalog", "CATALOG", catalogPath)
	overlay("storage", "STORAGE", backend)
	overlay("postgres-dsn", "POSTGRES_DSN", postgresDSN)
	if *geoDB == "" {
		*geoDB = serverCfg.GeoIPPath
	}
	if *catalogPath == "" {
		*catalogPath = serverCfg.CatalogPath
	}
	if *backend != "" {
		serverCfg.Storage.Backend = *backend
	}
	if *postgresDSN != "" {
		serverCfg.Storage.PostgresDSN = *postgresDSN
	}
	if err := serverCfg.Storage.Validate(); err != nil {
		return err
	}

	switch *logLevel {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", *logLevel)
	}

	// Normalize addr: ":8080" becomes "localhost:8080"
	addr := *httpAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}

	blobs, closeBlobs, err := openBlobs(ctx, *dataDir, &serverCfg.Storage)
	if err != nil {
		return err
	}
	defer closeBlobs()

	plans, err := catalog.Open(*catalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	if *catalogPath != "" {
		if err := plans.Watch(ctx); err != nil {
			return fmt.Errorf("failed to watch catalog: %w", err)
		}
		slog.InfoContext(ctx, "Catalog loaded", "path", *catalogPath, "plans", len(plans.Current().Plans))
	}

	var pusher *notify.Pusher
	if serverCfg.VAPID.Enabled() {
		pusher, err = notify.NewPusher(filepath.Join(*dataDir, "push_subscriptions.jsonl"), notify.VAPIDKeys{
			Public:     serverCfg.VAPID.PublicKey,
			Private:    serverCfg.VAPID.PrivateKey,
			Subscriber: serverCfg.VAPID.Subscriber,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize push: %w", err)
		}
		slog.InfoContext(ctx, "Web Push enabled")
	}
	center := notify.NewCenter(serverCfg.NotificationDelay(), pusher)

	sessions, err := session.NewManager(serverCfg.SessionSecret, serverCfg.Sessions.Lifetime(), serverCfg.Sessions.SecureCookie)
	if err != nil {
		return err
	}

	locale := i18n.ParseLocale(serverCfg.Locale)
	carts := handlers.NewCarts(blobs, handlers.CartsOptions{
		Locale:      locale,
		Center:      center,
		MaxLines:    serverCfg.Quotas.MaxCartLines,
		MaxQuantity: serverCfg.Quotas.MaxLineQuantity,
		MaxSessions: serverCfg.Quotas.MaxSessions,
		Idle:        serverCfg.Sessions.Idle(),
	})
	go carts.Run(ctx)

	// Watch own executable for modifications (for development restarts)
	if err := watchExecutable(ctx, stop); err != nil {
		return fmt.Errorf("failed to watch executable: %w", err)
	}

	var geoChecker *ipgeo.Checker
	if *geoDB != "" {
		geoChecker, err = ipgeo.Open(*geoDB)
		if err != nil {
			return fmt.Errorf("failed to open geo database: %w", err)
		}
		defer func() { _ = geoChecker.Close() }()
		slog.InfoContext(ctx, "IP geolocation enabled", "db", *geoDB)
	}

	limiters := ratelimit.NewConfig(serverCfg.RateLimits.WriteRatePerMin, serverCfg.RateLimits.ReadRatePerMin)
	defer limiters.Close()

	buildVersion, _, _, _ := getBuildInfo()
	svc := &handlers.Services{
		Carts:   carts,
		Notify:  center,
		Pusher:  pusher,
		Catalog: plans,
	}
	cfg := &server.Config{
		Config: handlers.Config{
			Version: buildVersion,
			Locale:  locale,
			Quotas:  serverCfg.Quotas,
		},
		Sessions: sessions,
		Limiters: limiters,
		IPGeo:    geoChecker,
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.NewRouter(svc, cfg),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", addr, "storage", serverCfg.Storage.Backend, "locale", locale, "version", buildVersion)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}

// newLogger returns a tint logger on stderr that drops empty attributes.
func newLogger(ll *slog.LevelVar) *slog.Logger {
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			if a.Key == "ip" {
				if v := a.Value.String(); v == "127.0.0.1" || v == "::1" {
					return slog.Attr{}
				}
			}
			skip := false
			switch t := a.Value.Any().(type) {
			case string:
				skip = t == ""
			case bool:
				skip = !t
			case int64:
				skip = t == 0
			case uint64:
				skip = t == 0
			case time.Duration:
				skip = t == 0
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// openBlobs opens the cart storage backend selected by s.
func openBlobs(ctx context.Context, dataDir string, s *config.Storage) (cart.Blobs, func(), error) {
	switch s.Backend {
	case config.BackendMemory:
		slog.WarnContext(ctx, "Carts are kept in memory and lost on restart")
		return storage.NewMemory(), func() {}, nil
	case config.BackendPostgres:
		p, err := storage.OpenPostgres(ctx, s.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		return p, func() { _ = p.Close() }, nil
	default:
		j, err := storage.NewJSONL(filepath.Join(dataDir, "carts.jsonl"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open cart storage: %w", err)
		}
		return j, func() {}, nil
	}
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("plancart %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}

// loadDotEnv reads KEY=value pairs from dataDir/.env. A missing file yields an
// empty map.
func loadDotEnv(dataDir string) (map[string]string, error) {
	env := make(map[string]string)
	data, err := os.ReadFile(filepath.Join(dataDir, ".env")) //nolint:gosec // G304: path is constructed from dataDir flag, not user input
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return env, nil
		}
		return nil, err
	}
	for line := range strings.SplitSeq(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if strings.HasPrefix(val, "'") || strings.HasSuffix(val, "'") {
			return nil, fmt.Errorf("single quotes are not supported in .env: %s", line)
		}
		if strings.HasPrefix(val, "\"") {
			unquoted, err := strconv.Unquote(val)
			if err != nil {
				return nil, fmt.Errorf("failed to unquote %s: %w", key, err)
			}
			val = unquoted
		}
		env[key] = val
	}
	return env, nil
}

// watchExecutable calls stop when the running binary is replaced so a
// supervisor can restart it.
func watchExecutable(ctx context.Context, stop context.CancelFunc) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(exe); err != nil {
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
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) {
					slog.InfoContext(ctx, "Executable modified, initiating shutdown")
					stop()
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching executable", "err", err)
			}
		}
	}()
	return nil
}
