// Package config manages server configuration stored in server_config.json.
package config

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/maruel/plancart/internal/cart"
	"github.com/maruel/plancart/internal/i18n"
)

// FileName is the configuration file name inside the data directory.
const FileName = "server_config.json"

// ServerConfig stores all server-wide configuration.
// Loaded from server_config.json, created with defaults if missing.
type ServerConfig struct {
	// SessionSecret signs session cookies. Auto-generated if empty on first
	// load.
	SessionSecret []byte `json:"session_secret"`

	// Locale selects UI strings and number formatting, e.g. "es" or "en".
	Locale string `json:"locale"`

	// NotificationDelayMS is how long a confirmation stays visible.
	NotificationDelayMS int `json:"notification_delay_ms"`

	// CatalogPath points to a plans YAML file. Empty uses the embedded
	// catalog.
	CatalogPath string `json:"catalog_path,omitempty"`

	// GeoIPPath points to a MaxMind country database. Empty disables
	// country lookup.
	GeoIPPath string `json:"geoip_path,omitempty"`

	Storage    Storage    `json:"storage"`
	Sessions   Sessions   `json:"sessions"`
	VAPID      VAPID      `json:"vapid"`
	Quotas     Quotas     `json:"quotas"`
	RateLimits RateLimits `json:"rate_limits"`
}

// Storage selects the cart persistence backend.
type Storage struct {
	// Backend is one of "jsonl", "memory" or "postgres".
	Backend string `json:"backend"`
	// PostgresDSN is required for the postgres backend.
	PostgresDSN string `json:"postgres_dsn,omitempty"`
}

// Storage backends.
const (
	BackendJSONL    = "jsonl"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Validate checks the backend name.
func (s *Storage) Validate() error {
	switch s.Backend {
	case BackendJSONL, BackendMemory:
		return nil
	case BackendPostgres:
		if s.PostgresDSN == "" {
			return errors.New("postgres_dsn is required for the postgres backend")
		}
		return nil
	default:
		return fmt.Errorf("unknown backend %q", s.Backend)
	}
}

// Sessions configures session cookies and in-memory carts.
type Sessions struct {
	// LifetimeHours is the cookie validity.
	LifetimeHours int `json:"lifetime_hours"`
	// IdleMinutes is how long an unused cart stays in memory.
	IdleMinutes int `json:"idle_minutes"`
	// SecureCookie sets the Secure attribute; enable behind HTTPS.
	SecureCookie bool `json:"secure_cookie"`
}

// Validate checks that durations are positive.
func (s *Sessions) Validate() error {
	if s.LifetimeHours <= 0 {
		return errors.New("lifetime_hours must be positive")
	}
	if s.IdleMinutes <= 0 {
		return errors.New("idle_minutes must be positive")
	}
	return nil
}

// Lifetime returns LifetimeHours as a duration.
func (s *Sessions) Lifetime() time.Duration {
	return time.Duration(s.LifetimeHours) * time.Hour
}

// Idle returns IdleMinutes as a duration.
func (s *Sessions) Idle() time.Duration {
	return time.Duration(s.IdleMinutes) * time.Minute
}

// VAPID holds the Web Push key pair. Empty keys disable push.
type VAPID struct {
	PublicKey  string `json:"public_key,omitempty"`
	PrivateKey string `json:"private_key,omitempty"`
	Subscriber string `json:"subscriber,omitempty"`
}

// Enabled reports whether both keys are set.
func (v *VAPID) Enabled() bool {
	return v.PublicKey != "" && v.PrivateKey != ""
}

// Validate checks that keys are set together.
func (v *VAPID) Validate() error {
	if (v.PublicKey == "") != (v.PrivateKey == "") {
		return errors.New("public_key and private_key must be set together")
	}
	return nil
}

// Quotas defines server-wide resource limits.
type Quotas struct {
	// MaxCartLines limits distinct items per cart.
	MaxCartLines int `json:"max_cart_lines"`
	// MaxLineQuantity limits the quantity of one item.
	MaxLineQuantity int64 `json:"max_line_quantity"`
	// MaxRequestBodyBytes limits the size of any single HTTP request body.
	MaxRequestBodyBytes int64 `json:"max_request_body_bytes"`
	// MaxSessions limits carts held in memory at once.
	MaxSessions int `json:"max_sessions"`
}

// Validate checks that all quota values are positive.
func (q *Quotas) Validate() error {
	if q.MaxCartLines <= 0 {
		return errors.New("max_cart_lines must be positive")
	}
	if q.MaxLineQuantity <= 0 {
		return errors.New("max_line_quantity must be positive")
	}
	if q.MaxLineQuantity > cart.MaxQuantity {
		return fmt.Errorf("max_line_quantity must be at most %d", cart.MaxQuantity)
	}
	if q.MaxRequestBodyBytes <= 0 {
		return errors.New("max_request_body_bytes must be positive")
	}
	if q.MaxSessions <= 0 {
		return errors.New("max_sessions must be positive")
	}
	return nil
}

// RateLimits defines rate limiting configuration (requests per minute).
type RateLimits struct {
	// WriteRatePerMin limits cart mutations per client IP.
	// 0 means unlimited.
	WriteRatePerMin int `json:"write_rate_per_min"`

	// ReadRatePerMin limits reads per client IP.
	// 0 means unlimited.
	ReadRatePerMin int `json:"read_rate_per_min"`
}

// Validate checks that rate limit values are non-negative.
func (r *RateLimits) Validate() error {
	if r.WriteRatePerMin < 0 {
		return errors.New("write_rate_per_min must be non-negative")
	}
	if r.ReadRatePerMin < 0 {
		return errors.New("read_rate_per_min must be non-negative")
	}
	return nil
}

// Default returns the configuration used for missing fields.
func Default() ServerConfig {
	return ServerConfig{
		Locale:              string(i18n.DefaultLocale),
		NotificationDelayMS: 3000,
		Storage:             Storage{Backend: BackendJSONL},
		Sessions: Sessions{
			LifetimeHours: 180 * 24,
			IdleMinutes:   30,
		},
		Quotas: Quotas{
			MaxCartLines:        50,
			MaxLineQuantity:     999,
			MaxRequestBodyBytes: 64 * 1024,
			MaxSessions:         10000,
		},
		RateLimits: RateLimits{
			WriteRatePerMin: 120,
			ReadRatePerMin:  6000,
		},
	}
}

// NotificationDelay returns NotificationDelayMS as a duration.
func (c *ServerConfig) NotificationDelay() time.Duration {
	return time.Duration(c.NotificationDelayMS) * time.Millisecond
}

// Validate checks that the configuration is valid.
func (c *ServerConfig) Validate() error {
	if len(c.SessionSecret) < 32 {
		return errors.New("session_secret must be at least 32 bytes")
	}
	if c.NotificationDelayMS <= 0 {
		return errors.New("notification_delay_ms must be positive")
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Sessions.Validate(); err != nil {
		return fmt.Errorf("sessions: %w", err)
	}
	if err := c.VAPID.Validate(); err != nil {
		return fmt.Errorf("vapid: %w", err)
	}
	if err := c.Quotas.Validate(); err != nil {
		return fmt.Errorf("quotas: %w", err)
	}
	if err := c.RateLimits.Validate(); err != nil {
		return fmt.Errorf("rate_limits: %w", err)
	}
	return nil
}

// Load loads configuration from dataDir/server_config.json.
// Creates the file with defaults if it doesn't exist.
// Auto-generates SessionSecret if empty.
func Load(dataDir string) (*ServerConfig, error) {
	path := filepath.Join(dataDir, FileName)

	cfg := Default()
	modified := false
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is constructed from dataDir, not user input
	switch {
	case errors.Is(err, os.ErrNotExist):
		modified = true
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
		}
	}

	if len(cfg.SessionSecret) == 0 {
		cfg.SessionSecret = make([]byte, 32)
		if _, err := rand.Read(cfg.SessionSecret); err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
		modified = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", FileName, err)
	}
	if modified {
		if err := cfg.Save(dataDir); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// Save saves configuration to dataDir/server_config.json.
func (c *ServerConfig) Save(dataDir string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(filepath.Join(dataDir, FileName), data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", FileName, err)
	}
	return nil
}
