package ratelimit

import (
	"net/http"
	"strings"
	"time"
)

// Tier is a named limiter applied to a class of requests.
type Tier struct {
	Name    string
	Limiter *Limiter
}

// Config holds the tiers of the API. A tier with a nil Limiter is unlimited.
type Config struct {
	Write Tier
	Read  Tier
}

// NewConfig builds the tiers from per-minute rates. A rate of 0 disables
// the tier. Bursts are a sixth of the rate, so a client can spend ten
// seconds of budget at once.
func NewConfig(writePerMin, readPerMin int) *Config {
	return &Config{
		Write: Tier{Name: "write", Limiter: perMinute(writePerMin)},
		Read:  Tier{Name: "read", Limiter: perMinute(readPerMin)},
	}
}

func perMinute(n int) *Limiter {
	if n <= 0 {
		return nil
	}
	return NewLimiter(n, time.Minute, max(n/6, 1))
}

// Match returns the tier for a request, or nil when it is not limited.
//
// Only /api/ routes are limited and the health check is exempt.
func (c *Config) Match(method, path string) *Tier {
	if c == nil || !strings.HasPrefix(path, "/api/") || path == "/api/health" {
		return nil
	}
	var t *Tier
	switch method {
	case http.MethodGet, http.MethodHead:
		t = &c.Read
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		t = &c.Write
	default:
		return nil
	}
	if t.Limiter == nil {
		return nil
	}
	return t
}

// Close stops all limiter cleanup goroutines.
func (c *Config) Close() {
	for _, t := range []*Tier{&c.Write, &c.Read} {
		if t.Limiter != nil {
			t.Limiter.Close()
		}
	}
}
