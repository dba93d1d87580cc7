// Package ratelimit implements per-client token bucket rate limiting for the
// HTTP API.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// staleAfter is how long an idle, refilled bucket is kept.
const staleAfter = 10 * time.Minute

// Result contains the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Limit      int           // requests per window
	Remaining  int           // whole tokens left after this request
	ResetAt    time.Time     // when the bucket is full again
	RetryAfter time.Duration // zero when allowed, otherwise at least 1s
}

// Limiter holds one token bucket per key.
type Limiter struct {
	limit  rate.Limit
	burst  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stop      chan struct{}
	closeOnce sync.Once
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter allows requests per window per key, with bursts up to burst.
//
// A background goroutine drops idle buckets until Close is called.
func NewLimiter(requests int, window time.Duration, burst int) *Limiter {
	l := newLimiter(requests, window, burst, time.Now)
	go l.cleanupLoop()
	return l
}

func newLimiter(requests int, window time.Duration, burst int, now func() time.Time) *Limiter {
	return &Limiter{
		limit:   rate.Limit(float64(requests) / window.Seconds()),
		burst:   max(burst, 1),
		window:  window,
		now:     now,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
}

// Allow consumes one token for key if available.
func (l *Limiter) Allow(key string) Result {
	now := l.now()

	l.mu.Lock()
	b := l.buckets[key]
	if b == nil {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	res := b.limiter.ReserveN(now, 1)
	allowed := res.OK() && res.DelayFrom(now) == 0
	var retryAfter time.Duration
	if !allowed {
		if res.OK() {
			retryAfter = res.DelayFrom(now)
			res.CancelAt(now)
		}
		retryAfter = max(time.Duration(math.Ceil(retryAfter.Seconds()))*time.Second, time.Second)
	}
	tokens := b.limiter.TokensAt(now)
	l.mu.Unlock()

	refill := time.Duration((float64(l.burst) - tokens) / float64(l.limit) * float64(time.Second))
	return Result{
		Allowed:    allowed,
		Limit:      int(math.Round(float64(l.limit) * l.window.Seconds())),
		Remaining:  max(int(tokens), 0),
		ResetAt:    now.Add(max(refill, 0)),
		RetryAfter: retryAfter,
	}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(staleAfter)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep drops buckets that are idle and full again, since a fresh bucket
// behaves the same.
func (l *Limiter) sweep() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > staleAfter && b.limiter.TokensAt(now) >= float64(l.burst) {
			delete(l.buckets, key)
		}
	}
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() { close(l.stop) })
}
