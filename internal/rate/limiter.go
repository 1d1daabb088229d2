package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds limiter tuning parameters.
type Config struct {
	// Window is the time to restore one attempt. Zero disables limiting.
	Window time.Duration
	// Burst is the number of attempts available at once. Values below 1 are treated as 1.
	Burst int
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Limiter refuses attempts beyond the configured budget. It is safe for concurrent use.
type Limiter struct {
	mu    sync.Mutex
	lim   *rate.Limiter
	cfg   Config
	now   func() time.Time
	limit rate.Limit
}

// New creates a Limiter from cfg.
func New(cfg Config) *Limiter {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	limit := rate.Inf
	if cfg.Window > 0 {
		limit = rate.Every(cfg.Window)
	}
	return &Limiter{
		lim:   rate.NewLimiter(limit, cfg.Burst),
		cfg:   cfg,
		now:   now,
		limit: limit,
	}
}

// NewCooldown allows one attempt per window.
func NewCooldown(window time.Duration, now func() time.Time) *Limiter {
	return New(Config{Window: window, Burst: 1, Now: now})
}

// Allow consumes one attempt if available.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lim.AllowN(l.now(), 1)
}

// Check is Allow returning [ErrRateLimited] on refusal.
func (l *Limiter) Check() error {
	if !l.Allow() {
		return ErrRateLimited
	}
	return nil
}

// RetryAfter returns how long until the next attempt is available, or zero.
func (l *Limiter) RetryAfter() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.limit == rate.Inf {
		return 0
	}
	tokens := l.lim.TokensAt(l.now())
	if tokens >= 1 {
		return 0
	}
	return time.Duration((1 - tokens) * float64(l.cfg.Window))
}

// Reset restores the full burst, e.g. when a new session starts.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lim = rate.NewLimiter(l.limit, l.cfg.Burst)
}
