package ratelimit

import (
	"errors"
	"math"
	"sync"
	"time"
)

// Config controls a fixed-window quota. BurstAllowance is granted on top of
// MaxRequests within the same window.
type Config struct {
	MaxRequests    int
	Window         time.Duration
	BurstAllowance int
}

// Result describes a quota decision. RetryAfter is zero when Allowed.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

var errInvalidConfig = errors.New("ratelimit: max requests and window must be positive")

type window struct {
	start time.Time
	count int
}

// Limiter applies a per-client fixed window with burst allowance. All state
// transitions happen under one lock so check-and-record is atomic per key;
// concurrent load can never admit more than the configured quota.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

// New validates the configuration and builds a Limiter.
func New(cfg Config) (*Limiter, error) {
	if cfg.MaxRequests < 1 || cfg.Window <= 0 {
		return nil, errInvalidConfig
	}
	if cfg.BurstAllowance < 0 {
		cfg.BurstAllowance = 0
	}
	return &Limiter{
		cfg:     cfg,
		now:     time.Now,
		windows: make(map[string]*window),
	}, nil
}

// WithClock overrides the time source for tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

func (l *Limiter) quota() int {
	return l.cfg.MaxRequests + l.cfg.BurstAllowance
}

// current returns the live window for clientID, discarding an expired one.
// Callers hold l.mu.
func (l *Limiter) current(clientID string, now time.Time) *window {
	w, ok := l.windows[clientID]
	if !ok || now.Sub(w.start) >= l.cfg.Window {
		w = &window{start: now}
		l.windows[clientID] = w
	}
	return w
}

func (l *Limiter) decide(w *window, now time.Time) Result {
	remaining := l.quota() - w.count
	if remaining > 0 {
		return Result{Allowed: true, Remaining: remaining}
	}

	retryAfter := l.cfg.Window - now.Sub(w.start)
	if retryAfter <= 0 {
		retryAfter = time.Second
	}
	return Result{Allowed: false, Remaining: 0, RetryAfter: retryAfter}
}

// Check is the read-only quota probe; it consumes nothing.
func (l *Limiter) Check(clientID string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	return l.decide(l.current(clientID, now), now)
}

// Record unconditionally consumes one unit of quota, even past the limit.
// Used when the caller has already decided to admit the request.
func (l *Limiter) Record(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.current(clientID, l.now()).count++
}

// CheckAndRecord atomically checks the quota and consumes one unit when
// allowed. The returned Remaining reflects the state after consumption.
func (l *Limiter) CheckAndRecord(clientID string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.current(clientID, now)
	res := l.decide(w, now)
	if !res.Allowed {
		return res
	}

	w.count++
	res.Remaining = l.quota() - w.count
	return res
}

// Reset restores full quota for clientID immediately.
func (l *Limiter) Reset(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, clientID)
}

// RetryAfterSeconds renders a Result's hint as whole seconds, rounded up so a
// caller sleeping the hinted interval always lands in the next window.
func RetryAfterSeconds(res Result) int {
	if res.Allowed || res.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(res.RetryAfter.Seconds()))
}
