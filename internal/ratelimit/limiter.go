package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per caller, keyed by chat id or client address
type Limiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	perHour  int
}

// NewLimiter creates a new rate limiter
// requestsPerHour: sustained searches allowed per hour per key (e.g., 30)
// burst: searches allowed back to back (e.g., 3)
func NewLimiter(requestsPerHour int, burst int) *Limiter {
	// Convert requests per hour to requests per second
	r := rate.Limit(float64(requestsPerHour) / 3600.0)
	if requestsPerHour <= 0 {
		r = rate.Inf
	}

	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    burst,
		perHour:  requestsPerHour,
	}
}

// PerHour returns the configured sustained rate
func (l *Limiter) PerHour() int {
	return l.perHour
}

func (l *Limiter) limiterFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = limiter
	}

	return limiter
}

// Allow checks if a request is allowed for key
func (l *Limiter) Allow(key string) bool {
	return l.limiterFor(key).Allow()
}

// Tokens returns the current number of available tokens for key
func (l *Limiter) Tokens(key string) float64 {
	return l.limiterFor(key).Tokens()
}

// RetryAfter is how long key has to wait for its next token
func (l *Limiter) RetryAfter(key string) time.Duration {
	limiter := l.limiterFor(key)
	if limiter.Tokens() >= 1 {
		return 0
	}

	// A reservation that is not yet due gives its token back on Cancel
	r := limiter.Reserve()
	defer r.Cancel()
	return r.Delay()
}
