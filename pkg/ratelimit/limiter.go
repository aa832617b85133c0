// Package ratelimit provides an HTTP ingress-layer token-bucket limiter.
// This sits in front of the fan-out engine, not inside it — spec §1's
// Non-goals explicitly exclude rate-limit budgeting or quota accounting
// from the core, so this package exists purely as transport-edge
// middleware the cmd/ servers wire in ahead of the engine. Grounded on the
// teacher's examples/middleware/rate-limiting's TokenBucketLimiter, which
// wraps golang.org/x/time/rate.Limiter the same way; narrowed here from a
// pluggable multi-strategy limiter interface down to the one strategy the
// servers actually need.
package ratelimit

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per client key, created on first use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rps     rate.Limit
	burst   int
}

// New constructs a Limiter allowing rps requests per second per client IP,
// with burst capacity.
func New(rps float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

func (l *Limiter) bucketFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.rps, l.burst)
		l.buckets[key] = b
	}
	return b
}

// Allow reports whether a request from key may proceed right now.
func (l *Limiter) Allow(key string) bool {
	return l.bucketFor(key).Allow()
}

// Middleware wraps next with per-client rate limiting keyed on RemoteAddr,
// responding 429 when the bucket is empty.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(r.RemoteAddr) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
