package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles requests per client IP using a token bucket. Idle
// entries are evicted after a few minutes so the visitor map stays bounded.
type RateLimiter struct {
	perSecond rate.Limit
	burst     int

	mu       sync.Mutex
	visitors map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter builds a limiter allowing requestsPerMinute sustained with
// the given burst.
func NewRateLimiter(requestsPerMinute float64, burst int) *RateLimiter {
	perSecond := requestsPerMinute / 60.0
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	rl := &RateLimiter{
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		visitors:  make(map[string]*visitor),
	}
	go rl.evictLoop()
	return rl
}

// Middleware rejects requests exceeding the client's budget with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientID(r)) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(id string) bool {
	rl.mu.Lock()
	entry, ok := rl.visitors[id]
	if !ok {
		entry = &visitor{limiter: rate.NewLimiter(rl.perSecond, rl.burst)}
		rl.visitors[id] = entry
	}
	entry.lastSeen = time.Now()
	rl.mu.Unlock()
	return entry.limiter.Allow()
}

func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-3 * time.Minute)
		rl.mu.Lock()
		for id, entry := range rl.visitors {
			if entry.lastSeen.Before(cutoff) {
				delete(rl.visitors, id)
			}
		}
		rl.mu.Unlock()
	}
}

func clientID(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
