package server

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter enforces per-client and global request rate limits using
// token buckets.
type RateLimiter struct {
	mu        sync.Mutex
	global    *rate.Limiter
	clients   map[string]*rate.Limiter
	perClient rate.Limit
	burst     int
}

// NewRateLimiter creates a limiter. globalRPM is the total requests per
// minute across all clients; perClientRPM the per-client allowance.
func NewRateLimiter(globalRPM, perClientRPM int) *RateLimiter {
	globalBurst := globalRPM
	if globalBurst < 1 {
		globalBurst = 1
	}
	clientBurst := perClientRPM
	if clientBurst < 1 {
		clientBurst = 1
	}
	return &RateLimiter{
		global:    rate.NewLimiter(rate.Limit(float64(globalRPM)/60.0), globalBurst),
		clients:   make(map[string]*rate.Limiter),
		perClient: rate.Limit(float64(perClientRPM) / 60.0),
		burst:     clientBurst,
	}
}

// Allow checks whether a request from the given client is allowed.
func (rl *RateLimiter) Allow(client string) bool {
	if !rl.global.Allow() {
		return false
	}
	rl.mu.Lock()
	limiter, ok := rl.clients[client]
	if !ok {
		limiter = rate.NewLimiter(rl.perClient, rl.burst)
		rl.clients[client] = limiter
	}
	rl.mu.Unlock()
	return limiter.Allow()
}

// RateLimitMiddleware rejects requests over the limit with 429. A nil
// limiter disables limiting. Clients are keyed by remote IP.
func RateLimitMiddleware(rl *RateLimiter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl != nil && !rl.Allow(clientKey(r)) {
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
