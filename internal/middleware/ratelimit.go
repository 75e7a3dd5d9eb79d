package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"average-calculator/internal/metrics"
)

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter keeps one token bucket per client IP. Idle buckets are dropped by Sweep.
type ClientLimiter struct {
	mu         sync.Mutex
	clients    map[string]*clientEntry
	rate       rate.Limit
	burst      int
	trustProxy bool
	clock      clockwork.Clock
}

// NewClientLimiter allows rps requests per second per client with the given burst.
// With trustProxy the client is taken from X-Forwarded-For, otherwise from the peer address.
func NewClientLimiter(rps float64, burst int, trustProxy bool, clock clockwork.Clock) *ClientLimiter {
	return &ClientLimiter{
		clients:    make(map[string]*clientEntry),
		rate:       rate.Limit(rps),
		burst:      burst,
		trustProxy: trustProxy,
		clock:      clock,
	}
}

// Allow reports whether the client identified by key may proceed.
func (l *ClientLimiter) Allow(key string) bool {
	now := l.clock.Now()
	l.mu.Lock()
	e, ok := l.clients[key]
	if !ok {
		e = &clientEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[key] = e
	}
	e.lastSeen = now
	l.mu.Unlock()
	return e.limiter.AllowN(now, 1)
}

// Sweep removes clients not seen for at least idle and returns how many were dropped.
func (l *ClientLimiter) Sweep(idle time.Duration) int {
	cutoff := l.clock.Now().Add(-idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	dropped := 0
	for key, e := range l.clients {
		if !e.lastSeen.After(cutoff) {
			delete(l.clients, key)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of tracked clients.
func (l *ClientLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// StartCleanup sweeps idle clients every interval until ctx is done.
func (l *ClientLimiter) StartCleanup(ctx context.Context, interval, idle time.Duration) {
	ticker := l.clock.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				if n := l.Sweep(idle); n > 0 {
					log.Debug().Int("dropped", n).Msg("rate limiter sweep")
				}
			}
		}
	}()
}

// RateLimit builds a middleware rejecting clients that exceed their budget with 429.
// A nil limiter disables limiting.
func RateLimit(l *ClientLimiter, m *metrics.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, l.trustProxy)
			if !l.Allow(ip) {
				m.RateLimited.Inc()
				log.Warn().Str("client", ip).Str("path", r.URL.Path).Msg("rate limit exceeded")
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error":      "rate limit exceeded",
					"code":       "rate_limited",
					"request_id": GetRequestID(r.Context()),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the remote IP address. X-Forwarded-For is only honoured behind a trusted proxy.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
