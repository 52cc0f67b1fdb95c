package api

import (
	"log/slog"
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the per-client limiter table. When it fills up
// the table is reset, which briefly gives every client a fresh bucket.
const maxTrackedClients = 10000

// DeleteRateLimiter applies a token bucket per client IP to destructive routes.
type DeleteRateLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*rate.Limiter
}

// NewDeleteRateLimiter allows burst requests at once and perSecond
// requests per second after that, per client.
func NewDeleteRateLimiter(perSecond float64, burst int) *DeleteRateLimiter {
	return &DeleteRateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clients: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether client may make another request now.
func (l *DeleteRateLimiter) Allow(client string) bool {
	l.mu.Lock()
	lim, ok := l.clients[client]
	if !ok {
		if len(l.clients) >= maxTrackedClients {
			l.clients = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.clients[client] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// Middleware rejects requests over the limit with 429 Problem Details.
func (l *DeleteRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientIP(r)
		if !l.Allow(client) {
			slog.Warn("rate limit exceeded",
				"component", "api",
				"path", r.URL.Path,
				"method", r.Method,
				"remote_ip", client,
			)
			rateLimitRejections.Inc()
			w.Header().Set("Retry-After", "1")
			WriteProblem(w, r, http.StatusTooManyRequests, "Too many delete requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr. RealIP middleware has already
// replaced it with the forwarded address when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
