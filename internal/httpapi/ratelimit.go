package httpapi

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 3 * time.Minute

// clientLimiter keeps one token bucket per client address.
type clientLimiter struct {
	rps   rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*limitedClient
}

type limitedClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(rps float64, burst int) *clientLimiter {
	return &clientLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		clients: make(map[string]*limitedClient),
	}
}

func (cl *clientLimiter) allow(key string) bool {
	now := time.Now()
	cl.mu.Lock()
	c, ok := cl.clients[key]
	if !ok {
		c = &limitedClient{limiter: rate.NewLimiter(cl.rps, cl.burst)}
		cl.clients[key] = c
	}
	c.lastSeen = now
	cl.mu.Unlock()
	return c.limiter.AllowN(now, 1)
}

// sweep drops idle clients until ctx is done.
func (cl *clientLimiter) sweep(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cl.mu.Lock()
			for k, c := range cl.clients {
				if time.Since(c.lastSeen) > limiterIdleTTL {
					delete(cl.clients, k)
				}
			}
			cl.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

// middleware rejects over-limit requests with 429 and an SSE error frame.
func (cl *clientLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !cl.allow(clientKey(r)) {
			IncrementBackpressure("rate_limit")
			writeSSEError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey is the remote host; middleware.RealIP has already applied
// X-Forwarded-For / X-Real-IP.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
