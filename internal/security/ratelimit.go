// Package security holds request-level protections shared by the HTTP
// surfaces.
package security

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IPLimiter tracks a token-bucket limiter per client IP, evicting idle
// entries lazily on each hit.
type IPLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	r       rate.Limit
	burst   int
	ttl     time.Duration
}

type client struct {
	lim     *rate.Limiter
	lastHit time.Time
}

func NewIPLimiter(r rate.Limit, burst int, ttl time.Duration) *IPLimiter {
	return &IPLimiter{
		clients: make(map[string]*client),
		r:       r,
		burst:   burst,
		ttl:     ttl,
	}
}

func (l *IPLimiter) Allow(ip string) bool {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = "unknown"
	}

	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, c := range l.clients {
		if now.Sub(c.lastHit) > l.ttl {
			delete(l.clients, k)
		}
	}

	c, ok := l.clients[ip]
	if !ok {
		c = &client{lim: rate.NewLimiter(l.r, l.burst)}
		l.clients[ip] = c
	}

	c.lastHit = now
	return c.lim.Allow()
}
