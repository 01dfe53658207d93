package bible

import (
	"sync"
	"time"
)

// refreshMargin forces a refresh slightly before the upstream expiry so
// an in-flight request never carries a token that dies mid-call.
const refreshMargin = 60 * time.Second

// tokenCache is an explicit {value, expiry} entity guarded by a mutex;
// access goes through get/put so no handler touches ambient state.
type tokenCache struct {
	mu        sync.Mutex
	value     string
	expiresAt time.Time
}

// get returns the cached token if it is still comfortably valid.
func (c *tokenCache) get(now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value == "" || !now.Add(refreshMargin).Before(c.expiresAt) {
		return "", false
	}
	return c.value, true
}

func (c *tokenCache) put(value string, expiresAt time.Time) {
	c.mu.Lock()
	c.value = value
	c.expiresAt = expiresAt
	c.mu.Unlock()
}
