package identity

import (
	"context"
	"sync"
)

// MemDirectory is an in-memory identity directory for tests and local
// runs. Identities spring into existence on the first SetClaims, which
// matches how placeholder accounts show up in practice.
type MemDirectory struct {
	mu     sync.Mutex
	claims map[string]map[string]any

	// FailSetClaims makes every SetClaims return this error; lets tests
	// exercise retryable trigger outcomes.
	FailSetClaims error
	// FailDelete does the same for DeleteIdentity.
	FailDelete error
}

func NewMemDirectory() *MemDirectory {
	return &MemDirectory{claims: make(map[string]map[string]any)}
}

func (d *MemDirectory) SetClaims(ctx context.Context, uid string, claims map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailSetClaims != nil {
		return d.FailSetClaims
	}
	cp := make(map[string]any, len(claims))
	for k, v := range claims {
		cp[k] = v
	}
	d.claims[uid] = cp
	return nil
}

func (d *MemDirectory) DeleteIdentity(ctx context.Context, uid string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailDelete != nil {
		return d.FailDelete
	}
	if _, ok := d.claims[uid]; !ok {
		return ErrNotFound
	}
	delete(d.claims, uid)
	return nil
}

// Claims returns the current claims for uid, or nil if it has none.
func (d *MemDirectory) Claims(uid string) map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.claims[uid]
}

// Add registers an identity with no claims; test helper.
func (d *MemDirectory) Add(uid string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.claims[uid]; !ok {
		d.claims[uid] = map[string]any{}
	}
}

// Exists reports whether an identity is present; test helper.
func (d *MemDirectory) Exists(uid string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.claims[uid]
	return ok
}
