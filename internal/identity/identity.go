// Package identity defines the auth collaborator: a directory of user
// identities carrying small signed claims.
package identity

import (
	"context"
	"errors"
)

// ErrNotFound reports an absent identity. Callers deleting identities
// treat it as benign: an identity already gone is the desired end state.
var ErrNotFound = errors.New("identity: user not found")

type Directory interface {
	// SetClaims replaces the custom claims attached to a user identity.
	SetClaims(ctx context.Context, uid string, claims map[string]any) error
	// DeleteIdentity removes the identity; ErrNotFound when absent.
	DeleteIdentity(ctx context.Context, uid string) error
}
