// Package firebaseauth adapts the Firebase Auth admin SDK to the
// identity directory interface.
package firebaseauth

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"

	"github.com/SimonWorku1/PrayerBuddy/internal/identity"
)

type Directory struct {
	client *auth.Client
}

func New(ctx context.Context, projectID string) (*Directory, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth: %w", err)
	}
	return &Directory{client: client}, nil
}

func (d *Directory) SetClaims(ctx context.Context, uid string, claims map[string]any) error {
	return d.client.SetCustomUserClaims(ctx, uid, claims)
}

func (d *Directory) DeleteIdentity(ctx context.Context, uid string) error {
	err := d.client.DeleteUser(ctx, uid)
	if auth.IsUserNotFound(err) {
		return identity.ErrNotFound
	}
	return err
}
