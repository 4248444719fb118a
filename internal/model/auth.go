package model

import "context"

// IdentityFunc receives the current identity, or nil when signed out.
type IdentityFunc func(identity *Identity)

// AuthProvider is the authentication collaborator.
type AuthProvider interface {
	// Subscribe calls onChange with the current state and then on every
	// authentication state change, in order, until unsubscribed.
	Subscribe(onChange IdentityFunc) Unsubscribe
	SignIn(ctx context.Context, email, password string) (Identity, error)
	SignOut(ctx context.Context) error
}
