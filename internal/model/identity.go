package model

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the authenticated user as reported by the auth collaborator.
type Identity struct {
	UserID    uuid.UUID
	Email     string
	Token     string
	ExpiresAt time.Time
}

// SameUser reports whether both identities refer to the same user.
// A nil identity is never the same user as anything.
func (i *Identity) SameUser(other *Identity) bool {
	if i == nil || other == nil {
		return false
	}
	return i.UserID == other.UserID
}

// Expired reports whether the token carried by the identity has expired at now.
func (i *Identity) Expired(now time.Time) bool {
	if i == nil {
		return true
	}
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// Clone returns a copy of the identity, or nil.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}
