package model

import "context"

// PersistenceMode selects where an auth collaborator keeps its session.
type PersistenceMode string

const (
	// PersistenceNative stores the session on disk, surviving process restarts.
	PersistenceNative PersistenceMode = "native"
	// PersistenceBrowser keeps the session in process memory; the hosting
	// browser runtime owns durable storage.
	PersistenceBrowser PersistenceMode = "browser"
)

// StoredSession is the durable part of a signed-in session.
type StoredSession struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	RefreshToken string `json:"refresh_token"`
}

// SessionPersistence stores the session of an auth collaborator.
type SessionPersistence interface {
	// Load returns ErrNotFound when no session is stored.
	Load(ctx context.Context) (StoredSession, error)
	Save(ctx context.Context, session StoredSession) error
	Clear(ctx context.Context) error
}
