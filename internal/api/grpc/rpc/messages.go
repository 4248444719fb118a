package rpc

import (
	"time"

	"github.com/dtroode/fieldops/internal/model"
)

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type SignOutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Session is returned by SignIn and Refresh.
type Session struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	RefreshToken string    `json:"refresh_token"`
}

type AddRequest struct {
	Collection string         `json:"collection"`
	Fields     map[string]any `json:"fields"`
}

type AddResponse struct {
	ID string `json:"id"`
}

type UpdateRequest struct {
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Fields     map[string]any `json:"fields"`
}

type SubscribeRequest struct {
	Query model.Query `json:"query"`
}

// Snapshot is one delivery of a subscription: the full result set, or the
// error the store reported. The stream stays open after an error.
type Snapshot struct {
	Documents []model.Document `json:"documents,omitempty"`
	Error     *StreamError     `json:"error,omitempty"`
}

// StreamError carries a gRPC status inside a Snapshot.
type StreamError struct {
	Code    uint32 `json:"code"`
	Message string `json:"message"`
}
