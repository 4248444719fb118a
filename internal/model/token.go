package model

import (
	"time"

	"github.com/google/uuid"
)

// AccessClaims is the identity carried by a validated access token.
type AccessClaims struct {
	UserID    uuid.UUID
	Email     string
	ExpiresAt time.Time
}

// TokenManager generates and validates access/refresh tokens.
type TokenManager interface {
	GenerateAccessToken(userID uuid.UUID, email string) (token string, expiresAt time.Time, err error)
	GenerateRefreshToken(userID uuid.UUID) (token string, jti string, err error)
	ParseAccessToken(token string) (AccessClaims, error)
	ParseRefreshToken(token string) (userID uuid.UUID, jti string, err error)
}

// AuthTokens is the result of a successful sign-in or refresh.
type AuthTokens struct {
	UserID          uuid.UUID
	Email           string
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshToken    string
}
