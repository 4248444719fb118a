package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/fieldops/internal/logger"
	"github.com/dtroode/fieldops/internal/model"
)

// TokenService issues, rotates and revokes token pairs. It composes the
// TokenManager and RefreshTokenStore.
type TokenService struct {
	manager model.TokenManager
	store   model.RefreshTokenStore
	logger  *logger.Logger
	now     func() time.Time
}

func NewTokenService(manager model.TokenManager, store model.RefreshTokenStore, logger *logger.Logger) *TokenService {
	return &TokenService{manager: manager, store: store, logger: logger, now: time.Now}
}

// Stored expiry of refresh tokens. Keep in sync with the token manager; the
// JWT claims are still checked at parse time.
const (
	refreshTTL = 30 * 24 * time.Hour
)

// Issue creates an access/refresh pair and persists the refresh token hash.
// rotatedFrom is the jti of the refresh token this pair replaces, if any.
func (s *TokenService) Issue(ctx context.Context, userID uuid.UUID, email string, rotatedFrom string) (model.AuthTokens, error) {
	access, expiresAt, err := s.manager.GenerateAccessToken(userID, email)
	if err != nil {
		return model.AuthTokens{}, fmt.Errorf("issue access: %w", err)
	}

	refresh, jti, err := s.manager.GenerateRefreshToken(userID)
	if err != nil {
		return model.AuthTokens{}, fmt.Errorf("issue refresh: %w", err)
	}

	now := s.now()
	rt := model.RefreshToken{
		ID:        uuid.New(),
		JTI:       jti,
		UserID:    userID,
		TokenHash: hashRefresh(refresh),
		IssuedAt:  now,
		ExpiresAt: now.Add(refreshTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if rotatedFrom != "" {
		rt.RotatedFromJTI = &rotatedFrom
	}

	if err := s.store.Create(ctx, rt); err != nil {
		return model.AuthTokens{}, fmt.Errorf("persist refresh: %w", err)
	}

	return model.AuthTokens{
		UserID:          userID,
		Email:           email,
		AccessToken:     access,
		AccessExpiresAt: expiresAt,
		RefreshToken:    refresh,
	}, nil
}

// Rotate validates the presented refresh token against its stored record and
// revokes it. The caller issues the replacement pair.
func (s *TokenService) Rotate(ctx context.Context, presentedRefresh string) (userID uuid.UUID, jti string, err error) {
	userID, jti, err = s.manager.ParseRefreshToken(presentedRefresh)
	if err != nil {
		return uuid.Nil, "", err
	}

	rt, err := s.store.GetByJTI(ctx, jti)
	if err != nil {
		return uuid.Nil, "", err
	}

	if err := validateRecord(rt, hashRefresh(presentedRefresh), s.now()); err != nil {
		return uuid.Nil, "", err
	}

	if err := s.store.RevokeByJTI(ctx, jti); err != nil {
		return uuid.Nil, "", fmt.Errorf("revoke old refresh: %w", err)
	}

	return userID, jti, nil
}

func (s *TokenService) RevokeByToken(ctx context.Context, presentedRefresh string) error {
	_, jti, err := s.manager.ParseRefreshToken(presentedRefresh)
	if err != nil {
		return err
	}
	return s.store.RevokeByJTI(ctx, jti)
}

func (s *TokenService) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	return s.store.RevokeAllByUser(ctx, userID)
}

// Authenticate validates an access token.
func (s *TokenService) Authenticate(token string) (model.AccessClaims, error) {
	return s.manager.ParseAccessToken(token)
}

// Cleanup deletes refresh tokens that expired before now.
func (s *TokenService) Cleanup(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired refresh tokens: %w", err)
	}

	if n > 0 {
		s.logger.Info("Token service: expired refresh tokens deleted",
			"count", n)
	}

	return n, nil
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (s *TokenService) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Cleanup(ctx); err != nil {
				s.logger.Error("Token service: cleanup failed",
					"error", err.Error())
			}
		}
	}
}

func hashRefresh(token string) []byte {
	h := sha256.Sum256([]byte(token))
	return h[:]
}

func validateRecord(rt model.RefreshToken, presentedHash []byte, now time.Time) error {
	if rt.RevokedAt != nil {
		return model.ErrTokenRevoked
	}
	if now.After(rt.ExpiresAt) {
		return model.ErrTokenExpired
	}
	if subtle.ConstantTimeCompare(rt.TokenHash, presentedHash) != 1 {
		return model.ErrTokenMismatch
	}
	return nil
}
