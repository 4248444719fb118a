package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dtroode/fieldops/internal/logger"
	"github.com/dtroode/fieldops/internal/model"
)

// Auth is the server side of the auth collaborator: email/password sign-in,
// access token validation and refresh token rotation.
type Auth struct {
	userStore    model.UserStore
	tokenService *TokenService
	logger       *logger.Logger
}

func NewAuth(
	userStore model.UserStore,
	refreshTokenStore model.RefreshTokenStore,
	tokenManager model.TokenManager,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		userStore:    userStore,
		tokenService: NewTokenService(tokenManager, refreshTokenStore, logger),
		logger:       logger,
	}
}

// Tokens exposes the underlying token service.
func (a *Auth) Tokens() *TokenService {
	return a.tokenService
}

// EnsureUser creates the user unless one with this email already exists.
func (a *Auth) EnsureUser(ctx context.Context, email, password string) (model.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return model.User{}, fmt.Errorf("email and password are required")
	}

	existing, err := a.userStore.GetByEmail(ctx, email)
	if err == nil {
		a.logger.Debug("Auth service: user already exists",
			"email", email)
		return existing, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		a.logger.Error("Auth service: failed to get user by email",
			"email", email,
			"error", err.Error())
		return model.User{}, fmt.Errorf("failed to get user by email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user, err := a.userStore.Create(ctx, model.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		a.logger.Error("Auth service: failed to create user",
			"email", email,
			"error", err.Error())
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	a.logger.Info("Auth service: user created",
		"email", email,
		"user_id", user.ID)

	return user, nil
}

// SignIn checks the password and issues a token pair. Unknown emails and bad
// passwords both return ErrInvalidCredentials.
func (a *Auth) SignIn(ctx context.Context, email, password string) (model.AuthTokens, error) {
	email = normalizeEmail(email)

	a.logger.Debug("Auth service: signing in",
		"email", email)

	user, err := a.userStore.GetByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		a.logger.Info("Auth service: unknown email",
			"email", email)
		return model.AuthTokens{}, model.ErrInvalidCredentials
	}
	if err != nil {
		a.logger.Error("Auth service: failed to get user by email",
			"email", email,
			"error", err.Error())
		return model.AuthTokens{}, fmt.Errorf("failed to get user by email: %w", err)
	}

	if user.DeletedAt != nil {
		return model.AuthTokens{}, model.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		a.logger.Info("Auth service: password mismatch",
			"email", email)
		return model.AuthTokens{}, model.ErrInvalidCredentials
	}

	tokens, err := a.tokenService.Issue(ctx, user.ID, user.Email, "")
	if err != nil {
		a.logger.Error("Auth service: failed to issue tokens",
			"email", email,
			"error", err.Error())
		return model.AuthTokens{}, fmt.Errorf("failed to issue tokens: %w", err)
	}

	a.logger.Info("Auth service: signed in",
		"email", email,
		"user_id", user.ID)

	return tokens, nil
}

// Refresh rotates the refresh token and issues a new pair. Rejected refresh
// tokens return ErrSessionExpired.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (model.AuthTokens, error) {
	userID, jti, err := a.tokenService.Rotate(ctx, refreshToken)
	if err != nil {
		a.logger.Info("Auth service: refresh rejected",
			"error", err.Error())
		if errors.Is(err, model.ErrUnavailable) {
			return model.AuthTokens{}, err
		}
		return model.AuthTokens{}, fmt.Errorf("%w: %v", model.ErrSessionExpired, err)
	}

	user, err := a.userStore.GetByID(ctx, userID)
	if err != nil {
		a.logger.Error("Auth service: failed to get user by id",
			"user_id", userID,
			"error", err.Error())
		if errors.Is(err, model.ErrNotFound) {
			return model.AuthTokens{}, model.ErrSessionExpired
		}
		return model.AuthTokens{}, fmt.Errorf("failed to get user by id: %w", err)
	}

	tokens, err := a.tokenService.Issue(ctx, user.ID, user.Email, jti)
	if err != nil {
		return model.AuthTokens{}, fmt.Errorf("failed to issue tokens: %w", err)
	}

	a.logger.Debug("Auth service: tokens refreshed",
		"user_id", user.ID)

	return tokens, nil
}

// SignOut revokes the refresh token.
func (a *Auth) SignOut(ctx context.Context, refreshToken string) error {
	if err := a.tokenService.RevokeByToken(ctx, refreshToken); err != nil {
		a.logger.Error("Auth service: failed to revoke refresh token",
			"error", err.Error())
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	a.logger.Info("Auth service: signed out")

	return nil
}

// Authenticate validates an access token.
func (a *Auth) Authenticate(token string) (model.AccessClaims, error) {
	return a.tokenService.Authenticate(token)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
