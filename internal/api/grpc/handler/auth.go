package handler

import (
	"context"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/dtroode/fieldops/internal/api/grpc/rpc"
	"github.com/dtroode/fieldops/internal/logger"
	"github.com/dtroode/fieldops/internal/model"
)

var _ rpc.AuthServer = (*Auth)(nil)

// AuthService signs users in and manages their refresh tokens.
type AuthService interface {
	SignIn(ctx context.Context, email, password string) (model.AuthTokens, error)
	Refresh(ctx context.Context, refreshToken string) (model.AuthTokens, error)
	SignOut(ctx context.Context, refreshToken string) error
}

// Auth handles gRPC endpoints for authentication.
type Auth struct {
	authService AuthService
	logger      *logger.Logger
}

func NewAuth(authService AuthService, logger *logger.Logger) *Auth {
	return &Auth{
		authService: authService,
		logger:      logger,
	}
}

// SignIn exchanges email and password for a session.
func (h *Auth) SignIn(ctx context.Context, req *rpc.SignInRequest) (*rpc.Session, error) {
	h.logger.Debug("Auth handler: processing sign in request", "email", req.Email)

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password are required")
	}

	tokens, err := h.authService.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		h.logger.Error("Auth handler: sign in failed",
			"email", req.Email,
			"error", err.Error())
		return nil, handleError(err)
	}

	h.logger.Info("Auth handler: sign in completed",
		"user_id", tokens.UserID)

	return sessionFromTokens(tokens), nil
}

// Refresh exchanges a refresh token for a new session; the presented token is revoked.
func (h *Auth) Refresh(ctx context.Context, req *rpc.RefreshRequest) (*rpc.Session, error) {
	h.logger.Debug("Auth handler: processing token refresh request")

	if req.RefreshToken == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh token is required")
	}

	tokens, err := h.authService.Refresh(ctx, req.RefreshToken)
	if err != nil {
		h.logger.Error("Auth handler: token refresh failed",
			"error", err.Error())
		return nil, handleError(err)
	}

	h.logger.Info("Auth handler: token refresh successful",
		"user_id", tokens.UserID)

	return sessionFromTokens(tokens), nil
}

// SignOut revokes the refresh token of a session.
func (h *Auth) SignOut(ctx context.Context, req *rpc.SignOutRequest) (*emptypb.Empty, error) {
	h.logger.Debug("Auth handler: processing sign out request")

	if req.RefreshToken == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh token is required")
	}

	if err := h.authService.SignOut(ctx, req.RefreshToken); err != nil {
		h.logger.Error("Auth handler: sign out failed",
			"error", err.Error())
		return nil, handleError(err)
	}

	h.logger.Info("Auth handler: sign out successful")

	return &emptypb.Empty{}, nil
}

func sessionFromTokens(tokens model.AuthTokens) *rpc.Session {
	return &rpc.Session{
		UserID:       tokens.UserID.String(),
		Email:        tokens.Email,
		AccessToken:  tokens.AccessToken,
		ExpiresAt:    tokens.AccessExpiresAt,
		RefreshToken: tokens.RefreshToken,
	}
}
