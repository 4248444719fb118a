package handler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/fieldops/internal/api/grpc/rpc"
	"github.com/dtroode/fieldops/internal/mocks"
	"github.com/dtroode/fieldops/internal/model"
	"github.com/dtroode/fieldops/internal/testutil"
)

func testTokens() model.AuthTokens {
	return model.AuthTokens{
		UserID:          uuid.New(),
		Email:           "tech@example.com",
		AccessToken:     "acc",
		AccessExpiresAt: time.Unix(1718000000, 0),
		RefreshToken:    "ref",
	}
}

func TestAuth_SignIn(t *testing.T) {
	t.Parallel()

	svc := mocks.NewAuthService(t)
	tokens := testTokens()
	svc.On("SignIn", mock.Anything, "tech@example.com", "pw").Return(tokens, nil)

	h := NewAuth(svc, testutil.MakeNoopLogger())
	out, err := h.SignIn(context.Background(), &rpc.SignInRequest{Email: "tech@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, tokens.UserID.String(), out.UserID)
	assert.Equal(t, "acc", out.AccessToken)
	assert.Equal(t, "ref", out.RefreshToken)
	assert.True(t, tokens.AccessExpiresAt.Equal(out.ExpiresAt))
}

func TestAuth_SignIn_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		req      *rpc.SignInRequest
		svcErr   error
		wantCode codes.Code
	}{
		{name: "missing email", req: &rpc.SignInRequest{Password: "pw"}, wantCode: codes.InvalidArgument},
		{name: "missing password", req: &rpc.SignInRequest{Email: "a@b.c"}, wantCode: codes.InvalidArgument},
		{name: "bad credentials", req: &rpc.SignInRequest{Email: "a@b.c", Password: "pw"}, svcErr: fmt.Errorf("failed to sign in: %w", model.ErrInvalidCredentials), wantCode: codes.Unauthenticated},
		{name: "store down", req: &rpc.SignInRequest{Email: "a@b.c", Password: "pw"}, svcErr: model.ErrUnavailable, wantCode: codes.Unavailable},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := mocks.NewAuthService(t)
			if tt.svcErr != nil {
				svc.On("SignIn", mock.Anything, tt.req.Email, tt.req.Password).Return(model.AuthTokens{}, tt.svcErr)
			}

			h := NewAuth(svc, testutil.MakeNoopLogger())
			out, err := h.SignIn(context.Background(), tt.req)
			assert.Nil(t, out)
			assert.Equal(t, tt.wantCode, status.Code(err))
		})
	}
}

func TestAuth_Refresh(t *testing.T) {
	t.Parallel()

	svc := mocks.NewAuthService(t)
	tokens := testTokens()
	svc.On("Refresh", mock.Anything, "old").Return(tokens, nil)
	svc.On("Refresh", mock.Anything, "revoked").Return(model.AuthTokens{}, fmt.Errorf("failed to refresh: %w", model.ErrSessionExpired))

	h := NewAuth(svc, testutil.MakeNoopLogger())

	out, err := h.Refresh(context.Background(), &rpc.RefreshRequest{RefreshToken: "old"})
	require.NoError(t, err)
	assert.Equal(t, "ref", out.RefreshToken)

	_, err = h.Refresh(context.Background(), &rpc.RefreshRequest{RefreshToken: "revoked"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = h.Refresh(context.Background(), &rpc.RefreshRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestAuth_SignOut(t *testing.T) {
	t.Parallel()

	svc := mocks.NewAuthService(t)
	svc.On("SignOut", mock.Anything, "ref").Return(nil)
	svc.On("SignOut", mock.Anything, "broken").Return(assert.AnError)

	h := NewAuth(svc, testutil.MakeNoopLogger())

	out, err := h.SignOut(context.Background(), &rpc.SignOutRequest{RefreshToken: "ref"})
	require.NoError(t, err)
	assert.NotNil(t, out)

	_, err = h.SignOut(context.Background(), &rpc.SignOutRequest{RefreshToken: "broken"})
	assert.Equal(t, codes.Internal, status.Code(err))

	_, err = h.SignOut(context.Background(), &rpc.SignOutRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
