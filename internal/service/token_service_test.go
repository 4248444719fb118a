package service

import (
	"context"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/fieldops/internal/mocks"
	"github.com/dtroode/fieldops/internal/model"
	"github.com/dtroode/fieldops/internal/testutil"
)

func TestTokenService_Issue(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	exp := time.Now().Add(15 * time.Minute)

	manager := mocks.NewTokenManager(t)
	store := mocks.NewRefreshTokenStore(t)

	manager.On("GenerateAccessToken", userID, "a@hq.com").Return("access", exp, nil).Once()
	manager.On("GenerateRefreshToken", userID).Return("refresh", "jti-1", nil).Once()
	store.On("Create", ctx, mock.MatchedBy(func(rt model.RefreshToken) bool {
		h := sha256.Sum256([]byte("refresh"))
		return rt.JTI == "jti-1" && rt.UserID == userID && string(rt.TokenHash) == string(h[:]) && rt.RotatedFromJTI == nil
	})).Return(nil).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	tokens, err := svc.Issue(ctx, userID, "a@hq.com", "")
	require.NoError(t, err)
	assert.Equal(t, "access", tokens.AccessToken)
	assert.Equal(t, "refresh", tokens.RefreshToken)
	assert.Equal(t, exp, tokens.AccessExpiresAt)
	assert.Equal(t, "a@hq.com", tokens.Email)
}

func TestTokenService_Issue_RotatedFrom(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	manager := mocks.NewTokenManager(t)
	store := mocks.NewRefreshTokenStore(t)

	manager.On("GenerateAccessToken", userID, "a@hq.com").Return("access", time.Now(), nil).Once()
	manager.On("GenerateRefreshToken", userID).Return("refresh", "jti-2", nil).Once()
	store.On("Create", ctx, mock.MatchedBy(func(rt model.RefreshToken) bool {
		return rt.RotatedFromJTI != nil && *rt.RotatedFromJTI == "jti-1"
	})).Return(nil).Once()

	_, err := NewTokenService(manager, store, testutil.MakeNoopLogger()).Issue(ctx, userID, "a@hq.com", "jti-1")
	require.NoError(t, err)
}

func TestTokenService_Issue_ManagerError(t *testing.T) {
	userID := uuid.New()

	manager := mocks.NewTokenManager(t)
	store := mocks.NewRefreshTokenStore(t)

	manager.On("GenerateAccessToken", userID, "").Return("", time.Time{}, assert.AnError).Once()

	_, err := NewTokenService(manager, store, testutil.MakeNoopLogger()).Issue(context.Background(), userID, "", "")
	require.ErrorIs(t, err, assert.AnError)
}

func TestTokenService_Rotate(t *testing.T) {
	userID := uuid.New()
	presented := "refresh-old"
	h := sha256.Sum256([]byte(presented))
	other := sha256.Sum256([]byte("other"))
	now := time.Now()

	tests := []struct {
		name    string
		record  model.RefreshToken
		revoke  bool
		wantErr error
	}{
		{
			name:   "valid",
			record: model.RefreshToken{JTI: "jti", UserID: userID, TokenHash: h[:], ExpiresAt: now.Add(time.Hour)},
			revoke: true,
		},
		{
			name:    "revoked",
			record:  model.RefreshToken{JTI: "jti", UserID: userID, TokenHash: h[:], ExpiresAt: now.Add(time.Hour), RevokedAt: &now},
			wantErr: model.ErrTokenRevoked,
		},
		{
			name:    "expired",
			record:  model.RefreshToken{JTI: "jti", UserID: userID, TokenHash: h[:], ExpiresAt: now.Add(-time.Minute)},
			wantErr: model.ErrTokenExpired,
		},
		{
			name:    "mismatch",
			record:  model.RefreshToken{JTI: "jti", UserID: userID, TokenHash: other[:], ExpiresAt: now.Add(time.Hour)},
			wantErr: model.ErrTokenMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			manager := mocks.NewTokenManager(t)
			store := mocks.NewRefreshTokenStore(t)

			manager.On("ParseRefreshToken", presented).Return(userID, "jti", nil).Once()
			store.On("GetByJTI", ctx, "jti").Return(tt.record, nil).Once()
			if tt.revoke {
				store.On("RevokeByJTI", ctx, "jti").Return(nil).Once()
			}

			gotUser, gotJTI, err := NewTokenService(manager, store, testutil.MakeNoopLogger()).Rotate(ctx, presented)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, userID, gotUser)
			assert.Equal(t, "jti", gotJTI)
		})
	}
}

func TestTokenService_RevokeByToken(t *testing.T) {
	ctx := context.Background()
	manager := mocks.NewTokenManager(t)
	store := mocks.NewRefreshTokenStore(t)

	manager.On("ParseRefreshToken", "refresh").Return(uuid.New(), "jti", nil).Once()
	store.On("RevokeByJTI", ctx, "jti").Return(nil).Once()

	require.NoError(t, NewTokenService(manager, store, testutil.MakeNoopLogger()).RevokeByToken(ctx, "refresh"))
}

func TestTokenService_RevokeAllForUser_Error(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	manager := mocks.NewTokenManager(t)
	store := mocks.NewRefreshTokenStore(t)

	store.On("RevokeAllByUser", ctx, userID).Return(assert.AnError).Once()

	require.Error(t, NewTokenService(manager, store, testutil.MakeNoopLogger()).RevokeAllForUser(ctx, userID))
}

func TestTokenService_Authenticate(t *testing.T) {
	manager := mocks.NewTokenManager(t)
	store := mocks.NewRefreshTokenStore(t)

	claims := model.AccessClaims{UserID: uuid.New(), Email: "a@hq.com"}
	manager.On("ParseAccessToken", "access").Return(claims, nil).Once()

	got, err := NewTokenService(manager, store, testutil.MakeNoopLogger()).Authenticate("access")
	require.NoError(t, err)
	assert.Equal(t, claims, got)
}

func TestTokenService_Cleanup(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	manager := mocks.NewTokenManager(t)
	store := mocks.NewRefreshTokenStore(t)

	store.On("DeleteExpired", ctx, now).Return(int64(3), nil).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())
	svc.now = func() time.Time { return now }

	n, err := svc.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
