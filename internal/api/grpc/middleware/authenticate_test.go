package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dtroode/fieldops/internal/mocks"
	"github.com/dtroode/fieldops/internal/model"
	"github.com/dtroode/fieldops/internal/testutil"
)

func TestAuthenticate_AuthFunc(t *testing.T) {
	t.Parallel()

	claims := model.AccessClaims{UserID: uuid.New(), Email: "tech@example.com"}

	tests := []struct {
		name         string
		mdAuthHeader string
		callsService bool
		svcClaims    model.AccessClaims
		svcErr       error
		wantGRPCCode codes.Code
		wantErr      bool
	}{
		{
			name:         "missing authorization header",
			wantGRPCCode: codes.Unauthenticated,
			wantErr:      true,
		},
		{
			name:         "wrong scheme",
			mdAuthHeader: "Basic dXNlcjpwdw==",
			wantGRPCCode: codes.Unauthenticated,
			wantErr:      true,
		},
		{
			name:         "invalid token",
			mdAuthHeader: "Bearer invalid",
			callsService: true,
			svcErr:       errors.New("signature is invalid"),
			wantGRPCCode: codes.Unauthenticated,
			wantErr:      true,
		},
		{
			name:         "expired token",
			mdAuthHeader: "Bearer expired",
			callsService: true,
			svcErr:       model.ErrSessionExpired,
			wantGRPCCode: codes.Unauthenticated,
			wantErr:      true,
		},
		{
			name:         "valid token",
			mdAuthHeader: "Bearer token",
			callsService: true,
			svcClaims:    claims,
			wantGRPCCode: codes.OK,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cm := mocks.NewContextManager(t)
			svc := mocks.NewTokenService(t)
			if tt.callsService {
				svc.On("Authenticate", mock.AnythingOfType("string")).Return(tt.svcClaims, tt.svcErr)
			}
			if !tt.wantErr {
				cm.On("SetUserToContext", mock.Anything, tt.svcClaims).Return(context.Background())
			}
			m := NewAuthenticate(svc, cm, testutil.MakeNoopLogger())

			ctx := context.Background()
			if tt.mdAuthHeader != "" {
				ctx = metadata.NewIncomingContext(ctx, metadata.Pairs("authorization", tt.mdAuthHeader))
			}

			newCtx, err := m.AuthFunc(ctx)

			if tt.wantErr {
				assert.Error(t, err)
				st, ok := status.FromError(err)
				assert.True(t, ok)
				assert.Equal(t, tt.wantGRPCCode, st.Code())
				assert.Nil(t, newCtx)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, newCtx)
			}
		})
	}
}

func TestAPIKey_AuthFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		md       metadata.MD
		wantCode codes.Code
	}{
		{name: "no metadata", md: nil, wantCode: codes.Unauthenticated},
		{name: "wrong key", md: metadata.Pairs(APIKeyHeader, "nope", ProjectIDHeader, "proj"), wantCode: codes.Unauthenticated},
		{name: "missing project", md: metadata.Pairs(APIKeyHeader, "key"), wantCode: codes.PermissionDenied},
		{name: "wrong project", md: metadata.Pairs(APIKeyHeader, "key", ProjectIDHeader, "other"), wantCode: codes.PermissionDenied},
		{name: "valid", md: metadata.Pairs(APIKeyHeader, "key", ProjectIDHeader, "proj"), wantCode: codes.OK},
	}

	m := NewAPIKey("key", "proj")
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			if tt.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tt.md)
			}

			got, err := m.AuthFunc(ctx)
			if tt.wantCode == codes.OK {
				assert.NoError(t, err)
				assert.Equal(t, ctx, got)
				return
			}
			assert.Equal(t, tt.wantCode, status.Code(err))
		})
	}
}
