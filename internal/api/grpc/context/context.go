package context

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/metadata"

	"github.com/dtroode/fieldops/internal/model"
)

// Metadata keys the authenticate interceptor writes after validating the
// bearer token. They always overwrite what the caller sent.
const (
	userIDKey    string = "x-user-id"
	userEmailKey string = "x-user-email"
	expiresAtKey string = "x-token-expires-at"
)

// Manager stores validated access claims in incoming gRPC metadata.
type Manager struct{}

var _ model.ContextManager = (*Manager)(nil)

func NewManager() *Manager {
	return &Manager{}
}

// SetUserToContext returns a context whose incoming metadata carries claims.
func (m *Manager) SetUserToContext(ctx context.Context, claims model.AccessClaims) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		md = metadata.New(nil)
	} else {
		md = md.Copy()
	}

	md.Set(userIDKey, claims.UserID.String())
	md.Set(userEmailKey, claims.Email)
	md.Set(expiresAtKey, strconv.FormatInt(claims.ExpiresAt.Unix(), 10))

	return metadata.NewIncomingContext(ctx, md)
}

// GetUserFromContext reads claims set by SetUserToContext.
func (m *Manager) GetUserFromContext(ctx context.Context) (model.AccessClaims, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return model.AccessClaims{}, false
	}

	userID, err := uuid.Parse(first(md, userIDKey))
	if err != nil || userID == uuid.Nil {
		return model.AccessClaims{}, false
	}

	claims := model.AccessClaims{
		UserID: userID,
		Email:  first(md, userEmailKey),
	}
	if sec, err := strconv.ParseInt(first(md, expiresAtKey), 10, 64); err == nil {
		claims.ExpiresAt = time.Unix(sec, 0)
	}

	return claims, true
}

func first(md metadata.MD, key string) string {
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
