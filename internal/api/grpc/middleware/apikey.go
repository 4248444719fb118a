package middleware

import (
	"context"
	"crypto/subtle"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Project identification headers every client sends.
const (
	APIKeyHeader    = "x-api-key"
	ProjectIDHeader = "x-project-id"
)

// APIKey admits calls made for the configured project with its API key.
type APIKey struct {
	apiKey    string
	projectID string
}

func NewAPIKey(apiKey, projectID string) *APIKey {
	return &APIKey{apiKey: apiKey, projectID: projectID}
}

// AuthFunc checks the project headers.
func (m *APIKey) AuthFunc(ctx context.Context) (context.Context, error) {
	md, _ := metadata.FromIncomingContext(ctx)

	key := md.Get(APIKeyHeader)
	if len(key) == 0 || subtle.ConstantTimeCompare([]byte(key[0]), []byte(m.apiKey)) != 1 {
		return nil, status.Error(codes.Unauthenticated, "invalid api key")
	}

	project := md.Get(ProjectIDHeader)
	if len(project) == 0 || project[0] != m.projectID {
		return nil, status.Error(codes.PermissionDenied, "unknown project")
	}

	return ctx, nil
}
