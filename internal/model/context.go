package model

import "context"

type ContextManager interface {
	SetUserToContext(ctx context.Context, claims AccessClaims) context.Context
	GetUserFromContext(ctx context.Context) (AccessClaims, bool)
}
