// Package remote implements the auth and document collaborators of dispatch
// clients over the fieldops gRPC services.
package remote

import (
	"context"
	"crypto/tls"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/dtroode/fieldops/internal/api/grpc/middleware"
	"github.com/dtroode/fieldops/internal/config"
)

// Project identifies the deployment a client talks to.
type Project struct {
	APIKey string
	ID     string
}

func (p Project) outgoing(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx,
		middleware.APIKeyHeader, p.APIKey,
		middleware.ProjectIDHeader, p.ID)
}

// UnaryInterceptor attaches the project credentials to unary calls.
func (p Project) UnaryInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(p.outgoing(ctx), method, req, reply, cc, opts...)
	}
}

// StreamInterceptor attaches the project credentials to streaming calls.
func (p Project) StreamInterceptor() grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		return streamer(p.outgoing(ctx), desc, cc, method, opts...)
	}
}

// Dial creates a client connection to the dispatch server described by cfg.
func Dial(cfg config.Dispatch, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	transport := insecure.NewCredentials()
	if cfg.UseTLS {
		transport = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	project := Project{APIKey: cfg.APIKey, ID: cfg.ProjectID}
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(transport),
		grpc.WithChainUnaryInterceptor(project.UnaryInterceptor()),
		grpc.WithChainStreamInterceptor(project.StreamInterceptor()),
	}, opts...)

	conn, err := grpc.NewClient(cfg.Endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", cfg.Endpoint, err)
	}
	return conn, nil
}

func withBearer(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}
