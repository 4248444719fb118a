package router

import (
	"context"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"google.golang.org/grpc"

	"github.com/dtroode/fieldops/internal/api/grpc/handler"
	"github.com/dtroode/fieldops/internal/api/grpc/middleware"
	"github.com/dtroode/fieldops/internal/api/grpc/rpc"
	"github.com/dtroode/fieldops/internal/logger"
	"github.com/dtroode/fieldops/internal/model"
)

// Router wires the fieldops gRPC services and their interceptors.
type Router struct {
	authService    handler.AuthService
	tokenService   middleware.TokenService
	store          model.DocumentStore
	contextManager model.ContextManager
	apiKey         *middleware.APIKey
	logger         *logger.Logger
}

func New(
	authService handler.AuthService,
	tokenService middleware.TokenService,
	store model.DocumentStore,
	contextManager model.ContextManager,
	apiKey *middleware.APIKey,
	logger *logger.Logger,
) *Router {
	return &Router{
		authService:    authService,
		tokenService:   tokenService,
		store:          store,
		contextManager: contextManager,
		apiKey:         apiKey,
		logger:         logger,
	}
}

// requiresBearer matches every method outside the Auth service.
func requiresBearer(_ context.Context, c interceptors.CallMeta) bool {
	return !strings.HasPrefix(c.FullMethod(), "/"+rpc.AuthServiceName+"/")
}

// Register builds the gRPC server. Every call is logged and API-key
// checked; Documents calls also need a bearer access token.
func (r *Router) Register(opts ...grpc.ServerOption) *grpc.Server {
	logging := middleware.NewLogging(r.logger)
	authenticate := middleware.NewAuthenticate(r.tokenService, r.contextManager, r.logger)

	opts = append(opts,
		grpc.ChainUnaryInterceptor(
			logging.HandleGRPC,
			auth.UnaryServerInterceptor(r.apiKey.AuthFunc),
			selector.UnaryServerInterceptor(
				auth.UnaryServerInterceptor(authenticate.AuthFunc),
				selector.MatchFunc(requiresBearer),
			),
		),
		grpc.ChainStreamInterceptor(
			logging.HandleStream,
			auth.StreamServerInterceptor(r.apiKey.AuthFunc),
			selector.StreamServerInterceptor(
				auth.StreamServerInterceptor(authenticate.AuthFunc),
				selector.MatchFunc(requiresBearer),
			),
		),
	)

	s := grpc.NewServer(opts...)
	r.registerAuthRoutes(s)
	r.registerDocumentRoutes(s)

	return s
}

func (r *Router) registerAuthRoutes(server *grpc.Server) {
	rpc.RegisterAuthServer(server, handler.NewAuth(r.authService, r.logger))
}

func (r *Router) registerDocumentRoutes(server *grpc.Server) {
	rpc.RegisterDocumentsServer(server, handler.NewDocuments(r.store, r.contextManager, r.logger))
}
