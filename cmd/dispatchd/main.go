package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc/reflection"

	grpcctx "github.com/dtroode/fieldops/internal/api/grpc/context"
	"github.com/dtroode/fieldops/internal/api/grpc/middleware"
	"github.com/dtroode/fieldops/internal/api/grpc/router"
	grpcServer "github.com/dtroode/fieldops/internal/api/grpc/server"
	"github.com/dtroode/fieldops/internal/api/web"
	"github.com/dtroode/fieldops/internal/config"
	"github.com/dtroode/fieldops/internal/logger"
	"github.com/dtroode/fieldops/internal/model"
	"github.com/dtroode/fieldops/internal/repository/postgres"
	"github.com/dtroode/fieldops/internal/repository/sqlite"
	"github.com/dtroode/fieldops/internal/server"
	"github.com/dtroode/fieldops/internal/service"
	"github.com/dtroode/fieldops/internal/store/memory"
	"github.com/dtroode/fieldops/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

// backend groups the stores selected by the database driver.
type backend struct {
	users     model.UserStore
	tokens    model.RefreshTokenStore
	documents model.DocumentStore
	close     func()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	stores, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize storage", "driver", cfg.Database.Driver, "error", err)
	}
	defer stores.close()

	tokenManager := token.NewJWT(cfg.JWT.Secret, "fieldops", cfg.JWT.AccessTTL)
	authService := service.NewAuth(stores.users, stores.tokens, tokenManager, logger)

	if cfg.Bootstrap.Email != "" {
		if _, err := authService.EnsureUser(ctx, cfg.Bootstrap.Email, cfg.Bootstrap.Password); err != nil {
			logger.Fatal("failed to create bootstrap user", "email", cfg.Bootstrap.Email, "error", err)
		}
	}

	taskFeed := service.NewTaskFeed(stores.documents, logger)
	taskGateway := service.NewTaskGateway(stores.documents, logger)

	grpcSrv := registerGRPCServer(logger, authService, stores.documents, cfg, fmt.Sprintf(":%s", cfg.GRPC.Port))

	webHandler := web.NewHandler(authService, authService, taskFeed, taskGateway, web.Options{
		CookieDomain:   cfg.HTTP.CookieDomain,
		SecureCookies:  cfg.HTTP.SecureCookies,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}, logger)
	httpSrv := server.NewHTTPServer(cfg.HTTP.Address, webHandler.Routes())

	sl := server.NewSecurityLayer(cfg.GRPC.EnableHTTPS, cfg.GRPC.CertFileName, cfg.GRPC.PrivateKeyFileName)

	var wg sync.WaitGroup
	for _, s := range []model.Server{grpcSrv, httpSrv} {
		wg.Add(1)
		go func(s model.Server) {
			defer wg.Done()
			logger.Info("Starting server on", "address", s.Address())
			if err := s.Start(sl); err != nil {
				logger.Error("failed to start server", "error", err, "address", s.Address())
				stop()
			}
		}(s)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		authService.Tokens().RunCleanup(ctx, cfg.JWT.CleanupInterval)
	}()

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", httpSrv.Address())
	}
	if err := grpcSrv.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", grpcSrv.Address())
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}

func openBackend(ctx context.Context, cfg *config.Config, logger *logger.Logger) (backend, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
		if err != nil {
			return backend{}, err
		}
		return backend{
			users:     postgres.NewUserRepository(db),
			tokens:    postgres.NewRefreshTokenRepository(db),
			documents: postgres.NewDocumentRepository(db, logger),
			close:     func() { _ = db.Close() },
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLite.Path, sqlite.WithMkdirAll())
		if err != nil {
			return backend{}, err
		}
		return backend{
			users:     sqlite.NewUserRepository(db),
			tokens:    sqlite.NewRefreshTokenRepository(db),
			documents: sqlite.NewDocumentRepository(db, logger, cfg.SQLite.PollInterval),
			close:     func() { _ = db.Close() },
		}, nil

	default:
		// Accounts still need SQL; an in-memory SQLite database keeps them.
		db, err := sqlite.Open(ctx, ":memory:")
		if err != nil {
			return backend{}, err
		}
		return backend{
			users:     sqlite.NewUserRepository(db),
			tokens:    sqlite.NewRefreshTokenRepository(db),
			documents: memory.New(logger),
			close:     func() { _ = db.Close() },
		}, nil
	}
}

func registerGRPCServer(
	logger *logger.Logger,
	authService *service.Auth,
	documents model.DocumentStore,
	cfg *config.Config,
	addr string,
) *grpcServer.GRPCServer {
	apiKey := middleware.NewAPIKey(cfg.Project.APIKey, cfg.Project.ID)
	r := router.New(authService, authService, documents, grpcctx.NewManager(), apiKey, logger)
	s := r.Register()

	reflection.Register(s)

	return grpcServer.NewGRPCServer(s, addr)
}
