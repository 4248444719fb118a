package main

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"

	"github.com/dtroode/fieldops/internal/api/grpc/rpc"
	"github.com/dtroode/fieldops/internal/client"
	"github.com/dtroode/fieldops/internal/config"
	"github.com/dtroode/fieldops/internal/logger"
	"github.com/dtroode/fieldops/internal/model"
	"github.com/dtroode/fieldops/internal/persistence"
	"github.com/dtroode/fieldops/internal/queue"
	"github.com/dtroode/fieldops/internal/remote"
	"github.com/dtroode/fieldops/internal/service"
)

var errNotSignedIn = errors.New("not signed in, run dispatchctl login")

// app wires the remote collaborators into the session, feed and gateway
// services and the client state machine.
type app struct {
	cfg    *config.ClientConfig
	logger *logger.Logger

	conn    *grpc.ClientConn
	auth    *remote.Auth
	session *service.Session
	client  *client.Client
	views   *queue.Queue[client.View]
}

func newApp(cfg *config.ClientConfig, logger *logger.Logger) (*app, error) {
	mode, err := cfg.PersistenceMode()
	if err != nil {
		return nil, err
	}
	sessions, err := persistence.New(mode, cfg.Dispatch.SessionFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	conn, err := remote.Dial(cfg.Dispatch)
	if err != nil {
		return nil, err
	}

	auth := remote.NewAuth(rpc.NewAuthClient(conn), sessions, logger,
		remote.WithRequestTimeout(cfg.Dispatch.RequestTimeout))
	documents := remote.NewStore(rpc.NewDocumentsClient(conn), auth, logger)

	session := service.NewSession(auth, logger)
	views := queue.New[client.View]()

	return &app{
		cfg:     cfg,
		logger:  logger,
		conn:    conn,
		auth:    auth,
		session: session,
		client: client.New(
			session,
			service.NewTaskFeed(documents, logger),
			service.NewTaskGateway(documents, logger),
			logger,
			views.Push,
		),
		views: views,
	}, nil
}

func (a *app) Close() {
	a.auth.Close()
	_ = a.conn.Close()
}

// restore resumes the persisted session and returns the identity it yields.
func (a *app) restore(ctx context.Context) (*model.Identity, error) {
	if err := a.auth.Restore(ctx); err != nil {
		return nil, err
	}

	observeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	select {
	case identity := <-a.session.ObserveIdentity(observeCtx):
		return identity, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// requireIdentity is restore for commands that need a signed-in user.
func (a *app) requireIdentity(ctx context.Context) (*model.Identity, error) {
	identity, err := a.restore(ctx)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, errNotSignedIn
	}
	return identity, nil
}

// run starts the client state machine and returns a function that stops it.
func (a *app) run(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := a.client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Debug("dispatchctl: client stopped", "error", err.Error())
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// nextView waits for the next rendered view.
func (a *app) nextView(ctx context.Context) (client.View, error) {
	v, ok := a.views.Pop(ctx)
	if !ok {
		return client.View{}, ctx.Err()
	}
	return v, nil
}
