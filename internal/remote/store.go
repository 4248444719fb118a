package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dtroode/fieldops/internal/api/grpc/rpc"
	"github.com/dtroode/fieldops/internal/logger"
	"github.com/dtroode/fieldops/internal/model"
)

var _ model.DocumentStore = (*Store)(nil)

const (
	defaultMinReconnectDelay = 250 * time.Millisecond
	defaultMaxReconnectDelay = 10 * time.Second
)

// TokenSource supplies the bearer token of document calls.
type TokenSource interface {
	AccessToken() (string, error)
}

// StoreOption configures Store.
type StoreOption func(*Store)

// WithReconnectDelay bounds the exponential backoff between subscription reconnects.
func WithReconnectDelay(minDelay, maxDelay time.Duration) StoreOption {
	return func(s *Store) {
		s.minDelay = minDelay
		s.maxDelay = maxDelay
	}
}

// Store is the document store collaborator backed by fieldops.Documents.
type Store struct {
	client *rpc.DocumentsClient
	tokens TokenSource
	logger *logger.Logger

	minDelay time.Duration
	maxDelay time.Duration
}

// NewStore creates new Store instance.
func NewStore(client *rpc.DocumentsClient, tokens TokenSource, logger *logger.Logger, opts ...StoreOption) *Store {
	s := &Store{
		client:   client,
		tokens:   tokens,
		logger:   logger,
		minDelay: defaultMinReconnectDelay,
		maxDelay: defaultMaxReconnectDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) authorize(ctx context.Context) (context.Context, error) {
	token, err := s.tokens.AccessToken()
	if err != nil {
		return nil, err
	}
	return withBearer(ctx, token), nil
}

// AddDocument creates a document and returns its id.
func (s *Store) AddDocument(ctx context.Context, collection string, fields map[string]any) (string, error) {
	ctx, err := s.authorize(ctx)
	if err != nil {
		return "", err
	}

	resp, err := s.client.Add(ctx, &rpc.AddRequest{Collection: collection, Fields: fields})
	if err != nil {
		return "", fmt.Errorf("failed to add document: %w", rpc.FromStatus(err, model.ErrPermissionDenied))
	}

	return resp.ID, nil
}

// UpdateDocument merges fields into an existing document.
func (s *Store) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) error {
	ctx, err := s.authorize(ctx)
	if err != nil {
		return err
	}

	err = s.client.Update(ctx, &rpc.UpdateRequest{Collection: collection, ID: id, Fields: fields})
	if err != nil {
		return fmt.Errorf("failed to update document: %w", rpc.FromStatus(err, model.ErrPermissionDenied))
	}

	return nil
}

// Subscribe streams query results. A dropped stream is reported as an
// ErrUnavailable delivery and reopened with exponential backoff; the first
// snapshot after reconnecting replaces whatever was lost.
func (s *Store) Subscribe(ctx context.Context, query model.Query, onSnapshot model.SnapshotFunc) (model.Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := s.tokens.AccessToken(); err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		s.stream(subCtx, query, onSnapshot)
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

func (s *Store) stream(ctx context.Context, query model.Query, onSnapshot model.SnapshotFunc) {
	delay := s.minDelay
	for {
		received, err := s.streamOnce(ctx, query, onSnapshot)
		if ctx.Err() != nil {
			return
		}
		if received {
			delay = s.minDelay
		}

		s.logger.Warn("Remote store: subscription interrupted",
			"collection", query.Collection,
			"retry_in", delay,
			"error", err.Error())
		onSnapshot(nil, err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, s.maxDelay)
	}
}

// streamOnce runs one stream until it fails and reports whether any message arrived.
func (s *Store) streamOnce(ctx context.Context, query model.Query, onSnapshot model.SnapshotFunc) (bool, error) {
	callCtx, err := s.authorize(ctx)
	if err != nil {
		return false, err
	}

	stream, err := s.client.Subscribe(callCtx, &rpc.SubscribeRequest{Query: query})
	if err != nil {
		return false, rpc.FromStatus(err, model.ErrPermissionDenied)
	}

	received := false
	for {
		snap, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return received, fmt.Errorf("%w: subscription stream ended", model.ErrUnavailable)
		}
		if err != nil {
			return received, rpc.FromStatus(err, model.ErrPermissionDenied)
		}
		received = true

		if ctx.Err() != nil {
			return received, ctx.Err()
		}
		if snap.Error != nil {
			onSnapshot(nil, rpc.FromStatus(snap.Error.Err(), model.ErrPermissionDenied))
			continue
		}
		onSnapshot(snap.Documents, nil)
	}
}
