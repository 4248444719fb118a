package handler

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/dtroode/fieldops/internal/api/grpc/rpc"
	"github.com/dtroode/fieldops/internal/logger"
	"github.com/dtroode/fieldops/internal/model"
	"github.com/dtroode/fieldops/internal/queue"
)

var _ rpc.DocumentsServer = (*Documents)(nil)

// Documents exposes the server's document store to authenticated clients.
type Documents struct {
	store          model.DocumentStore
	contextManager model.ContextManager
	logger         *logger.Logger
}

func NewDocuments(store model.DocumentStore, contextManager model.ContextManager, logger *logger.Logger) *Documents {
	return &Documents{
		store:          store,
		contextManager: contextManager,
		logger:         logger,
	}
}

// Add stores a new document.
func (h *Documents) Add(ctx context.Context, req *rpc.AddRequest) (*rpc.AddResponse, error) {
	claims, err := h.caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.Collection == "" {
		return nil, status.Error(codes.InvalidArgument, "collection is required")
	}

	h.logger.Debug("Documents handler: processing add request",
		"user_id", claims.UserID,
		"collection", req.Collection)

	id, err := h.store.AddDocument(ctx, req.Collection, req.Fields)
	if err != nil {
		h.logger.Error("Documents handler: add failed",
			"user_id", claims.UserID,
			"collection", req.Collection,
			"error", err.Error())
		return nil, handleError(err)
	}

	h.logger.Info("Documents handler: document added",
		"user_id", claims.UserID,
		"collection", req.Collection,
		"document_id", id)

	return &rpc.AddResponse{ID: id}, nil
}

// Update merges fields into an existing document.
func (h *Documents) Update(ctx context.Context, req *rpc.UpdateRequest) (*emptypb.Empty, error) {
	claims, err := h.caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.Collection == "" || req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "collection and id are required")
	}

	h.logger.Debug("Documents handler: processing update request",
		"user_id", claims.UserID,
		"collection", req.Collection,
		"document_id", req.ID)

	if err := h.store.UpdateDocument(ctx, req.Collection, req.ID, req.Fields); err != nil {
		h.logger.Error("Documents handler: update failed",
			"user_id", claims.UserID,
			"collection", req.Collection,
			"document_id", req.ID,
			"error", err.Error())
		return nil, handleError(err)
	}

	h.logger.Info("Documents handler: document updated",
		"user_id", claims.UserID,
		"collection", req.Collection,
		"document_id", req.ID)

	return &emptypb.Empty{}, nil
}

// Subscribe streams the full result set of the query after every change
// until the client goes away. Store errors are sent in-band.
func (h *Documents) Subscribe(req *rpc.SubscribeRequest, stream rpc.DocumentsSubscribeServer) error {
	ctx := stream.Context()

	claims, err := h.caller(ctx)
	if err != nil {
		return err
	}
	if req.Query.Collection == "" || req.Query.OrderBy == "" {
		return status.Error(codes.InvalidArgument, "collection and order field are required")
	}

	deliveries := queue.New[*rpc.Snapshot]()
	unsubscribe, err := h.store.Subscribe(ctx, req.Query, func(docs []model.Document, err error) {
		if err != nil {
			deliveries.Push(&rpc.Snapshot{Error: rpc.StreamErrorFromStatus(handleError(err))})
			return
		}
		deliveries.Push(&rpc.Snapshot{Documents: docs})
	})
	if err != nil {
		h.logger.Error("Documents handler: subscribe failed",
			"user_id", claims.UserID,
			"collection", req.Query.Collection,
			"error", err.Error())
		return handleError(err)
	}
	defer unsubscribe()

	h.logger.Info("Documents handler: subscription opened",
		"user_id", claims.UserID,
		"collection", req.Query.Collection)

	for {
		msg, ok := deliveries.Pop(ctx)
		if !ok {
			h.logger.Info("Documents handler: subscription closed",
				"user_id", claims.UserID,
				"collection", req.Query.Collection)
			return nil
		}
		if err := stream.Send(msg); err != nil {
			h.logger.Error("Documents handler: send failed",
				"user_id", claims.UserID,
				"error", err.Error())
			return err
		}
	}
}

func (h *Documents) caller(ctx context.Context) (model.AccessClaims, error) {
	claims, ok := h.contextManager.GetUserFromContext(ctx)
	if !ok {
		return model.AccessClaims{}, status.Error(codes.Unauthenticated, "unauthenticated")
	}
	return claims, nil
}
