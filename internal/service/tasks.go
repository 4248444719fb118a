package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dtroode/fieldops/internal/logger"
	"github.com/dtroode/fieldops/internal/model"
)

// TaskGateway issues task writes against the document store. Results are
// observed through the task feed, never returned.
type TaskGateway struct {
	store  model.DocumentStore
	logger *logger.Logger
	now    func() time.Time

	mu            sync.Mutex
	lastCreatedAt int64
}

// GatewayOption configures a TaskGateway.
type GatewayOption func(*TaskGateway)

// WithClock replaces the wall clock used for createdAt.
func WithClock(now func() time.Time) GatewayOption {
	return func(g *TaskGateway) {
		g.now = now
	}
}

// NewTaskGateway creates new TaskGateway instance.
func NewTaskGateway(store model.DocumentStore, logger *logger.Logger, opts ...GatewayOption) *TaskGateway {
	g := &TaskGateway{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CreateTask dispatches a new PENDING task. Blank titles are rejected with a
// validation error before the store is called.
func (g *TaskGateway) CreateTask(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		g.logger.Debug("TaskGateway service: rejected blank title")
		return model.NewValidationError("task title is required")
	}

	createdAt := g.nextCreatedAt()

	g.logger.Debug("TaskGateway service: creating task",
		"title", title,
		"created_at", createdAt.UnixMilli())

	id, err := g.store.AddDocument(ctx, model.TasksCollection, model.NewTaskFields(title, createdAt))
	if err != nil {
		mutErr := model.NewMutationError(err)
		g.logger.Error("TaskGateway service: failed to create task",
			"title", title,
			"reason", mutErr.Reason,
			"error", err.Error())
		return mutErr
	}

	g.logger.Info("TaskGateway service: task created",
		"task_id", id)

	return nil
}

// CompleteTask sets the task status to COMPLETED whatever its current status.
func (g *TaskGateway) CompleteTask(ctx context.Context, id string) error {
	return g.setStatus(ctx, id, model.TaskStatusCompleted)
}

// StartTask sets the task status to IN_PROGRESS whatever its current status.
func (g *TaskGateway) StartTask(ctx context.Context, id string) error {
	return g.setStatus(ctx, id, model.TaskStatusInProgress)
}

func (g *TaskGateway) setStatus(ctx context.Context, id string, status model.TaskStatus) error {
	if strings.TrimSpace(id) == "" {
		return model.NewValidationError("task id is required")
	}

	g.logger.Debug("TaskGateway service: updating task status",
		"task_id", id,
		"status", status)

	err := g.store.UpdateDocument(ctx, model.TasksCollection, id, map[string]any{
		model.FieldStatus: string(status),
	})
	if err != nil {
		mutErr := model.NewMutationError(err)
		g.logger.Error("TaskGateway service: failed to update task status",
			"task_id", id,
			"status", status,
			"reason", mutErr.Reason,
			"error", err.Error())
		return mutErr
	}

	g.logger.Info("TaskGateway service: task status updated",
		"task_id", id,
		"status", status)

	return nil
}

// nextCreatedAt returns the current time at millisecond precision, bumped
// past the previous value so tasks from one gateway never share createdAt.
func (g *TaskGateway) nextCreatedAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms <= g.lastCreatedAt {
		ms = g.lastCreatedAt + 1
	}
	g.lastCreatedAt = ms

	return time.UnixMilli(ms)
}
