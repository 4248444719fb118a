package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dtroode/fieldops/internal/logger"
	"github.com/dtroode/fieldops/internal/model"
)

// FeedEvent is one delivery of a task feed: either a full snapshot or an error.
type FeedEvent struct {
	FeedID   uint64
	Snapshot model.Snapshot
	Err      *model.SubscriptionError
}

// FeedSink receives feed events. Calls for one feed never overlap. A sink
// must not call Close on its own feed and must not block indefinitely.
type FeedSink func(event FeedEvent)

// TaskFeed opens live subscriptions to the task collection.
type TaskFeed struct {
	store  model.DocumentStore
	logger *logger.Logger
	nextID atomic.Uint64
}

// NewTaskFeed creates new TaskFeed instance.
func NewTaskFeed(store model.DocumentStore, logger *logger.Logger) *TaskFeed {
	return &TaskFeed{
		store:  store,
		logger: logger,
	}
}

// Open subscribes to tasks ordered by creation time, newest first. It fails
// with ErrNoIdentity when identity is nil and never touches the store then.
func (f *TaskFeed) Open(ctx context.Context, identity *model.Identity, sink FeedSink) (*Feed, error) {
	if identity == nil {
		return nil, model.ErrNoIdentity
	}

	feed := &Feed{
		id:     f.nextID.Add(1),
		sink:   sink,
		logger: f.logger,
	}
	feed.snapshot.Store(&model.Snapshot{})

	f.logger.Debug("TaskFeed service: opening feed",
		"feed_id", feed.id,
		"user_id", identity.UserID)

	unsubscribe, err := f.store.Subscribe(ctx, model.TaskQuery(), feed.deliver)
	if err != nil {
		feed.mu.Lock()
		feed.closed = true
		feed.mu.Unlock()

		f.logger.Error("TaskFeed service: failed to open feed",
			"feed_id", feed.id,
			"error", err.Error())
		return nil, fmt.Errorf("failed to subscribe to tasks: %w", model.NewSubscriptionError(err))
	}

	feed.mu.Lock()
	feed.unsubscribe = unsubscribe
	feed.mu.Unlock()

	f.logger.Info("TaskFeed service: feed opened",
		"feed_id", feed.id,
		"user_id", identity.UserID)

	return feed, nil
}

// Close releases the feed. See Feed.Close.
func (f *TaskFeed) Close(feed *Feed) error {
	return feed.Close()
}

// Feed is an open task subscription handle.
type Feed struct {
	id     uint64
	sink   FeedSink
	logger *logger.Logger

	snapshot atomic.Pointer[model.Snapshot]

	// mu is held for the whole of each delivery, so Close waits for an
	// in-flight sink call and no delivery starts after it.
	mu          sync.Mutex
	closed      bool
	unsubscribe model.Unsubscribe
}

// ID returns the process-unique feed number.
func (f *Feed) ID() uint64 {
	return f.id
}

// Snapshot returns the last delivered snapshot, empty before the first one.
func (f *Feed) Snapshot() model.Snapshot {
	return f.snapshot.Load().Clone()
}

// Close releases the subscription. No sink call happens after Close returns.
// Closing an already closed feed returns ErrFeedClosed.
func (f *Feed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return model.ErrFeedClosed
	}
	f.closed = true
	unsubscribe := f.unsubscribe
	f.unsubscribe = nil
	f.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	f.logger.Info("TaskFeed service: feed closed",
		"feed_id", f.id)

	return nil
}

func (f *Feed) deliver(docs []model.Document, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}

	if err != nil {
		subErr := model.NewSubscriptionError(err)
		f.logger.Warn("TaskFeed service: subscription error",
			"feed_id", f.id,
			"reason", subErr.Reason,
			"error", err.Error())
		f.sink(FeedEvent{FeedID: f.id, Err: subErr})
		return
	}

	snapshot := make(model.Snapshot, 0, len(docs))
	for _, doc := range docs {
		task, convErr := model.TaskFromDocument(doc)
		if convErr != nil {
			f.logger.Warn("TaskFeed service: skipping malformed task",
				"feed_id", f.id,
				"error", convErr.Error())
			continue
		}
		snapshot = append(snapshot, task)
	}

	if !snapshot.IsSorted() {
		model.SortSnapshot(snapshot)
	}

	f.snapshot.Store(&snapshot)

	f.logger.Debug("TaskFeed service: snapshot delivered",
		"feed_id", f.id,
		"tasks", len(snapshot))

	f.sink(FeedEvent{FeedID: f.id, Snapshot: snapshot.Clone()})
}
