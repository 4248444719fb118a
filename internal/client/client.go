// Package client drives a task dispatch UI: it opens the task feed while an
// identity is present, closes it when the identity goes away, and publishes
// the resulting view.
package client

import (
	"context"
	"errors"
	"sync"

	"github.com/dtroode/fieldops/internal/logger"
	"github.com/dtroode/fieldops/internal/model"
	"github.com/dtroode/fieldops/internal/queue"
	"github.com/dtroode/fieldops/internal/service"
)

// IdentitySource reports identity changes and performs sign-in and sign-out.
type IdentitySource interface {
	ObserveIdentity(ctx context.Context) <-chan *model.Identity
	SignIn(ctx context.Context, email, password string) (model.Identity, error)
	SignOut(ctx context.Context) error
}

// FeedOpener opens task feeds.
type FeedOpener interface {
	Open(ctx context.Context, identity *model.Identity, sink service.FeedSink) (*service.Feed, error)
}

// TaskWriter issues task mutations.
type TaskWriter interface {
	CreateTask(ctx context.Context, title string) error
	StartTask(ctx context.Context, id string) error
	CompleteTask(ctx context.Context, id string) error
}

// View is what a UI renders.
type View struct {
	// Identity is nil when signed out.
	Identity *model.Identity
	// Tasks is the last snapshot of the open feed, empty while closed.
	Tasks model.Snapshot
	// Err is the last feed error; cleared by the next snapshot.
	Err error
	// Open reports whether a task feed is open.
	Open bool
	// Loaded reports whether the open feed has delivered a snapshot yet.
	Loaded bool
}

// Renderer receives every new view from the Run goroutine.
type Renderer func(View)

// Client is the per-process task dispatch state machine:
// CLOSED --identity--> OPEN --nil identity or Close--> CLOSED.
type Client struct {
	session IdentitySource
	feeds   FeedOpener
	tasks   TaskWriter
	logger  *logger.Logger
	render  Renderer

	viewMu sync.RWMutex
	view   View

	// Fields below are owned by the Run goroutine.
	feed       *service.Feed
	feedCancel context.CancelFunc
	generation uint64
	events     *queue.Queue[feedEnvelope]
}

// feedEnvelope tags a feed event with the generation of the feed that produced it.
type feedEnvelope struct {
	generation uint64
	event      service.FeedEvent
}

// New creates new Client instance. render may be nil.
func New(session IdentitySource, feeds FeedOpener, tasks TaskWriter, logger *logger.Logger, render Renderer) *Client {
	if render == nil {
		render = func(View) {}
	}
	return &Client{
		session: session,
		feeds:   feeds,
		tasks:   tasks,
		logger:  logger,
		render:  render,
		view:    View{Tasks: model.Snapshot{}},
		events:  queue.New[feedEnvelope](),
	}
}

// Run processes identity changes and feed events until ctx is done. All view
// changes happen on this goroutine. Any open feed is closed before Run returns.
func (c *Client) Run(ctx context.Context) error {
	identities := c.session.ObserveIdentity(ctx)

	c.logger.Debug("Client: running")

	for {
		select {
		case <-ctx.Done():
			c.stop()
			return ctx.Err()

		case identity, ok := <-identities:
			if !ok {
				c.stop()
				return ctx.Err()
			}
			c.handleIdentity(ctx, identity)

		case <-c.events.Ready():
			for {
				envelope, ok := c.events.TryPop()
				if !ok {
					break
				}
				c.handleFeedEvent(envelope)
			}
		}
	}
}

// View returns the latest view.
func (c *Client) View() View {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()

	v := c.view
	v.Identity = v.Identity.Clone()
	v.Tasks = v.Tasks.Clone()
	return v
}

// SignIn delegates to the session. The view changes once the identity is observed.
func (c *Client) SignIn(ctx context.Context, email, password string) error {
	_, err := c.session.SignIn(ctx, email, password)
	return err
}

// SignOut delegates to the session.
func (c *Client) SignOut(ctx context.Context) error {
	return c.session.SignOut(ctx)
}

// CreateTask dispatches a task. The new task shows up through the feed.
func (c *Client) CreateTask(ctx context.Context, title string) error {
	return c.tasks.CreateTask(ctx, title)
}

// StartTask marks a task in progress.
func (c *Client) StartTask(ctx context.Context, id string) error {
	return c.tasks.StartTask(ctx, id)
}

// CompleteTask marks a task complete.
func (c *Client) CompleteTask(ctx context.Context, id string) error {
	return c.tasks.CompleteTask(ctx, id)
}

func (c *Client) handleIdentity(ctx context.Context, identity *model.Identity) {
	current := c.View().Identity

	switch {
	case identity == nil:
		// The feed must be gone before the signed-out view is published.
		c.closeFeed()
		c.setView(View{Tasks: model.Snapshot{}})
		c.logger.Info("Client: signed out, feed closed")

	case c.feed != nil && current.SameUser(identity):
		c.updateView(func(v *View) { v.Identity = identity })
		c.logger.Debug("Client: identity refreshed",
			"user_id", identity.UserID)

	default:
		c.closeFeed()
		c.setView(View{Identity: identity, Tasks: model.Snapshot{}})
		c.openFeed(ctx, identity)
	}
}

func (c *Client) openFeed(ctx context.Context, identity *model.Identity) {
	c.generation++
	gen := c.generation

	feedCtx, cancel := context.WithCancel(ctx)
	sink := func(event service.FeedEvent) {
		if feedCtx.Err() != nil {
			return
		}
		c.events.Push(feedEnvelope{generation: gen, event: event})
	}

	feed, err := c.feeds.Open(feedCtx, identity, sink)
	if err != nil {
		cancel()
		c.logger.Error("Client: failed to open feed",
			"user_id", identity.UserID,
			"error", err.Error())
		c.updateView(func(v *View) {
			v.Err = err
			v.Open = false
		})
		return
	}

	c.feed = feed
	c.feedCancel = cancel
	c.updateView(func(v *View) { v.Open = true })

	c.logger.Info("Client: feed opened",
		"user_id", identity.UserID,
		"generation", gen)
}

// closeFeed releases the feed without rendering; callers publish the next view.
func (c *Client) closeFeed() {
	if c.feed == nil {
		return
	}

	c.feedCancel()
	if err := c.feed.Close(); err != nil && !errors.Is(err, model.ErrFeedClosed) {
		c.logger.Error("Client: failed to close feed",
			"error", err.Error())
	}

	c.feed = nil
	c.feedCancel = nil
}

// stop releases the feed when Run exits. The identity is unchanged, so the
// last snapshot may stay visible.
func (c *Client) stop() {
	if c.feed == nil {
		return
	}
	c.closeFeed()
	c.updateView(func(v *View) {
		v.Open = false
		v.Loaded = false
	})
}

func (c *Client) handleFeedEvent(envelope feedEnvelope) {
	event := envelope.event
	if c.feed == nil || envelope.generation != c.generation {
		c.logger.Debug("Client: dropped stale feed event",
			"feed_id", event.FeedID,
			"generation", envelope.generation)
		return
	}

	c.updateView(func(v *View) {
		if event.Err != nil {
			v.Err = event.Err
			return
		}
		v.Tasks = event.Snapshot
		v.Err = nil
		v.Loaded = true
	})
}

func (c *Client) setView(v View) {
	c.viewMu.Lock()
	c.view = v
	c.viewMu.Unlock()

	c.render(c.View())
}

func (c *Client) updateView(update func(v *View)) {
	c.viewMu.Lock()
	update(&c.view)
	c.viewMu.Unlock()

	c.render(c.View())
}
