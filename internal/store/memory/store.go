// Package memory is a push-driven DocumentStore held in process memory.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dtroode/fieldops/internal/logger"
	"github.com/dtroode/fieldops/internal/model"
)

var _ model.DocumentStore = (*Store)(nil)

// Store keeps collections in memory and pushes a full result set to every
// subscriber after each write. Each subscription is served by its own
// goroutine; writes that land while a delivery is in flight are coalesced
// into one follow-up delivery.
type Store struct {
	logger *logger.Logger

	mu          sync.Mutex
	collections map[string]map[string]map[string]any
	subs        map[uint64]*subscription
	nextSubID   uint64
	writeErr    error
}

// New creates new Store instance.
func New(logger *logger.Logger) *Store {
	return &Store{
		logger:      logger,
		collections: make(map[string]map[string]map[string]any),
		subs:        make(map[uint64]*subscription),
	}
}

type subscription struct {
	id         uint64
	query      model.Query
	onSnapshot model.SnapshotFunc

	dirty chan struct{}
	done  chan struct{}
	exit  chan struct{}

	mu         sync.Mutex
	pendingErr []error
}

// Subscribe delivers the current result set and then a new one after each
// write to the queried collection.
func (s *Store) Subscribe(ctx context.Context, query model.Query, onSnapshot model.SnapshotFunc) (model.Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if query.Collection == "" {
		return nil, fmt.Errorf("collection is required")
	}

	s.mu.Lock()
	s.nextSubID++
	sub := &subscription{
		id:         s.nextSubID,
		query:      query,
		onSnapshot: onSnapshot,
		dirty:      make(chan struct{}, 1),
		done:       make(chan struct{}),
		exit:       make(chan struct{}),
	}
	s.subs[sub.id] = sub
	s.mu.Unlock()

	sub.markDirty()
	go s.serve(sub)

	s.logger.Debug("Memory store: subscription added",
		"subscription_id", sub.id,
		"collection", query.Collection)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, sub.id)
			s.mu.Unlock()

			close(sub.done)
			<-sub.exit

			s.logger.Debug("Memory store: subscription removed",
				"subscription_id", sub.id)
		})
	}, nil
}

// AddDocument stores fields under a new UUIDv7 id.
func (s *Store) AddDocument(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate document id: %w", err)
	}

	s.mu.Lock()
	if s.writeErr != nil {
		err := s.writeErr
		s.mu.Unlock()
		return "", err
	}
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]map[string]any)
		s.collections[collection] = docs
	}
	docs[id.String()] = maps.Clone(fields)
	s.notifyLocked(collection)
	s.mu.Unlock()

	return id.String(), nil
}

// UpdateDocument merges fields into the document. ErrNotFound when absent.
func (s *Store) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeErr != nil {
		return s.writeErr
	}

	doc, ok := s.collections[collection][id]
	if !ok {
		return fmt.Errorf("document %s/%s: %w", collection, id, model.ErrNotFound)
	}
	maps.Copy(doc, fields)
	s.notifyLocked(collection)

	return nil
}

// FailWrites makes subsequent writes return err; nil restores normal operation.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	s.writeErr = err
	s.mu.Unlock()
}

// Interrupt delivers err to every subscriber of collection, followed by a
// fresh result set, the way a remote store reports a dropped connection.
func (s *Store) Interrupt(collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs {
		if sub.query.Collection != collection {
			continue
		}
		sub.mu.Lock()
		sub.pendingErr = append(sub.pendingErr, err)
		sub.mu.Unlock()
		sub.markDirty()
	}
}

// Subscribers returns the number of live subscriptions.
func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.subs)
}

func (s *Store) notifyLocked(collection string) {
	for _, sub := range s.subs {
		if sub.query.Collection == collection {
			sub.markDirty()
		}
	}
}

func (s *Store) serve(sub *subscription) {
	defer close(sub.exit)

	for {
		select {
		case <-sub.done:
			return
		case <-sub.dirty:
		}

		sub.mu.Lock()
		errs := sub.pendingErr
		sub.pendingErr = nil
		sub.mu.Unlock()

		for _, err := range errs {
			if sub.cancelled() {
				return
			}
			sub.onSnapshot(nil, err)
		}

		docs := s.query(sub.query)
		if sub.cancelled() {
			return
		}
		sub.onSnapshot(docs, nil)
	}
}

func (s *Store) query(q model.Query) []model.Document {
	s.mu.Lock()
	docs := make([]model.Document, 0, len(s.collections[q.Collection]))
	for id, fields := range s.collections[q.Collection] {
		docs = append(docs, model.Document{ID: id, Fields: maps.Clone(fields)})
	}
	s.mu.Unlock()

	SortDocuments(docs, q.OrderBy, q.Direction)

	return docs
}

func (sub *subscription) markDirty() {
	select {
	case sub.dirty <- struct{}{}:
	default:
	}
}

func (sub *subscription) cancelled() bool {
	select {
	case <-sub.done:
		return true
	default:
		return false
	}
}

// SortDocuments orders docs by the field, breaking ties by id ascending.
// Numbers compare numerically, everything else by its string form.
func SortDocuments(docs []model.Document, field string, dir model.Direction) {
	slices.SortStableFunc(docs, func(a, b model.Document) int {
		c := compareValues(a.Fields[field], b.Fields[field])
		if dir == model.Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func compareValues(a, b any) int {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	switch {
	case aNum && bNum:
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
