package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/fieldops/internal/logger"
	"github.com/dtroode/fieldops/internal/model"
)

var _ model.DocumentStore = (*DocumentRepository)(nil)

// changeChannel is the LISTEN/NOTIFY channel fed by the documents trigger.
// The payload is the collection name.
const changeChannel = "document_changes"

const (
	minReconnectDelay = 250 * time.Millisecond
	maxReconnectDelay = 10 * time.Second
)

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DocumentRepository is a document store over a jsonb table. Subscriptions
// hold one pooled connection in LISTEN mode and re-run the query on every
// notification for their collection.
type DocumentRepository struct {
	db     *Connection
	logger *logger.Logger
}

func NewDocumentRepository(db *Connection, logger *logger.Logger) *DocumentRepository {
	return &DocumentRepository{db: db, logger: logger}
}

func (r *DocumentRepository) Subscribe(ctx context.Context, query model.Query, onSnapshot model.SnapshotFunc) (model.Unsubscribe, error) {
	if _, err := orderClause(query); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		r.listen(subCtx, query, onSnapshot)
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

func (r *DocumentRepository) AddDocument(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate document id: %w", err)
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode document fields: %w", err)
	}

	const query = `INSERT INTO documents (collection, id, fields) VALUES ($1, $2, $3::jsonb)`
	if _, err := r.db.Exec(ctx, query, collection, id.String(), string(data)); err != nil {
		return "", fmt.Errorf("failed to add document: %w", mapError(err))
	}

	return id.String(), nil
}

func (r *DocumentRepository) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode document fields: %w", err)
	}

	const query = `
        UPDATE documents SET fields = fields || $3::jsonb, updated_at = NOW()
        WHERE collection = $1 AND id = $2
    `
	tag, err := r.db.Exec(ctx, query, collection, id, string(data))
	if err != nil {
		return fmt.Errorf("failed to update document: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s/%s: %w", collection, id, model.ErrNotFound)
	}

	return nil
}

// Query returns the ordered result set of q.
func (r *DocumentRepository) Query(ctx context.Context, q model.Query) ([]model.Document, error) {
	order, err := orderClause(q)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, fields FROM documents WHERE collection = $1 ORDER BY `+order,
		q.Collection, q.OrderBy)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", mapError(err))
	}
	defer rows.Close()

	docs := []model.Document{}
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		fields, err := model.DecodeFields(data)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", id, err)
		}
		docs = append(docs, model.Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", mapError(err))
	}

	return docs, nil
}

func (r *DocumentRepository) listen(ctx context.Context, q model.Query, onSnapshot model.SnapshotFunc) {
	delay := minReconnectDelay

	for {
		delivered, err := r.listenOnce(ctx, q, onSnapshot)
		if ctx.Err() != nil {
			return
		}
		if delivered {
			delay = minReconnectDelay
		}

		r.logger.Warn("Document repository: subscription interrupted",
			"collection", q.Collection,
			"retry_in", delay,
			"error", err.Error())
		onSnapshot(nil, fmt.Errorf("subscription to %s interrupted: %w: %v", q.Collection, model.ErrUnavailable, err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, maxReconnectDelay)
	}
}

// listenOnce runs one LISTEN session. It reports whether at least one
// snapshot was delivered before the session failed.
func (r *DocumentRepository) listenOnce(ctx context.Context, q model.Query, onSnapshot model.SnapshotFunc) (bool, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+changeChannel); err != nil {
		return false, fmt.Errorf("failed to listen: %w", err)
	}
	defer func() {
		if ctx.Err() == nil {
			_, _ = conn.Exec(context.Background(), "UNLISTEN "+changeChannel)
		}
	}()

	// LISTEN is active before the first read, so no change is missed.
	docs, err := r.Query(ctx, q)
	if err != nil {
		return false, err
	}
	onSnapshot(docs, nil)

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return true, fmt.Errorf("failed to wait for notification: %w", err)
		}
		if notification.Payload != q.Collection {
			continue
		}

		docs, err := r.Query(ctx, q)
		if err != nil {
			return true, err
		}
		onSnapshot(docs, nil)
	}
}

// orderClause builds the ORDER BY clause; the field name is bound as $2.
// jsonb compares numbers numerically. Missing fields sort as the smallest value.
func orderClause(q model.Query) (string, error) {
	if q.Collection == "" {
		return "", fmt.Errorf("collection is required")
	}
	if !fieldName.MatchString(q.OrderBy) {
		return "", fmt.Errorf("invalid order field %q", q.OrderBy)
	}

	switch q.Direction {
	case model.Descending:
		return "fields -> $2 DESC NULLS LAST, id ASC", nil
	case model.Ascending, "":
		return "fields -> $2 ASC NULLS FIRST, id ASC", nil
	default:
		return "", fmt.Errorf("invalid direction %q", q.Direction)
	}
}
