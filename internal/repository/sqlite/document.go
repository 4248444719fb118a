package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/fieldops/internal/logger"
	"github.com/dtroode/fieldops/internal/model"
	"github.com/dtroode/fieldops/internal/watch"
)

var _ model.DocumentStore = (*DocumentRepository)(nil)

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// nextSeq numbers every write so a collection's MAX(seq) moves on change.
const nextSeq = `(SELECT COALESCE(MAX(seq), 0) + 1 FROM documents)`

// DocumentRepository stores documents as JSON text. Subscriptions poll the
// collection's highest write sequence and re-run the query when it moves.
type DocumentRepository struct {
	db       *Connection
	logger   *logger.Logger
	interval time.Duration
}

func NewDocumentRepository(db *Connection, logger *logger.Logger, pollInterval time.Duration) *DocumentRepository {
	return &DocumentRepository{db: db, logger: logger, interval: pollInterval}
}

func (r *DocumentRepository) Subscribe(ctx context.Context, query model.Query, onSnapshot model.SnapshotFunc) (model.Unsubscribe, error) {
	if _, err := orderClause(query); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w := watch.New(
		watch.MaxColumn(r.db.DB, "documents", "seq", "collection = ?", query.Collection),
		watch.Options{
			Interval:    r.interval,
			FireOnStart: true,
			OnError: func(err error) {
				onSnapshot(nil, fmt.Errorf("subscription to %s interrupted: %w: %v", query.Collection, model.ErrUnavailable, err))
			},
		},
		r.logger.With("collection", query.Collection),
	)

	subCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.OnChange(subCtx, func() error {
			docs, err := r.Query(subCtx, query)
			if err != nil {
				return err
			}
			onSnapshot(docs, nil)
			return nil
		})
	}()

	return func() {
		cancel()
		<-done
		stats := w.Stats()
		r.logger.Debug("Document repository: subscription closed",
			"collection", query.Collection,
			"version", w.Version(),
			"checks", stats.Checks,
			"reloads", stats.Reloads,
			"errors", stats.Errors)
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

	query := `INSERT INTO documents (collection, id, fields, seq) VALUES (?, ?, ?, ` + nextSeq + `)`
	if _, err := r.db.exec(ctx, query, collection, id.String(), string(data)); err != nil {
		return "", fmt.Errorf("failed to add document: %w", err)
	}

	return id.String(), nil
}

func (r *DocumentRepository) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode document fields: %w", err)
	}

	query := `UPDATE documents SET fields = json_patch(fields, ?), seq = ` + nextSeq + `
        WHERE collection = ? AND id = ?`
	result, err := r.db.exec(ctx, query, string(data), collection, id)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count updated documents: %w", err)
	}
	if n == 0 {
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

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, fields FROM documents WHERE collection = ? ORDER BY `+order, q.Collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", mapError(err))
	}
	defer rows.Close()

	docs := []model.Document{}
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		fields, err := model.DecodeFields([]byte(data))
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

// orderClause orders by a top-level JSON field. SQLite sorts NULL (missing)
// first ascending and last descending.
func orderClause(q model.Query) (string, error) {
	if q.Collection == "" {
		return "", fmt.Errorf("collection is required")
	}
	if !fieldName.MatchString(q.OrderBy) {
		return "", fmt.Errorf("invalid order field %q", q.OrderBy)
	}

	field := `json_extract(fields, '$.` + q.OrderBy + `')`
	switch q.Direction {
	case model.Descending:
		return field + " DESC, id ASC", nil
	case model.Ascending, "":
		return field + " ASC, id ASC", nil
	default:
		return "", fmt.Errorf("invalid direction %q", q.Direction)
	}
}
