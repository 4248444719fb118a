package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/fieldops/internal/model"
	"github.com/dtroode/fieldops/internal/testutil"
)

func TestOrderClause(t *testing.T) {
	tests := []struct {
		name    string
		query   model.Query
		want    string
		wantErr bool
	}{
		{name: "task query", query: model.TaskQuery(), want: "fields -> $2 DESC NULLS LAST, id ASC"},
		{name: "ascending", query: model.Query{Collection: "c", OrderBy: "n", Direction: model.Ascending}, want: "fields -> $2 ASC NULLS FIRST, id ASC"},
		{name: "default direction", query: model.Query{Collection: "c", OrderBy: "n"}, want: "fields -> $2 ASC NULLS FIRST, id ASC"},
		{name: "no collection", query: model.Query{OrderBy: "n"}, wantErr: true},
		{name: "injection", query: model.Query{Collection: "c", OrderBy: "n; DROP TABLE documents"}, wantErr: true},
		{name: "bad direction", query: model.Query{Collection: "c", OrderBy: "n", Direction: "sideways"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := orderClause(tt.query)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil))
	assert.ErrorIs(t, mapError(&pgconn.PgError{Code: uniqueViolation}), model.ErrAlreadyExists)
	assert.ErrorIs(t, mapError(context.DeadlineExceeded), model.ErrUnavailable)

	refused := &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
	assert.ErrorIs(t, mapError(fmt.Errorf("failed to connect: %w", refused)), model.ErrUnavailable)

	plain := errors.New("syntax error")
	assert.Equal(t, plain, mapError(plain))
}

func TestDocumentRepository_SubscribeRejectsBadQuery(t *testing.T) {
	r := NewDocumentRepository(&Connection{}, testutil.MakeNoopLogger())

	_, err := r.Subscribe(context.Background(), model.Query{Collection: "tasks", OrderBy: "bad field"}, func([]model.Document, error) {})
	require.Error(t, err)
}

func TestNewRepositories(t *testing.T) {
	db := &Connection{}

	assert.Equal(t, db, NewUserRepository(db).db)
	assert.Equal(t, db, NewRefreshTokenRepository(db).db)
	assert.Equal(t, db, NewDocumentRepository(db, testutil.MakeNoopLogger()).db)
}
