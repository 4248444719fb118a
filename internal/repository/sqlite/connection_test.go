package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/fieldops/internal/model"
)

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fieldops.db")

	conn, err := Open(context.Background(), path, WithMkdirAll(), WithBusyTimeout(500), WithSynchronous("FULL"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	var mode string
	require.NoError(t, conn.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var n int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM documents").Scan(&n))
	assert.Zero(t, n)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldops.db")

	conn, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	conn, err = Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, conn.Close())
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil))
	assert.ErrorIs(t, mapError(context.DeadlineExceeded), model.ErrUnavailable)

	plain := errors.New("no such table")
	assert.Equal(t, plain, mapError(plain))
}
