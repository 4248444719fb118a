package watch

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/dtroode/fieldops/internal/testutil"
)

func counter() (*atomic.Int64, Detector) {
	v := &atomic.Int64{}
	return v, func(context.Context) (int64, error) { return v.Load(), nil }
}

func start(t *testing.T, w *Watcher, action func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.OnChange(ctx, action)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestOnChange_FiresOnVersionChange(t *testing.T) {
	version, detect := counter()
	var fired atomic.Int32

	w := New(detect, Options{Interval: 10 * time.Millisecond}, testutil.MakeNoopLogger())
	start(t, w, func() error {
		fired.Add(1)
		return nil
	})

	require.Eventually(t, func() bool { return w.Version() == 0 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, fired.Load())

	version.Store(1)
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)

	version.Store(2)
	require.Eventually(t, func() bool { return fired.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 2, w.Version())

	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 2, fired.Load())
}

func TestOnChange_FireOnStart(t *testing.T) {
	_, detect := counter()
	var fired atomic.Int32

	w := New(detect, Options{Interval: 10 * time.Millisecond, FireOnStart: true}, testutil.MakeNoopLogger())
	start(t, w, func() error {
		fired.Add(1)
		return nil
	})

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, fired.Load())
}

func TestOnChange_Debounce(t *testing.T) {
	version, detect := counter()
	var fired atomic.Int32

	w := New(detect, Options{Interval: 10 * time.Millisecond, Debounce: 150 * time.Millisecond}, testutil.MakeNoopLogger())
	start(t, w, func() error {
		fired.Add(1)
		return nil
	})

	require.Eventually(t, func() bool { return w.Version() == 0 }, time.Second, 5*time.Millisecond)
	for i := int64(1); i <= 5; i++ {
		version.Store(i)
		time.Sleep(15 * time.Millisecond)
	}
	assert.Zero(t, fired.Load())

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 5, w.Version())
}

func TestOnChange_ErrorDoesNotAdvanceVersion(t *testing.T) {
	version, detect := counter()
	var calls atomic.Int32
	var reported atomic.Int32
	failure := errors.New("query failed")

	w := New(detect, Options{
		Interval: 10 * time.Millisecond,
		OnError:  func(error) { reported.Add(1) },
	}, testutil.MakeNoopLogger())
	start(t, w, func() error {
		if calls.Add(1) == 1 {
			return failure
		}
		return nil
	})

	require.Eventually(t, func() bool { return w.Version() == 0 }, time.Second, 5*time.Millisecond)
	version.Store(1)

	require.Eventually(t, func() bool { return w.Version() == 1 }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
	assert.EqualValues(t, 1, reported.Load())
	assert.EqualValues(t, 1, w.Stats().Errors)
}

func TestOnChange_DetectorError(t *testing.T) {
	failure := errors.New("database is locked")
	errs := make(chan error, 64)

	w := New(func(context.Context) (int64, error) { return 0, failure }, Options{
		Interval: 10 * time.Millisecond,
		OnError: func(err error) {
			select {
			case errs <- err:
			default:
			}
		},
	}, testutil.MakeNoopLogger())
	start(t, w, func() error { return nil })

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, failure)
	case <-time.After(time.Second):
		t.Fatal("detector error not reported")
	}
	assert.EqualValues(t, noVersion, w.Version())
}

func TestStats(t *testing.T) {
	version, detect := counter()

	w := New(detect, Options{Interval: 10 * time.Millisecond}, testutil.MakeNoopLogger())
	start(t, w, func() error { return nil })

	require.Eventually(t, func() bool { return w.Version() == 0 }, time.Second, 5*time.Millisecond)
	version.Store(1)
	require.Eventually(t, func() bool { return w.Version() == 1 }, time.Second, 5*time.Millisecond)

	s := w.Stats()
	assert.Positive(t, s.Checks)
	assert.EqualValues(t, 1, s.ChangesDetected)
	assert.EqualValues(t, 1, s.Reloads)
}

func TestMaxColumn(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE items (kind TEXT, seq INTEGER)`)
	require.NoError(t, err)

	ctx := context.Background()
	all := MaxColumn(db, "items", "seq", "")
	kind := MaxColumn(db, "items", "seq", "kind = ?", "a")

	v, err := all(ctx)
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = db.Exec(`INSERT INTO items (kind, seq) VALUES ('a', 3), ('b', 7)`)
	require.NoError(t, err)

	v, err = all(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 7, v)

	v, err = kind(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, v)
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"documents"`, quoteIdent("documents"))
	assert.Equal(t, `"a""b"`, quoteIdent(`a"b`))
}
