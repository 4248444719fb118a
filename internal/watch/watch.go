// Package watch polls a version token, debounces changes and runs an action
// for every new version. It gives stores without a push channel (SQLite) a
// change feed.
package watch

import (
	"context"
	"database/sql"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dtroode/fieldops/internal/logger"
)

// Detector reads a version token. Two calls that return different values
// mean something changed.
type Detector func(ctx context.Context) (int64, error)

// Options tunes the watcher.
type Options struct {
	// Interval is the polling frequency. Default: 1s.
	Interval time.Duration
	// Debounce is the quiet period after a change before the action fires.
	// 0 fires immediately.
	Debounce time.Duration
	// FireOnStart runs the action once for the initial version.
	FireOnStart bool
	// OnError receives detector and action failures.
	OnError func(error)
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.OnError == nil {
		o.OnError = func(error) {}
	}
}

// noVersion marks a watcher that has not completed an action yet.
const noVersion = -1

// Watcher runs an action whenever its detector reports a new version.
type Watcher struct {
	detect Detector
	opts   Options
	logger *logger.Logger

	version atomic.Int64

	checks   atomic.Int64
	changes  atomic.Int64
	errors   atomic.Int64
	reloads  atomic.Int64
	reloadNs atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Checks          int64         `json:"checks"`
	ChangesDetected int64         `json:"changes_detected"`
	Errors          int64         `json:"errors"`
	Reloads         int64         `json:"reloads"`
	AvgReloadTime   time.Duration `json:"avg_reload_time"`
}

func New(detect Detector, opts Options, logger *logger.Logger) *Watcher {
	opts.defaults()
	w := &Watcher{detect: detect, opts: opts, logger: logger}
	w.version.Store(noVersion)
	return w
}

func (w *Watcher) Stats() Stats {
	s := Stats{
		Checks:          w.checks.Load(),
		ChangesDetected: w.changes.Load(),
		Errors:          w.errors.Load(),
		Reloads:         w.reloads.Load(),
	}
	if s.Reloads > 0 {
		s.AvgReloadTime = time.Duration(w.reloadNs.Load() / s.Reloads)
	}
	return s
}

// Version returns the last version the action completed for.
func (w *Watcher) Version() int64 { return w.version.Load() }

// OnChange blocks until ctx is cancelled. A failed action does not advance
// the version, so it is retried on the next poll.
func (w *Watcher) OnChange(ctx context.Context, action func() error) {
	v, err := w.detect(ctx)
	switch {
	case err != nil:
		w.fail(ctx, "initial version check failed", err)
	case w.opts.FireOnStart:
		w.fire(ctx, action, v)
	default:
		w.version.Store(v)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	pending := int64(noVersion)

	w.logger.Debug("Watch: started", "interval", w.opts.Interval, "debounce", w.opts.Debounce)

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			w.logger.Debug("Watch: stopped")
			return

		case <-ticker.C:
			w.checks.Add(1)
			cur, err := w.detect(ctx)
			if err != nil {
				w.fail(ctx, "version check failed", err)
				continue
			}
			if cur == w.version.Load() || cur == pending {
				continue
			}

			w.changes.Add(1)
			pending = cur
			if w.opts.Debounce <= 0 {
				w.fire(ctx, action, pending)
				pending = noVersion
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(w.opts.Debounce)
			debounceCh = debounceTimer.C

		case <-debounceCh:
			debounceCh = nil
			if pending != noVersion {
				w.fire(ctx, action, pending)
				pending = noVersion
			}
		}
	}
}

func (w *Watcher) fire(ctx context.Context, action func() error, version int64) {
	start := time.Now()
	if err := action(); err != nil {
		w.fail(ctx, "action failed", err)
		return
	}
	elapsed := time.Since(start)
	w.reloads.Add(1)
	w.reloadNs.Add(int64(elapsed))
	w.version.Store(version)
}

func (w *Watcher) fail(ctx context.Context, msg string, err error) {
	if ctx.Err() != nil {
		return
	}
	w.errors.Add(1)
	w.logger.Warn("Watch: "+msg, "error", err.Error())
	w.opts.OnError(err)
}

// MaxColumn polls MAX(column) of table, optionally narrowed by a WHERE
// clause with args. Identifiers are quoted.
func MaxColumn(db *sql.DB, table, column, where string, args ...any) Detector {
	query := "SELECT COALESCE(MAX(" + quoteIdent(column) + "), 0) FROM " + quoteIdent(table)
	if where != "" {
		query += " WHERE " + where
	}
	return func(ctx context.Context) (int64, error) {
		var v int64
		err := db.QueryRowContext(ctx, query, args...).Scan(&v)
		return v, err
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
