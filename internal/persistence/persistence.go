// Package persistence stores the signed-in session of a client.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/dtroode/fieldops/internal/model"
)

var (
	_ model.SessionPersistence = (*File)(nil)
	_ model.SessionPersistence = (*Memory)(nil)
)

// New returns the persistence for mode. Native sessions are written to path.
func New(mode model.PersistenceMode, path string) (model.SessionPersistence, error) {
	switch mode {
	case model.PersistenceNative:
		if path == "" {
			return nil, fmt.Errorf("session file is required for %s persistence", mode)
		}
		return NewFile(path), nil
	case model.PersistenceBrowser:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown persistence mode %q", mode)
	}
}

// File keeps the session in a JSON file readable only by its owner.
type File struct {
	path string
	mu   sync.Mutex
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Load(ctx context.Context) (model.StoredSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.StoredSession{}, model.ErrNotFound
		}
		return model.StoredSession{}, fmt.Errorf("failed to read session file: %w", err)
	}

	var session model.StoredSession
	if err := json.Unmarshal(data, &session); err != nil {
		return model.StoredSession{}, fmt.Errorf("failed to decode session file: %w", err)
	}
	if session.RefreshToken == "" {
		return model.StoredSession{}, model.ErrNotFound
	}
	return session, nil
}

func (f *File) Save(ctx context.Context, session model.StoredSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

func (f *File) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// Memory keeps the session for the lifetime of the process.
type Memory struct {
	mu      sync.Mutex
	session *model.StoredSession
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(ctx context.Context) (model.StoredSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return model.StoredSession{}, model.ErrNotFound
	}
	return *m.session, nil
}

func (m *Memory) Save(ctx context.Context, session model.StoredSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session = &session
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session = nil
	return nil
}
