package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/dtroode/fieldops/internal/model"
)

// ClientConfig contains connection parameters of dispatch clients.
type ClientConfig struct {
	LogLevel int      `env:"LOG_LEVEL" envDefault:"0"`
	Dispatch Dispatch `envPrefix:"DISPATCH_"`
}

// Dispatch holds the project credentials and endpoint of the backend.
type Dispatch struct {
	APIKey         string        `env:"API_KEY" envDefault:"dev-api-key"`
	ProjectID      string        `env:"PROJECT_ID" envDefault:"fieldops-dev"`
	Endpoint       string        `env:"ENDPOINT" envDefault:"localhost:50051"`
	UseTLS         bool          `env:"USE_TLS" envDefault:"false"`
	Persistence    string        `env:"PERSISTENCE"`
	SessionFile    string        `env:"SESSION_FILE"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
}

// NewClientConfig loads client configuration from environment variables.
func NewClientConfig() (*ClientConfig, error) {
	cfg := ClientConfig{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse client config: %w", err)
	}

	if cfg.Dispatch.SessionFile == "" {
		path, err := DefaultSessionFile()
		if err != nil {
			return nil, err
		}
		cfg.Dispatch.SessionFile = path
	}

	return &cfg, nil
}

// PersistenceMode returns the configured mode, or the one detected for the
// current runtime when none is configured.
func (c *ClientConfig) PersistenceMode() (model.PersistenceMode, error) {
	return DetectPersistence(c.Dispatch.Persistence, runtime.GOOS)
}

// DetectPersistence resolves the session persistence mode. Browser runtimes
// (js/wasm) keep the session in memory; everything else stores it on disk.
func DetectPersistence(configured, goos string) (model.PersistenceMode, error) {
	switch model.PersistenceMode(configured) {
	case model.PersistenceNative, model.PersistenceBrowser:
		return model.PersistenceMode(configured), nil
	case "":
	default:
		return "", fmt.Errorf("unknown persistence mode %q", configured)
	}

	if goos == "js" || goos == "wasip1" {
		return model.PersistenceBrowser, nil
	}
	return model.PersistenceNative, nil
}

// DefaultSessionFile is the per-user session file location.
func DefaultSessionFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config dir: %w", err)
	}
	return filepath.Join(dir, "fieldops", "session.json"), nil
}
