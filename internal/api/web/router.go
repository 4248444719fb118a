// Package web serves the browser API: cookie sessions, task mutations and a
// WebSocket task feed.
package web

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/dtroode/fieldops/internal/logger"
	"github.com/dtroode/fieldops/internal/model"
	"github.com/dtroode/fieldops/internal/service"
)

// AuthService signs users in and manages their refresh tokens.
type AuthService interface {
	SignIn(ctx context.Context, email, password string) (model.AuthTokens, error)
	Refresh(ctx context.Context, refreshToken string) (model.AuthTokens, error)
	SignOut(ctx context.Context, refreshToken string) error
}

// TokenService validates access tokens.
type TokenService interface {
	Authenticate(token string) (model.AccessClaims, error)
}

// FeedOpener opens live task feeds.
type FeedOpener interface {
	Open(ctx context.Context, identity *model.Identity, sink service.FeedSink) (*service.Feed, error)
}

// TaskWriter dispatches and updates tasks.
type TaskWriter interface {
	CreateTask(ctx context.Context, title string) error
	StartTask(ctx context.Context, id string) error
	CompleteTask(ctx context.Context, id string) error
}

// Options tune cookies and WebSocket origin checks.
type Options struct {
	CookieDomain   string
	SecureCookies  bool
	AllowedOrigins []string
}

// Handler holds the dependencies of the browser API.
type Handler struct {
	auth     AuthService
	tokens   TokenService
	feeds    FeedOpener
	tasks    TaskWriter
	opts     Options
	upgrader websocket.Upgrader
	sessions *feedRegistry
	logger   *logger.Logger
}

// NewHandler creates new Handler instance.
func NewHandler(
	auth AuthService,
	tokens TokenService,
	feeds FeedOpener,
	tasks TaskWriter,
	opts Options,
	logger *logger.Logger,
) *Handler {
	h := &Handler{
		auth:     auth,
		tokens:   tokens,
		feeds:    feeds,
		tasks:    tasks,
		opts:     opts,
		sessions: newFeedRegistry(),
		logger:   logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Routes builds the chi router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)
	r.Use(h.authenticate)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/session", h.signIn)
	r.Post("/api/session/refresh", h.refresh)
	r.Delete("/api/session", h.signOut)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/api/session", h.whoami)
		r.Get("/api/tasks/feed", h.feed)
		r.Post("/api/tasks", h.createTask)
		r.Post("/api/tasks/{id}/start", h.startTask)
		r.Post("/api/tasks/{id}/complete", h.completeTask)
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
