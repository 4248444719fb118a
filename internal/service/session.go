package service

import (
	"context"
	"sync"

	"github.com/dtroode/fieldops/internal/logger"
	"github.com/dtroode/fieldops/internal/model"
	"github.com/dtroode/fieldops/internal/queue"
)

// Session tracks the authenticated identity reported by the auth collaborator
// and exposes sign-in and sign-out.
type Session struct {
	auth   model.AuthProvider
	logger *logger.Logger

	mu      sync.RWMutex
	current *model.Identity
}

// NewSession creates new Session instance.
func NewSession(auth model.AuthProvider, logger *logger.Logger) *Session {
	return &Session{
		auth:   auth,
		logger: logger,
	}
}

// ObserveIdentity subscribes to the auth collaborator and returns a channel
// carrying every identity change, nil meaning signed out. The first value is
// the state at subscription time. Each call is an independent subscription;
// it ends and the channel is closed when ctx is cancelled.
func (s *Session) ObserveIdentity(ctx context.Context) <-chan *model.Identity {
	out := make(chan *model.Identity)
	identities := queue.New[*model.Identity]()

	unsubscribe := s.auth.Subscribe(func(identity *model.Identity) {
		s.setCurrent(identity)
		identities.Push(identity.Clone())
	})

	s.logger.Debug("Session service: identity observer started")

	go func() {
		defer close(out)
		defer unsubscribe()

		for {
			identity, ok := identities.Pop(ctx)
			if !ok {
				s.logger.Debug("Session service: identity observer stopped")
				return
			}

			select {
			case out <- identity:
			case <-ctx.Done():
				s.logger.Debug("Session service: identity observer stopped")
				return
			}
		}
	}()

	return out
}

// SignIn authenticates with email and password. The resulting identity is
// also emitted to observers, possibly before SignIn returns.
func (s *Session) SignIn(ctx context.Context, email, password string) (model.Identity, error) {
	s.logger.Debug("Session service: signing in",
		"email", email)

	identity, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		authErr := model.NewAuthError(err)
		s.logger.Info("Session service: sign in failed",
			"email", email,
			"reason", authErr.Reason,
			"error", err.Error())
		return model.Identity{}, authErr
	}

	s.logger.Info("Session service: signed in",
		"email", email,
		"user_id", identity.UserID)

	return identity, nil
}

// SignOut ends the session. Observers receive nil.
func (s *Session) SignOut(ctx context.Context) error {
	s.logger.Debug("Session service: signing out")

	if err := s.auth.SignOut(ctx); err != nil {
		authErr := model.NewAuthError(err)
		s.logger.Error("Session service: sign out failed",
			"reason", authErr.Reason,
			"error", err.Error())
		return authErr
	}

	s.logger.Info("Session service: signed out")

	return nil
}

// Current returns the last identity observed through ObserveIdentity.
func (s *Session) Current() *model.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.current.Clone()
}

func (s *Session) setCurrent(identity *model.Identity) {
	s.mu.Lock()
	s.current = identity.Clone()
	s.mu.Unlock()
}
