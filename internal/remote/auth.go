package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/fieldops/internal/api/grpc/rpc"
	"github.com/dtroode/fieldops/internal/logger"
	"github.com/dtroode/fieldops/internal/model"
)

var _ model.AuthProvider = (*Auth)(nil)

const (
	defaultRefreshLead    = 30 * time.Second
	defaultRetryDelay     = 5 * time.Second
	defaultRequestTimeout = 10 * time.Second
)

// AuthOption configures Auth.
type AuthOption func(*Auth)

// WithRefreshLead sets how long before expiry the access token is refreshed.
func WithRefreshLead(d time.Duration) AuthOption {
	return func(a *Auth) {
		a.refreshLead = d
	}
}

// WithRetryDelay sets the wait before retrying a refresh that failed on connectivity.
func WithRetryDelay(d time.Duration) AuthOption {
	return func(a *Auth) {
		a.retryDelay = d
	}
}

// WithRequestTimeout bounds background refresh calls.
func WithRequestTimeout(d time.Duration) AuthOption {
	return func(a *Auth) {
		a.requestTimeout = d
	}
}

// Auth is the auth collaborator backed by the fieldops.Auth service. It keeps
// the access token fresh and persists the refresh token between runs.
type Auth struct {
	client      *rpc.AuthClient
	persistence model.SessionPersistence
	logger      *logger.Logger

	refreshLead    time.Duration
	retryDelay     time.Duration
	requestTimeout time.Duration

	// emitMu serializes state changes with their emission.
	emitMu sync.Mutex

	mu        sync.Mutex
	session   *rpc.Session
	epoch     uint64
	timer     *time.Timer
	listeners map[uint64]model.IdentityFunc
	nextID    uint64
	closed    bool
}

// NewAuth creates new Auth instance. Call Restore to resume a persisted session.
func NewAuth(client *rpc.AuthClient, persistence model.SessionPersistence, logger *logger.Logger, opts ...AuthOption) *Auth {
	a := &Auth{
		client:         client,
		persistence:    persistence,
		logger:         logger,
		refreshLead:    defaultRefreshLead,
		retryDelay:     defaultRetryDelay,
		requestTimeout: defaultRequestTimeout,
		listeners:      make(map[uint64]model.IdentityFunc),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Subscribe calls onChange with the current identity, then on every change.
// onChange runs with emissions serialized and must not call back into Auth.
func (a *Auth) Subscribe(onChange model.IdentityFunc) model.Unsubscribe {
	a.emitMu.Lock()
	defer a.emitMu.Unlock()

	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = onChange
	current, _ := identityFromSession(a.session)
	a.mu.Unlock()

	onChange(current)

	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

// Restore exchanges a persisted refresh token for a fresh session. A missing
// or rejected token leaves the client signed out without error.
func (a *Auth) Restore(ctx context.Context) error {
	stored, err := a.persistence.Load(ctx)
	if errors.Is(err, model.ErrNotFound) {
		a.logger.Debug("Remote auth: no stored session")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	session, err := a.client.Refresh(ctx, &rpc.RefreshRequest{RefreshToken: stored.RefreshToken})
	if err != nil {
		err = rpc.FromStatus(err, model.ErrSessionExpired)
		if errors.Is(err, model.ErrUnavailable) {
			return fmt.Errorf("failed to restore session: %w", err)
		}

		a.logger.Info("Remote auth: stored session rejected",
			"email", stored.Email,
			"error", err.Error())
		if clearErr := a.persistence.Clear(ctx); clearErr != nil {
			a.logger.Warn("Remote auth: failed to clear stored session",
				"error", clearErr.Error())
		}
		return nil
	}

	if _, err := a.apply(ctx, session); err != nil {
		return err
	}

	a.logger.Info("Remote auth: session restored",
		"email", session.Email)

	return nil
}

// SignIn authenticates with email and password.
func (a *Auth) SignIn(ctx context.Context, email, password string) (model.Identity, error) {
	session, err := a.client.SignIn(ctx, &rpc.SignInRequest{Email: email, Password: password})
	if err != nil {
		return model.Identity{}, fmt.Errorf("failed to sign in: %w", rpc.FromStatus(err, model.ErrInvalidCredentials))
	}

	identity, err := a.apply(ctx, session)
	if err != nil {
		return model.Identity{}, err
	}

	return *identity, nil
}

// SignOut revokes the refresh token and emits nil. A token the server no
// longer accepts counts as signed out.
func (a *Auth) SignOut(ctx context.Context) error {
	a.mu.Lock()
	session := a.session
	a.mu.Unlock()

	if session != nil {
		err := a.client.SignOut(ctx, &rpc.SignOutRequest{RefreshToken: session.RefreshToken})
		if err != nil {
			err = rpc.FromStatus(err, model.ErrSessionExpired)
			if !errors.Is(err, model.ErrSessionExpired) {
				return fmt.Errorf("failed to sign out: %w", err)
			}
		}
	}

	if err := a.persistence.Clear(ctx); err != nil {
		a.logger.Warn("Remote auth: failed to clear stored session",
			"error", err.Error())
	}

	a.setSession(nil)

	a.logger.Info("Remote auth: signed out")

	return nil
}

// AccessToken returns the current access token, or ErrNoIdentity when signed out.
func (a *Auth) AccessToken() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		return "", model.ErrNoIdentity
	}
	return a.session.AccessToken, nil
}

// Close stops background refreshes. The session stays persisted.
func (a *Auth) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true
	a.epoch++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// apply persists and publishes a session returned by the server.
func (a *Auth) apply(ctx context.Context, session *rpc.Session) (*model.Identity, error) {
	identity, err := identityFromSession(session)
	if err != nil {
		return nil, err
	}

	a.save(ctx, session)
	a.setSession(session)

	return identity, nil
}

func (a *Auth) setSession(session *rpc.Session) {
	a.publish(session, 0, false)
}

// publish installs session and emits the new identity. When conditional is
// set it does nothing unless the session epoch still equals expect.
func (a *Auth) publish(session *rpc.Session, expect uint64, conditional bool) bool {
	a.emitMu.Lock()
	defer a.emitMu.Unlock()

	a.mu.Lock()
	if conditional && a.epoch != expect {
		a.mu.Unlock()
		return false
	}
	a.session = session
	a.epoch++
	a.scheduleLocked()
	identity, _ := identityFromSession(session)
	listeners := make([]model.IdentityFunc, 0, len(a.listeners))
	for i := uint64(0); i < a.nextID; i++ {
		if l, ok := a.listeners[i]; ok {
			listeners = append(listeners, l)
		}
	}
	a.mu.Unlock()

	for _, l := range listeners {
		l(identity.Clone())
	}
	return true
}

func (a *Auth) scheduleLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if a.session == nil || a.closed {
		return
	}

	wait := time.Until(a.session.ExpiresAt) - a.refreshLead
	a.scheduleAfterLocked(max(wait, 0))
}

func (a *Auth) scheduleAfterLocked(wait time.Duration) {
	epoch := a.epoch
	a.timer = time.AfterFunc(wait, func() { a.refresh(epoch) })
}

// refresh rotates the session started at epoch. Rejection emits nil.
func (a *Auth) refresh(epoch uint64) {
	a.mu.Lock()
	if a.epoch != epoch || a.session == nil {
		a.mu.Unlock()
		return
	}
	refreshToken := a.session.RefreshToken
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), a.requestTimeout)
	defer cancel()

	a.logger.Debug("Remote auth: refreshing access token")

	session, err := a.client.Refresh(ctx, &rpc.RefreshRequest{RefreshToken: refreshToken})
	if err == nil {
		_, err = identityFromSession(session)
	}

	if err != nil {
		err = rpc.FromStatus(err, model.ErrSessionExpired)
		if errors.Is(err, model.ErrUnavailable) {
			a.logger.Warn("Remote auth: token refresh failed, retrying",
				"retry_in", a.retryDelay,
				"error", err.Error())
			a.mu.Lock()
			if a.epoch == epoch && !a.closed {
				a.scheduleAfterLocked(a.retryDelay)
			}
			a.mu.Unlock()
			return
		}

		if !a.publish(nil, epoch, true) {
			return
		}
		a.logger.Info("Remote auth: session invalidated",
			"error", err.Error())
		if clearErr := a.persistence.Clear(ctx); clearErr != nil {
			a.logger.Warn("Remote auth: failed to clear stored session",
				"error", clearErr.Error())
		}
		return
	}

	if !a.publish(session, epoch, true) {
		return
	}
	a.save(ctx, session)

	a.logger.Debug("Remote auth: access token refreshed",
		"expires_at", session.ExpiresAt)
}

func (a *Auth) save(ctx context.Context, session *rpc.Session) {
	stored := model.StoredSession{
		UserID:       session.UserID,
		Email:        session.Email,
		RefreshToken: session.RefreshToken,
	}
	if err := a.persistence.Save(ctx, stored); err != nil {
		a.logger.Warn("Remote auth: failed to persist session",
			"error", err.Error())
	}
}

func identityFromSession(session *rpc.Session) (*model.Identity, error) {
	if session == nil {
		return nil, nil
	}

	userID, err := uuid.Parse(session.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id in session: %w", err)
	}

	return &model.Identity{
		UserID:    userID,
		Email:     session.Email,
		Token:     session.AccessToken,
		ExpiresAt: session.ExpiresAt,
	}, nil
}
