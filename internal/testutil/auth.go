package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/fieldops/internal/model"
)

var _ model.AuthProvider = (*FakeAuth)(nil)

// FakeAuth is an in-memory auth collaborator. State changes are emitted to
// subscribers synchronously, in order, before the triggering call returns.
type FakeAuth struct {
	mu        sync.Mutex
	accounts  map[string]account
	current   *model.Identity
	listeners map[int]model.IdentityFunc
	nextID    int
	tokenSeq  int

	signInErr  error
	signOutErr error
	signIns    int
	signOuts   int
}

type account struct {
	userID   uuid.UUID
	password string
}

// NewFakeAuth creates new FakeAuth instance with no accounts.
func NewFakeAuth() *FakeAuth {
	return &FakeAuth{
		accounts:  make(map[string]account),
		listeners: make(map[int]model.IdentityFunc),
	}
}

// AddAccount registers credentials and returns the user id.
func (f *FakeAuth) AddAccount(email, password string) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := uuid.New()
	f.accounts[email] = account{userID: id, password: password}
	return id
}

// FailSignIn makes SignIn return err; nil restores normal operation.
func (f *FakeAuth) FailSignIn(err error) {
	f.mu.Lock()
	f.signInErr = err
	f.mu.Unlock()
}

// FailSignOut makes SignOut return err; nil restores normal operation.
func (f *FakeAuth) FailSignOut(err error) {
	f.mu.Lock()
	f.signOutErr = err
	f.mu.Unlock()
}

func (f *FakeAuth) Subscribe(onChange model.IdentityFunc) model.Unsubscribe {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = onChange
	current := f.current.Clone()
	f.mu.Unlock()

	onChange(current)

	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func (f *FakeAuth) SignIn(_ context.Context, email, password string) (model.Identity, error) {
	f.mu.Lock()
	f.signIns++
	if f.signInErr != nil {
		err := f.signInErr
		f.mu.Unlock()
		return model.Identity{}, err
	}
	acc, ok := f.accounts[email]
	if !ok || acc.password != password {
		f.mu.Unlock()
		return model.Identity{}, fmt.Errorf("sign in %s: %w", email, model.ErrInvalidCredentials)
	}
	identity := f.issueLocked(acc.userID, email)
	f.mu.Unlock()

	f.emit(identity.Clone())

	return *identity, nil
}

func (f *FakeAuth) SignOut(_ context.Context) error {
	f.mu.Lock()
	f.signOuts++
	if f.signOutErr != nil {
		err := f.signOutErr
		f.mu.Unlock()
		return err
	}
	f.current = nil
	f.mu.Unlock()

	f.emit(nil)

	return nil
}

// Invalidate drops the session as if the credential expired remotely.
func (f *FakeAuth) Invalidate() {
	f.mu.Lock()
	f.current = nil
	f.mu.Unlock()

	f.emit(nil)
}

// RefreshToken re-emits the current user with a new token.
func (f *FakeAuth) RefreshToken() {
	f.mu.Lock()
	if f.current == nil {
		f.mu.Unlock()
		return
	}
	identity := f.issueLocked(f.current.UserID, f.current.Email)
	f.mu.Unlock()

	f.emit(identity.Clone())
}

// Listeners returns the number of active subscriptions.
func (f *FakeAuth) Listeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.listeners)
}

// SignIns returns the number of SignIn calls.
func (f *FakeAuth) SignIns() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.signIns
}

// SignOuts returns the number of SignOut calls.
func (f *FakeAuth) SignOuts() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.signOuts
}

func (f *FakeAuth) issueLocked(userID uuid.UUID, email string) *model.Identity {
	f.tokenSeq++
	f.current = &model.Identity{
		UserID:    userID,
		Email:     email,
		Token:     fmt.Sprintf("token-%d", f.tokenSeq),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	return f.current.Clone()
}

// emit runs outside f.mu so listeners may call back into FakeAuth.
func (f *FakeAuth) emit(identity *model.Identity) {
	f.mu.Lock()
	listeners := make([]model.IdentityFunc, 0, len(f.listeners))
	for i := 0; i < f.nextID; i++ {
		if l, ok := f.listeners[i]; ok {
			listeners = append(listeners, l)
		}
	}
	f.mu.Unlock()

	for _, l := range listeners {
		l(identity.Clone())
	}
}
