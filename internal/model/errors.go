package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned by stores on unique key conflicts.
	ErrAlreadyExists = errors.New("already exists")
	// ErrPermissionDenied is returned by collaborators when the caller may not perform the operation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnavailable is returned by collaborators on transient connectivity loss.
	ErrUnavailable = errors.New("service unavailable")
	// ErrInvalidCredentials is returned by auth collaborators on a bad email/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionExpired is returned by auth collaborators when the session can no longer be refreshed.
	ErrSessionExpired = errors.New("session expired")
	// ErrNoIdentity is returned when an operation requires an authenticated identity.
	ErrNoIdentity = errors.New("no authenticated identity")
	// ErrFeedClosed is returned when closing a task feed that is already closed.
	ErrFeedClosed = errors.New("task feed already closed")
)

// AuthReason classifies an AuthError.
type AuthReason string

const (
	AuthReasonInvalidCredentials AuthReason = "invalid_credentials"
	AuthReasonNetwork            AuthReason = "network"
	AuthReasonSessionExpired     AuthReason = "session_expired"
	AuthReasonUnknown            AuthReason = "unknown"
)

// AuthError is returned by the session controller for failed sign-in or sign-out.
type AuthError struct {
	Reason AuthReason
	Err    error
}

// NewAuthError classifies err into an AuthError.
func NewAuthError(err error) *AuthError {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}

	reason := AuthReasonUnknown
	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrNotFound):
		reason = AuthReasonInvalidCredentials
	case errors.Is(err, ErrSessionExpired):
		reason = AuthReasonSessionExpired
	case errors.Is(err, ErrUnavailable):
		reason = AuthReasonNetwork
	}

	return &AuthError{Reason: reason, Err: err}
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %v", e.Reason, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// MutationReason classifies a MutationError.
type MutationReason string

const (
	MutationReasonValidation       MutationReason = "validation"
	MutationReasonPermissionDenied MutationReason = "permission_denied"
	MutationReasonNetwork          MutationReason = "network"
	MutationReasonNotFound         MutationReason = "not_found"
	MutationReasonUnknown          MutationReason = "unknown"
)

// MutationError is returned by the task gateway for rejected or failed writes.
type MutationError struct {
	Reason MutationReason
	Err    error
}

// NewValidationError creates a MutationError for input rejected before any store call.
func NewValidationError(msg string) *MutationError {
	return &MutationError{Reason: MutationReasonValidation, Err: errors.New(msg)}
}

// NewMutationError classifies a store error into a MutationError.
func NewMutationError(err error) *MutationError {
	reason := MutationReasonUnknown
	switch {
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrNoIdentity):
		reason = MutationReasonPermissionDenied
	case errors.Is(err, ErrUnavailable):
		reason = MutationReasonNetwork
	case errors.Is(err, ErrNotFound):
		reason = MutationReasonNotFound
	}

	return &MutationError{Reason: reason, Err: err}
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("mutation error (%s): %v", e.Reason, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// SubscriptionReason classifies a SubscriptionError.
type SubscriptionReason string

const (
	SubscriptionReasonPermissionDenied SubscriptionReason = "permission_denied"
	SubscriptionReasonUnavailable      SubscriptionReason = "unavailable"
	SubscriptionReasonUnknown          SubscriptionReason = "unknown"
)

// SubscriptionError is delivered through a task feed instead of a snapshot.
// Unavailable errors are transient: the store keeps the subscription alive
// and delivers a fresh snapshot once it recovers.
type SubscriptionError struct {
	Reason SubscriptionReason
	Err    error
}

// NewSubscriptionError classifies a store delivery error.
func NewSubscriptionError(err error) *SubscriptionError {
	var subErr *SubscriptionError
	if errors.As(err, &subErr) {
		return subErr
	}

	reason := SubscriptionReasonUnknown
	switch {
	case errors.Is(err, ErrPermissionDenied):
		reason = SubscriptionReasonPermissionDenied
	case errors.Is(err, ErrUnavailable):
		reason = SubscriptionReasonUnavailable
	}

	return &SubscriptionError{Reason: reason, Err: err}
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription error (%s): %v", e.Reason, e.Err)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}

// Transient reports whether the store is expected to recover without intervention.
func (e *SubscriptionError) Transient() bool {
	return e.Reason == SubscriptionReasonUnavailable
}

var (
	ErrTokenRevoked  = errors.New("refresh token revoked")
	ErrTokenExpired  = errors.New("refresh token expired")
	ErrTokenMismatch = errors.New("refresh token mismatch")
)
