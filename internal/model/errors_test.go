package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAuthError(t *testing.T) {
	tests := []struct {
		in   error
		want AuthReason
	}{
		{ErrInvalidCredentials, AuthReasonInvalidCredentials},
		{fmt.Errorf("failed to sign in: %w", ErrInvalidCredentials), AuthReasonInvalidCredentials},
		{ErrSessionExpired, AuthReasonSessionExpired},
		{ErrUnavailable, AuthReasonNetwork},
		{errors.New("boom"), AuthReasonUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.in.Error(), func(t *testing.T) {
			err := NewAuthError(tt.in)
			assert.Equal(t, tt.want, err.Reason)
			assert.ErrorIs(t, err, tt.in)
		})
	}

	wrapped := NewAuthError(&AuthError{Reason: AuthReasonNetwork, Err: errors.New("x")})
	assert.Equal(t, AuthReasonNetwork, wrapped.Reason)
}

func TestNewMutationError(t *testing.T) {
	assert.Equal(t, MutationReasonPermissionDenied, NewMutationError(ErrPermissionDenied).Reason)
	assert.Equal(t, MutationReasonPermissionDenied, NewMutationError(ErrNoIdentity).Reason)
	assert.Equal(t, MutationReasonNetwork, NewMutationError(ErrUnavailable).Reason)
	assert.Equal(t, MutationReasonNotFound, NewMutationError(ErrNotFound).Reason)
	assert.Equal(t, MutationReasonUnknown, NewMutationError(errors.New("boom")).Reason)
	assert.Equal(t, MutationReasonValidation, NewValidationError("title is required").Reason)
}

func TestNewSubscriptionError(t *testing.T) {
	unavailable := NewSubscriptionError(fmt.Errorf("listen: %w", ErrUnavailable))
	assert.Equal(t, SubscriptionReasonUnavailable, unavailable.Reason)
	assert.True(t, unavailable.Transient())

	denied := NewSubscriptionError(ErrPermissionDenied)
	assert.Equal(t, SubscriptionReasonPermissionDenied, denied.Reason)
	assert.False(t, denied.Transient())

	var target *SubscriptionError
	assert.True(t, errors.As(error(denied), &target))
}
