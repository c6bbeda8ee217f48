package authkit

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthErrorClassification(t *testing.T) {
	tests := []struct {
		status     int
		contains   string
		credential bool
	}{
		{http.StatusUnauthorized, "incorrect", true},
		{http.StatusForbidden, "incorrect", true},
		{http.StatusNotFound, "incorrect", true},
		{http.StatusTooManyRequests, "too many attempts", false},
		{http.StatusInternalServerError, "service error", false},
		{http.StatusBadGateway, "service error", false},
		{http.StatusMovedPermanently, "unexpected response status", false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			err := AuthError(tt.status)
			assert.Equal(t, CodeAuthenticationFailed, err.Code)
			assert.Equal(t, tt.status, err.HTTPStatus)
			assert.Contains(t, err.Error(), tt.contains)
			assert.Contains(t, err.Error(), fmt.Sprintf("HTTP %d", tt.status))
			assert.Equal(t, tt.credential, IsCredentialFailure(err))
		})
	}
}

func TestIsCredentialFailureForeignError(t *testing.T) {
	assert.False(t, IsCredentialFailure(errors.New("boom")))
	assert.False(t, IsCredentialFailure(nil))
	assert.False(t, IsCredentialFailure(errTransport(errors.New("refused"))))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := errTransport(cause)
	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("login: %w", err)
	var ae *Error
	require.True(t, errors.As(wrapped, &ae))
	assert.Equal(t, CodeTransport, ae.Code)
}

func TestErrUnsupportedSentinel(t *testing.T) {
	err := errUnsupported("refresh")
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
	assert.Equal(t, CodeUnsupported, err.Code)
	assert.Contains(t, err.Error(), "refresh")
}

func TestAsError(t *testing.T) {
	typed := AuthError(http.StatusUnauthorized)
	assert.Same(t, typed, AsError(fmt.Errorf("wrap: %w", typed)))

	foreign := errors.New("boom")
	converted := AsError(foreign)
	assert.Equal(t, CodeTransport, converted.Code)
	assert.ErrorIs(t, converted, foreign)
}
