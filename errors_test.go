package auth_test

import (
	"errors"
	"fmt"
	"testing"

	auth "github.com/goliatone/go-cookie-auth"
	"github.com/goliatone/go-cookie-auth/middleware/jwtware"
	"github.com/stretchr/testify/assert"
)

func TestIsTokenExpiredError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "sentinel", err: auth.ErrTokenExpired, expected: true},
		{name: "wrapped", err: fmt.Errorf("decode: %w", auth.ErrTokenExpired), expected: true},
		{name: "string match", err: errors.New("some wrapper: token is expired"), expected: true},
		{name: "malformed", err: auth.ErrTokenMalformed, expected: false},
		{name: "nil", err: nil, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, auth.IsTokenExpiredError(tt.err))
		})
	}
}

func TestIsMalformedError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "sentinel", err: auth.ErrTokenMalformed, expected: true},
		{name: "wrapped", err: fmt.Errorf("%w: signature is invalid", auth.ErrTokenMalformed), expected: true},
		{name: "middleware", err: jwtware.ErrJWTMissingOrMalformed, expected: true},
		{name: "expired", err: auth.ErrTokenExpired, expected: false},
		{name: "not found", err: auth.ErrIdentityNotFound, expected: false},
		{name: "nil", err: nil, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, auth.IsMalformedError(tt.err))
		})
	}
}

func TestIsAuthError(t *testing.T) {
	assert.True(t, auth.IsAuthError(auth.ErrTokenExpired))
	assert.True(t, auth.IsAuthError(auth.ErrTokenMalformed))
	assert.True(t, auth.IsAuthError(fmt.Errorf("%w: missing sub", auth.ErrUnableToMapClaims)))
	assert.False(t, auth.IsAuthError(errors.New("connection refused")))
	assert.False(t, auth.IsAuthError(nil))
}
