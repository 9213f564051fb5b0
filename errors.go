package auth

import (
	"errors"
	"strings"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found")

// ErrInvalidCredentials is returned for both unknown emails and wrong
// passwords so callers cannot tell them apart.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrMismatchedHashAndPassword password does not match stored hash
var ErrMismatchedHashAndPassword = errors.New("mismatched hash and password")

// ErrNoEmptyString refuses to hash empty passwords
var ErrNoEmptyString = errors.New("password can not be an empty string")

// ErrPasswordTooLong bcrypt only reads the first MaxPasswordLength bytes
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// ErrTokenMalformed token could not be decoded or verified
var ErrTokenMalformed = errors.New("token is malformed")

// ErrTokenExpired token exp claim is in the past
var ErrTokenExpired = errors.New("token is expired")

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = errors.New("unable to map claims")

// ErrUnsupportedSigningMethod only HMAC methods are accepted
var ErrUnsupportedSigningMethod = errors.New("unsupported signing method")

// ErrMissingSigningKey the codec has no secret to sign with
var ErrMissingSigningKey = errors.New("missing signing key")

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTokenExpired) ||
		strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTokenMalformed) ||
		strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsAuthError reports whether err came from token verification rather than
// from infrastructure.
func IsAuthError(err error) bool {
	return IsTokenExpiredError(err) ||
		IsMalformedError(err) ||
		errors.Is(err, ErrUnableToMapClaims)
}
