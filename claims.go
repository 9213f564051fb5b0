package auth

import (
	"context"
	"fmt"
	"reflect"

	"github.com/golang-jwt/jwt/v5"
)

// ClaimSubject is the claim holding the user's email
const ClaimSubject = "sub"

// protectedClaims can not be touched by a ClaimsDecorator
var protectedClaims = []string{"sub", "iss", "aud", "exp", "nbf", "iat", "jti"}

// SubjectClaims returns the minimal claim set for a user login
func SubjectClaims(email string) jwt.MapClaims {
	return jwt.MapClaims{
		ClaimSubject: email,
	}
}

// SubjectFromClaims returns the sub claim, it fails when the claim is
// missing, empty, or not a string.
func SubjectFromClaims(claims jwt.MapClaims) (string, error) {
	if claims == nil {
		return "", fmt.Errorf("%w: nil claims", ErrUnableToMapClaims)
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnableToMapClaims, err)
	}

	if sub == "" {
		return "", fmt.Errorf("%w: missing %s claim", ErrUnableToMapClaims, ClaimSubject)
	}

	return sub, nil
}

// ClaimsDecorator can add claims to a login token before it is signed.
type ClaimsDecorator interface {
	Decorate(ctx context.Context, user *User, claims jwt.MapClaims) error
}

// ClaimsDecoratorFunc adapts a function to ClaimsDecorator
type ClaimsDecoratorFunc func(ctx context.Context, user *User, claims jwt.MapClaims) error

// Decorate implements ClaimsDecorator
func (f ClaimsDecoratorFunc) Decorate(ctx context.Context, user *User, claims jwt.MapClaims) error {
	if f == nil {
		return nil
	}
	return f(ctx, user, claims)
}

type noopClaimsDecorator struct{}

func (noopClaimsDecorator) Decorate(context.Context, *User, jwt.MapClaims) error {
	return nil
}

func normalizeClaimsDecorator(d ClaimsDecorator) ClaimsDecorator {
	if d == nil {
		return noopClaimsDecorator{}
	}
	return d
}

type claimsSnapshot map[string]any

func captureProtectedClaims(claims jwt.MapClaims) claimsSnapshot {
	snapshot := claimsSnapshot{}
	for _, name := range protectedClaims {
		if v, ok := claims[name]; ok {
			snapshot[name] = v
		}
	}
	return snapshot
}

func (s claimsSnapshot) validate(claims jwt.MapClaims) error {
	for _, name := range protectedClaims {
		before, had := s[name]
		after, has := claims[name]
		if had != has || !reflect.DeepEqual(before, after) {
			return fmt.Errorf("%w: decorator modified protected claim %q", ErrUnableToMapClaims, name)
		}
	}
	return nil
}
