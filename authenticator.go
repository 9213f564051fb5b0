package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-cookie-auth/middleware/jwtware"
)

// Auther verifies credentials, issues tokens and resolves the user behind a
// token. It holds no mutable state once configured.
type Auther struct {
	users           UserFinder
	hasher          PasswordAuthenticator
	codec           *TokenCodec
	authScheme      string
	logger          Logger
	activitySink    ActivitySink
	claimsDecorator ClaimsDecorator
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(users UserFinder, opts Config) (*Auther, error) {
	if users == nil {
		return nil, errors.New("auth: user store is required")
	}

	codec, err := NewTokenCodec(opts)
	if err != nil {
		return nil, err
	}

	scheme := opts.GetAuthScheme()
	if scheme == "" {
		scheme = DefaultAuthScheme
	}

	return &Auther{
		users:           users,
		hasher:          BcryptHasher{},
		codec:           codec,
		authScheme:      scheme,
		logger:          defLogger{},
		activitySink:    noopActivitySink{},
		claimsDecorator: noopClaimsDecorator{},
	}, nil
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger == nil {
		return s
	}
	s.logger = logger
	s.codec.WithLogger(logger)
	return s
}

// WithPasswordHasher replaces the default bcrypt hasher
func (s *Auther) WithPasswordHasher(hasher PasswordAuthenticator) *Auther {
	if hasher != nil {
		s.hasher = hasher
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithClaimsDecorator configures a ClaimsDecorator for enriching login tokens.
func (s *Auther) WithClaimsDecorator(decorator ClaimsDecorator) *Auther {
	s.claimsDecorator = normalizeClaimsDecorator(decorator)
	return s
}

// TokenCodec returns the codec used to sign and verify tokens
func (s *Auther) TokenCodec() *TokenCodec {
	return s.codec
}

// AuthScheme is the prefix expected in front of the token in the cookie
func (s *Auther) AuthScheme() string {
	return s.authScheme
}

// VerifyCredentials returns the user owning email when password matches its
// stored hash. Unknown emails and wrong passwords both yield
// ErrInvalidCredentials, store failures are returned as is. Only failures are
// recorded, Login records the success once a token exists.
func (s *Auther) VerifyCredentials(ctx context.Context, email, password string) (*User, error) {
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrIdentityNotFound) {
		s.logger.Error("verify credentials lookup error", "error", err)
		return nil, err
	}

	if user == nil {
		s.rejectCredentials(ctx, nil, email, ReasonUnknownIdentity)
		return nil, ErrInvalidCredentials
	}

	if err := s.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		reason := ReasonPasswordMismatch
		if !errors.Is(err, ErrMismatchedHashAndPassword) {
			reason = ReasonInvalidHash
			s.logger.Error("verify credentials stored hash error", "user_id", user.ID.String(), "error", err)
		}
		s.rejectCredentials(ctx, user, email, reason)
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (s *Auther) rejectCredentials(ctx context.Context, user *User, email, reason string) {
	s.logger.Info("credentials rejected", "reason", reason)

	event := ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Email:     email,
		Metadata: map[string]any{
			"reason": reason,
		},
	}
	if user != nil {
		event.UserID = user.ID.String()
	}

	recordActivity(ctx, s.activitySink, s.logger, event)
}

// IssueToken signs claims. It has no side effects, attaching the token to a
// response is up to the HTTP layer.
func (s *Auther) IssueToken(claims jwt.MapClaims) (string, error) {
	if _, err := SubjectFromClaims(claims); err != nil {
		return "", err
	}
	return s.codec.Encode(claims)
}

// Login verifies the credentials and returns a token for the user.
func (s *Auther) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.VerifyCredentials(ctx, email, password)
	if err != nil {
		return "", err
	}

	claims := SubjectClaims(user.Email)
	snapshot := captureProtectedClaims(claims)

	if err := s.claimsDecorator.Decorate(ctx, user, claims); err != nil {
		s.logger.Error("claims decorator failed", "error", err)
		return "", err
	}

	if err := snapshot.validate(claims); err != nil {
		s.logger.Error("claims decorator mutated protected claims", "error", err)
		return "", err
	}

	token, err := s.IssueToken(claims)
	if err != nil {
		s.logger.Error("login issue token error", "error", err)
		return "", err
	}

	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		UserID:    user.ID.String(),
		Email:     user.Email,
	})

	return token, nil
}

// ResolveIdentity returns the user behind a cookie value of the form
// "<scheme> <token>". An empty value is an anonymous request and returns
// (nil, nil) without touching the store.
func (s *Auther) ResolveIdentity(ctx context.Context, cookieValue string) (*User, error) {
	if cookieValue == "" {
		return nil, nil
	}

	token, err := jwtware.StripAuthScheme(cookieValue, s.authScheme)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrTokenMalformed, err)
		s.rejectToken(ctx, err)
		return nil, err
	}

	return s.ResolveToken(ctx, token)
}

// ResolveToken verifies token and loads the user named by its sub claim.
// Verification failures are errors, a sub that matches no user is not.
func (s *Auther) ResolveToken(ctx context.Context, token string) (*User, error) {
	claims, err := s.codec.Decode(token)
	if err != nil {
		s.rejectToken(ctx, err)
		return nil, err
	}

	email, err := SubjectFromClaims(claims)
	if err != nil {
		s.rejectToken(ctx, err)
		return nil, err
	}

	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			s.logger.Debug("token subject has no user")
			return nil, nil
		}
		s.logger.Error("resolve identity lookup error", "error", err)
		return nil, err
	}

	if user == nil || user.Email != email {
		return nil, nil
	}

	return user, nil
}

func (s *Auther) rejectToken(ctx context.Context, err error) {
	s.logger.Warn("token rejected", "error", err)
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventTokenRejected,
		Metadata: map[string]any{
			"expired": IsTokenExpiredError(err),
			"error":   err.Error(),
		},
	})
}
