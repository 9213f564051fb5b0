package auth

import (
	"context"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Logger is the logging contract used across the package. Args are
// key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	VerifyCredentials(ctx context.Context, email, password string) (*User, error)
	IssueToken(claims jwt.MapClaims) (string, error)
	ResolveIdentity(ctx context.Context, cookieValue string) (*User, error)
	ResolveToken(ctx context.Context, token string) (*User, error)
	Login(ctx context.Context, email, password string) (string, error)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	// GetSigningKeyID is the kid stamped on issued tokens. Empty disables kid
	// headers and retired key lookup.
	GetSigningKeyID() string
	// GetRetiredSigningKeys maps kid to secret for keys that still verify but
	// no longer sign.
	GetRetiredSigningKeys() map[string]string
	// GetTokenExpiration is expressed in hours, 0 means tokens carry no exp.
	GetTokenExpiration() int
	GetIssuer() string
	GetCookieName() string
	GetAuthScheme() string
	GetCookieSecure() bool
	GetCookieSameSite() string
	GetContextKey() string
	GetLoginRoute() string
	GetLoginRedirect() string
}

// UserFinder is the read only persistence contract the authenticator needs.
// Both lookups return an error wrapping ErrIdentityNotFound when no record
// matches.
type UserFinder interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*User, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) {
	slog.Default().Debug("AUTH "+msg, args...)
}

func (d defLogger) Info(msg string, args ...any) {
	slog.Default().Info("AUTH "+msg, args...)
}

func (d defLogger) Warn(msg string, args ...any) {
	slog.Default().Warn("AUTH "+msg, args...)
}

func (d defLogger) Error(msg string, args ...any) {
	slog.Default().Error("AUTH "+msg, args...)
}

type slogLogger struct {
	lgr *slog.Logger
}

// NewSlogLogger adapts a *slog.Logger to Logger.
func NewSlogLogger(lgr *slog.Logger) Logger {
	if lgr == nil {
		return defLogger{}
	}
	return slogLogger{lgr: lgr}
}

func (s slogLogger) Debug(msg string, args ...any) { s.lgr.Debug(msg, args...) }
func (s slogLogger) Info(msg string, args ...any)  { s.lgr.Info(msg, args...) }
func (s slogLogger) Warn(msg string, args ...any)  { s.lgr.Warn(msg, args...) }
func (s slogLogger) Error(msg string, args ...any) { s.lgr.Error(msg, args...) }
