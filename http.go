package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-cookie-auth/middleware/jwtware"
	"github.com/goliatone/go-print"
)

const (
	DefaultCookieName    = "access_token"
	DefaultAuthScheme    = "Bearer"
	DefaultContextKey    = "user"
	DefaultLoginRoute    = "/login"
	DefaultLoginRedirect = "/"
)

// HTTPAuthenticator attaches tokens to responses and resolves the user
// behind a request cookie.
type HTTPAuthenticator interface {
	Login(c *fiber.Ctx, email, password string) error
	Logout(c *fiber.Ctx) error
	SetTokenCookie(c *fiber.Ctx, token string)
	IssueTokenCookie(c *fiber.Ctx, claims jwt.MapClaims) error
	CurrentUser(c *fiber.Ctx) (*User, error)
	LoginRedirect() string
	IdentityMiddleware() fiber.Handler
	ProtectedRoute() fiber.Handler
}

type RouteAuthenticator struct {
	auth           Authenticator
	cfg            Config
	cookieName     string
	authScheme     string
	contextKey     string
	loginRoute     string
	loginRedirect  string
	cookieDuration time.Duration
	activitySink   ActivitySink
	Logger         Logger
	// AuthErrorHandler handles token verification failures on protected routes
	AuthErrorHandler fiber.ErrorHandler
	// ErrorHandler handles every other middleware error
	ErrorHandler fiber.ErrorHandler
}

var _ HTTPAuthenticator = (*RouteAuthenticator)(nil)

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	if auther == nil {
		return nil, errors.New("auth: authenticator is required")
	}

	if cfg == nil {
		return nil, errors.New("auth: config is required")
	}

	a := &RouteAuthenticator{
		auth:          auther,
		cfg:           cfg,
		cookieName:    valueOrDefault(cfg.GetCookieName(), DefaultCookieName),
		authScheme:    valueOrDefault(cfg.GetAuthScheme(), DefaultAuthScheme),
		contextKey:    valueOrDefault(cfg.GetContextKey(), DefaultContextKey),
		loginRoute:    valueOrDefault(cfg.GetLoginRoute(), DefaultLoginRoute),
		loginRedirect: valueOrDefault(cfg.GetLoginRedirect(), DefaultLoginRedirect),
		activitySink:  noopActivitySink{},
		Logger:        defLogger{},
	}

	if cfg.GetTokenExpiration() > 0 {
		a.cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultAuthErrHandler

	return a, nil
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	if logger != nil {
		a.Logger = logger
	}
	return a
}

// WithActivitySink configures the sink receiving logout events.
func (a *RouteAuthenticator) WithActivitySink(sink ActivitySink) *RouteAuthenticator {
	a.activitySink = normalizeActivitySink(sink)
	return a
}

func (a *RouteAuthenticator) CookieName() string {
	return a.cookieName
}

func (a *RouteAuthenticator) ContextKey() string {
	return a.contextKey
}

func (a *RouteAuthenticator) LoginRoute() string {
	return a.loginRoute
}

// LoginRedirect is where login and logout send the browser
func (a *RouteAuthenticator) LoginRedirect() string {
	return a.loginRedirect
}

// Login verifies the credentials, sets the token cookie and redirects to the
// post login route. On error nothing is written to the response.
func (a *RouteAuthenticator) Login(c *fiber.Ctx, email, password string) error {
	token, err := a.auth.Login(c.UserContext(), email, password)
	if err != nil {
		a.Logger.Info("login failed", "error", err)
		return err
	}

	a.SetTokenCookie(c, token)
	// 303 so the browser follows up a POST with a GET, not a replayed POST
	return c.Redirect(a.loginRedirect, fiber.StatusSeeOther)
}

// IssueTokenCookie signs claims, sets the token cookie and redirects to the
// post login route.
func (a *RouteAuthenticator) IssueTokenCookie(c *fiber.Ctx, claims jwt.MapClaims) error {
	token, err := a.auth.IssueToken(claims)
	if err != nil {
		a.Logger.Error("issue token error", "error", err)
		return err
	}

	a.SetTokenCookie(c, token)
	// 303 like Login, the token endpoint is usually a form POST
	return c.Redirect(a.loginRedirect, fiber.StatusSeeOther)
}

// SetTokenCookie writes "<scheme> <token>" to the auth cookie.
func (a *RouteAuthenticator) SetTokenCookie(c *fiber.Ctx, token string) {
	cookie := &fiber.Cookie{
		Name:     a.cookieName,
		Value:    a.authScheme + " " + token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   a.cfg.GetCookieSecure(),
		SameSite: a.cfg.GetCookieSameSite(),
	}

	if a.cookieDuration > 0 {
		cookie.Expires = time.Now().Add(a.cookieDuration)
	}

	c.Cookie(cookie)
}

// CurrentUser returns the user resolved by the identity middleware, or
// resolves the request cookie when the middleware did not run.
func (a *RouteAuthenticator) CurrentUser(c *fiber.Ctx) (*User, error) {
	if user, ok := GetUser(c, a.contextKey); ok {
		return user, nil
	}
	return a.auth.ResolveIdentity(c.UserContext(), c.Cookies(a.cookieName))
}

// Logout removes the auth cookie from the client. Tokens already issued stay
// valid until they expire. The logout event names the user behind the cookie
// when it still resolves.
func (a *RouteAuthenticator) Logout(c *fiber.Ctx) error {
	event := ActivityEvent{EventType: ActivityEventLogout}

	user, err := a.CurrentUser(c)
	if err != nil {
		a.Logger.Debug("logout with unresolved cookie", "error", err)
	}
	if user != nil {
		event.UserID = user.ID.String()
		event.Email = user.Email
	}

	a.cookieDel(c, a.cookieName)
	recordActivity(c.UserContext(), a.activitySink, a.Logger, event)

	return nil
}

// IdentityMiddleware resolves the user when a valid cookie is present and
// lets every request through. Invalid tokens are cleared.
func (a *RouteAuthenticator) IdentityMiddleware() fiber.Handler {
	return jwtware.New(a.jwtConfig(func(c *fiber.Ctx, err error) error {
		if !IsAuthError(err) {
			return a.ErrorHandler(c, err)
		}
		a.Logger.Info("optional auth failed, proceeding", "error", err)
		a.cookieDel(c, a.cookieName)
		return c.Next()
	}, nil))
}

// ProtectedRoute requires a resolved user. Anonymous GET requests are sent to
// the login route, other methods get 401.
func (a *RouteAuthenticator) ProtectedRoute() fiber.Handler {
	return jwtware.New(a.jwtConfig(func(c *fiber.Ctx, err error) error {
		return a.ErrorHandler(c, err)
	}, a.rejectAnonymous))
}

func (a *RouteAuthenticator) jwtConfig(errorHandler fiber.ErrorHandler, anonymous fiber.Handler) jwtware.Config {
	return jwtware.Config{
		ErrorHandler:     errorHandler,
		AnonymousHandler: anonymous,
		ContextKey:       a.contextKey,
		TokenLookup:      "cookie:" + a.cookieName,
		AuthScheme:       a.authScheme,
		Resolver: func(ctx context.Context, token string) (any, error) {
			user, err := a.auth.ResolveToken(ctx, token)
			if err != nil || user == nil {
				return nil, err
			}
			return user, nil
		},
		ContextEnricher: func(ctx context.Context, identity any) context.Context {
			if user, ok := identity.(*User); ok {
				return WithContext(ctx, user)
			}
			return ctx
		},
	}
}

func (a *RouteAuthenticator) rejectAnonymous(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodGet {
		return c.Redirect(a.loginRoute, fiber.StatusFound)
	}
	return c.Status(fiber.StatusUnauthorized).SendString("Unauthorized")
}

func (a *RouteAuthenticator) cookieDel(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.cfg.GetCookieSecure(),
		SameSite: a.cfg.GetCookieSameSite(),
	})
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c *fiber.Ctx, err error) error {
	a.Logger.Info(
		"authentication error, clearing cookie",
		"error", err,
		"expired", IsTokenExpiredError(err),
		"path", c.OriginalURL(),
	)

	a.cookieDel(c, a.cookieName)
	return a.rejectAnonymous(c)
}

func (a *RouteAuthenticator) defaultErrHandler(c *fiber.Ctx, err error) error {
	if IsAuthError(err) {
		return a.AuthErrorHandler(c, err)
	}

	a.Logger.Error(
		"middleware error handler",
		"error", err,
		"details", print.MaybePrettyJSON(map[string]any{
			"method": c.Method(),
			"path":   c.OriginalURL(),
		}),
	)

	return c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
}

func valueOrDefault(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}
