package jwtware

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var (
	defaultTokenLookup = "cookie:access_token"

	// ErrJWTMissing no token was found in any lookup location
	ErrJWTMissing = errors.New("missing JWT")
	// ErrJWTMissingOrMalformed a value was found but it is not "<scheme> <token>"
	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")
)

// Resolver verifies a raw token and returns the identity behind it. A nil
// identity with a nil error means the token is valid but names nobody.
type Resolver func(ctx context.Context, token string) (any, error)

type Config struct {
	Filter func(*fiber.Ctx) bool
	// SuccessHandler runs after the identity is stored in locals
	SuccessHandler fiber.Handler
	// AnonymousHandler runs when there is no token or it resolves to nobody
	AnonymousHandler fiber.Handler
	// ErrorHandler runs for malformed tokens and resolver errors
	ErrorHandler fiber.ErrorHandler
	Resolver     Resolver
	ContextKey   string
	// TokenLookup is a comma separated list of source:name pairs, e.g.
	// "cookie:access_token,header:Authorization,query:token"
	TokenLookup string
	AuthScheme  string

	// ContextEnricher propagates the identity to the request's user context
	ContextEnricher func(ctx context.Context, identity any) context.Context
}

func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)
	extractors := cfg.getExtractors()

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := ExtractRawToken(c, extractors)
		if err != nil {
			if errors.Is(err, ErrJWTMissing) {
				return cfg.AnonymousHandler(c)
			}
			return cfg.ErrorHandler(c, err)
		}

		identity, err := cfg.Resolver(c.UserContext(), raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		if isNil(identity) {
			return cfg.AnonymousHandler(c)
		}

		c.Locals(cfg.ContextKey, identity)

		if cfg.ContextEnricher != nil {
			c.SetUserContext(cfg.ContextEnricher(c.UserContext(), identity))
		}

		return cfg.SuccessHandler(c)
	}
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.AnonymousHandler == nil {
		cfg.AnonymousHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			if errors.Is(err, ErrJWTMissingOrMalformed) {
				return c.Status(fiber.StatusBadRequest).SendString(ErrJWTMissingOrMalformed.Error())
			}
			return c.Status(fiber.StatusUnauthorized).SendString("Invalid or expired token")
		}
	}

	if cfg.Resolver == nil {
		panic("AUTH: JWT middleware configuration: Resolver is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

// ExtractRawToken runs extractors in order. The first token found wins, a
// malformed value stops the search.
func ExtractRawToken(c *fiber.Ctx, extractors []JWTExtractor) (string, error) {
	for _, extractor := range extractors {
		raw, err := extractor(c)
		if err == nil && raw != "" {
			return raw, nil
		}
		if err != nil && !errors.Is(err, ErrJWTMissing) {
			return "", err
		}
	}

	return "", ErrJWTMissing
}

func (cfg *Config) getExtractors() []JWTExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func GetExtractors(tokenLookup string, authSchemes ...string) []JWTExtractor {
	extractors := make([]JWTExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = authSchemes[0]
	}

	// cookie:access_token,header:Authorization,query:auth_token
	rootParts := strings.Split(tokenLookup, ",")
	for _, rootPart := range rootParts {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")
		if len(parts) != 2 {
			continue
		}

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			extractors = append(extractors, jwtFromHeader(parts[1], authScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(parts[1]))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(parts[1], authScheme))
		}
	}

	return extractors
}

type JWTExtractor func(c *fiber.Ctx) (string, error)

// StripAuthScheme turns "<scheme> <token>" into "<token>". The scheme is
// matched case insensitively. Surrounding double quotes, as written by some
// cookie encoders, are ignored.
func StripAuthScheme(value, authScheme string) (string, error) {
	value = strings.TrimSpace(strings.Trim(value, `"`))
	authScheme = strings.TrimSpace(authScheme)

	if authScheme == "" {
		if value == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return value, nil
	}

	l := len(authScheme)
	if len(value) > l+1 && strings.EqualFold(value[:l], authScheme) && value[l] == ' ' {
		if token := strings.TrimSpace(value[l+1:]); token != "" {
			return token, nil
		}
	}

	return "", ErrJWTMissingOrMalformed
}

// jwtFromHeader returns a function that extracts token from the request header.
func jwtFromHeader(header string, authScheme string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		a := c.Get(header)
		if a == "" {
			return "", ErrJWTMissing
		}
		return StripAuthScheme(a, authScheme)
	}
}

// jwtFromQuery returns a function that extracts token from the query string.
func jwtFromQuery(param string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Query(param)
		if token == "" {
			return "", ErrJWTMissing
		}
		return token, nil
	}
}

// jwtFromCookie returns a function that extracts token from the named cookie.
func jwtFromCookie(name string, authScheme string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		value := c.Cookies(name)
		if value == "" {
			return "", ErrJWTMissing
		}
		return StripAuthScheme(value, authScheme)
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Interface, reflect.Slice, reflect.Func:
		return rv.IsNil()
	}
	return false
}
