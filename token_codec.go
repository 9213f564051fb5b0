package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultSigningMethod is used when the config leaves the method empty
const DefaultSigningMethod = "HS256"

// TokenCodec signs and verifies compact JWTs with a shared secret
type TokenCodec struct {
	method  jwt.SigningMethod
	key     []byte
	keyID   string
	keyfunc jwt.Keyfunc
	issuer  string
	ttl     time.Duration
	logger  Logger
	now     func() time.Time
}

// NewTokenCodec builds a codec from the signing options in cfg. Only HMAC
// methods are accepted.
func NewTokenCodec(cfg Config) (*TokenCodec, error) {
	name := cfg.GetSigningMethod()
	if name == "" {
		name = DefaultSigningMethod
	}

	method := jwt.GetSigningMethod(name)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSigningMethod, name)
	}

	key := []byte(cfg.GetSigningKey())
	if len(key) == 0 {
		return nil, ErrMissingSigningKey
	}

	c := &TokenCodec{
		method: method,
		key:    key,
		keyID:  cfg.GetSigningKeyID(),
		issuer: cfg.GetIssuer(),
		logger: defLogger{},
		now:    time.Now,
	}

	if hours := cfg.GetTokenExpiration(); hours > 0 {
		c.ttl = time.Duration(hours) * time.Hour
	}

	if c.keyID == "" {
		c.keyfunc = c.signingKeyFunc()
		return c, nil
	}

	opts := keyfunc.GivenKeyOptions{Algorithm: method.Alg()}
	givenKeys := map[string]keyfunc.GivenKey{
		c.keyID: keyfunc.NewGivenCustom(key, opts),
	}

	for kid, secret := range cfg.GetRetiredSigningKeys() {
		if kid == "" || kid == c.keyID || secret == "" {
			continue
		}
		givenKeys[kid] = keyfunc.NewGivenCustom([]byte(secret), opts)
	}

	c.keyfunc = keyfunc.NewGiven(givenKeys).Keyfunc

	return c, nil
}

// WithLogger sets the codec logger
func (c *TokenCodec) WithLogger(logger Logger) *TokenCodec {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithClock overrides the time source used for iat/exp and validation.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	if now != nil {
		c.now = now
	}
	return c
}

// Algorithm returns the JWT alg name
func (c *TokenCodec) Algorithm() string {
	return c.method.Alg()
}

// Encode signs a copy of claims. iss, iat and exp are filled in from the
// codec options when the caller did not set them.
func (c *TokenCodec) Encode(claims jwt.MapClaims) (string, error) {
	out := make(jwt.MapClaims, len(claims)+3)
	for k, v := range claims {
		out[k] = v
	}

	if c.issuer != "" {
		if _, ok := out["iss"]; !ok {
			out["iss"] = c.issuer
		}
	}

	if c.ttl > 0 {
		now := c.now()
		if _, ok := out["iat"]; !ok {
			out["iat"] = jwt.NewNumericDate(now)
		}
		if _, ok := out["exp"]; !ok {
			out["exp"] = jwt.NewNumericDate(now.Add(c.ttl))
		}
	}

	token := jwt.NewWithClaims(c.method, out)
	if c.keyID != "" {
		token.Header["kid"] = c.keyID
	}

	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return signed, nil
}

// Decode verifies raw and returns its claims. Errors wrap ErrTokenExpired or
// ErrTokenMalformed.
func (c *TokenCodec) Decode(raw string) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithTimeFunc(c.now),
	}

	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	if c.ttl > 0 {
		opts = append(opts, jwt.WithExpirationRequired())
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, c.keyfunc, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	if !token.Valid {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

func (c *TokenCodec) signingKeyFunc() jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		alg, ok := token.Header["alg"].(string)
		if !ok {
			return nil, fmt.Errorf("%w: missing alg header", ErrUnsupportedSigningMethod)
		}
		if alg != c.method.Alg() {
			c.logger.Warn("token codec rejected signing method", "expected", c.method.Alg(), "alg", alg)
			return nil, fmt.Errorf("%w: expected %q got %q", ErrUnsupportedSigningMethod, c.method.Alg(), alg)
		}
		return c.key, nil
	}
}
