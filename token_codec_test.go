package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	auth "github.com/goliatone/go-cookie-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCodec(t *testing.T, secret string, overrides ...configOverrides) *auth.TokenCodec {
	t.Helper()
	codec, err := auth.NewTokenCodec(newMockConfig(secret, overrides...))
	require.NoError(t, err)
	return codec
}

func TestTokenCodec_RoundTrip(t *testing.T) {
	codec := newCodec(t, testSecret)
	assert.Equal(t, "HS256", codec.Algorithm())

	token, err := codec.Encode(jwt.MapClaims{"sub": "alice@example.com", "role": "admin"})
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	claims, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims["sub"])
	assert.Equal(t, "admin", claims["role"])
	assert.NotContains(t, claims, "exp", "no expiration configured")
}

func TestTokenCodec_DoesNotMutateInput(t *testing.T) {
	codec := newCodec(t, testSecret, configOverrides{expiration: 1, issuer: "svc"})

	in := jwt.MapClaims{"sub": "alice@example.com"}
	_, err := codec.Encode(in)
	require.NoError(t, err)
	assert.Equal(t, jwt.MapClaims{"sub": "alice@example.com"}, in)
}

func TestTokenCodec_WrongSecret(t *testing.T) {
	token, err := newCodec(t, testSecret).Encode(jwt.MapClaims{"sub": "alice@example.com"})
	require.NoError(t, err)

	_, err = newCodec(t, "another-secret-0123456789abcdefgh").Decode(token)
	assert.ErrorIs(t, err, auth.ErrTokenMalformed)
	assert.True(t, auth.IsMalformedError(err))
}

func TestTokenCodec_TamperedPayload(t *testing.T) {
	codec := newCodec(t, testSecret)
	token, err := codec.Encode(jwt.MapClaims{"sub": "alice@example.com"})
	require.NoError(t, err)

	_, err = codec.Decode(tamper(token))
	assert.ErrorIs(t, err, auth.ErrTokenMalformed)
}

func TestTokenCodec_Garbage(t *testing.T) {
	codec := newCodec(t, testSecret)

	for _, raw := range []string{"", "not-a-token", "a.b.c", "a.b"} {
		_, err := codec.Decode(raw)
		assert.ErrorIs(t, err, auth.ErrTokenMalformed, raw)
	}
}

func TestTokenCodec_RejectsOtherAlgorithms(t *testing.T) {
	codec := newCodec(t, testSecret)

	t.Run("different hmac", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "alice@example.com"}).
			SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = codec.Decode(token)
		assert.ErrorIs(t, err, auth.ErrTokenMalformed)
	})

	t.Run("none", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "alice@example.com"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = codec.Decode(token)
		assert.ErrorIs(t, err, auth.ErrTokenMalformed)
	})
}

func TestNewTokenCodec_Validation(t *testing.T) {
	_, err := auth.NewTokenCodec(newMockConfig(""))
	assert.ErrorIs(t, err, auth.ErrMissingSigningKey)

	_, err = auth.NewTokenCodec(newMockConfig(testSecret, configOverrides{method: "RS256"}))
	assert.ErrorIs(t, err, auth.ErrUnsupportedSigningMethod)

	_, err = auth.NewTokenCodec(newMockConfig(testSecret, configOverrides{method: "nope"}))
	assert.ErrorIs(t, err, auth.ErrUnsupportedSigningMethod)

	codec, err := auth.NewTokenCodec(newMockConfig(testSecret, configOverrides{method: "HS384"}))
	require.NoError(t, err)
	assert.Equal(t, "HS384", codec.Algorithm())
}

func TestTokenCodec_Expiration(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := now

	codec := newCodec(t, testSecret, configOverrides{expiration: 1}).
		WithClock(func() time.Time { return clock })

	token, err := codec.Encode(jwt.MapClaims{"sub": "alice@example.com"})
	require.NoError(t, err)

	claims, err := codec.Decode(token)
	require.NoError(t, err)

	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	assert.True(t, exp.Time.Equal(now.Add(time.Hour)))

	clock = now.Add(2 * time.Hour)
	_, err = codec.Decode(token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
	assert.True(t, auth.IsTokenExpiredError(err))
}

func TestTokenCodec_ExpirationRequired(t *testing.T) {
	plain := newCodec(t, testSecret)
	token, err := plain.Encode(jwt.MapClaims{"sub": "alice@example.com"})
	require.NoError(t, err)

	_, err = newCodec(t, testSecret, configOverrides{expiration: 1}).Decode(token)
	assert.ErrorIs(t, err, auth.ErrTokenMalformed)
}

func TestTokenCodec_ExpEnforcedWhenPresent(t *testing.T) {
	codec := newCodec(t, testSecret)

	token, err := codec.Encode(jwt.MapClaims{
		"sub": "alice@example.com",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	require.NoError(t, err)

	_, err = codec.Decode(token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestTokenCodec_Issuer(t *testing.T) {
	codec := newCodec(t, testSecret, configOverrides{issuer: "cookie-auth"})

	token, err := codec.Encode(jwt.MapClaims{"sub": "alice@example.com"})
	require.NoError(t, err)

	claims, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "cookie-auth", claims["iss"])

	foreign, err := newCodec(t, testSecret, configOverrides{issuer: "other"}).
		Encode(jwt.MapClaims{"sub": "alice@example.com"})
	require.NoError(t, err)

	_, err = codec.Decode(foreign)
	assert.ErrorIs(t, err, auth.ErrTokenMalformed)
}

func TestTokenCodec_KeyRotation(t *testing.T) {
	const oldSecret = "old-signing-key-0123456789abcdefg"

	oldCodec := newCodec(t, oldSecret, configOverrides{keyID: "k1"})
	oldToken, err := oldCodec.Encode(jwt.MapClaims{"sub": "alice@example.com"})
	require.NoError(t, err)

	rotated := newCodec(t, testSecret, configOverrides{
		keyID:   "k2",
		retired: map[string]string{"k1": oldSecret},
	})

	newToken, err := rotated.Encode(jwt.MapClaims{"sub": "bob@example.com"})
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(newToken, jwt.MapClaims{})
	require.NoError(t, err)
	assert.Equal(t, "k2", parsed.Header["kid"])

	claims, err := rotated.Decode(oldToken)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims["sub"])

	claims, err = rotated.Decode(newToken)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", claims["sub"])

	_, err = oldCodec.Decode(newToken)
	assert.ErrorIs(t, err, auth.ErrTokenMalformed, "k2 is unknown to the old codec")

	t.Run("token without kid", func(t *testing.T) {
		bare, err := newCodec(t, testSecret).Encode(jwt.MapClaims{"sub": "alice@example.com"})
		require.NoError(t, err)

		_, err = rotated.Decode(bare)
		assert.ErrorIs(t, err, auth.ErrTokenMalformed)
	})
}
