package config

import (
	validation "github.com/go-ozzo/ozzo-validation"
	auth "github.com/goliatone/go-cookie-auth"
)

// minSigningKeyLength is the shortest HS256 secret we accept
const minSigningKeyLength = 32

// Auth holds the authenticator options, it implements auth.Config
type Auth struct {
	SigningKey         string            `koanf:"signing_key" json:"signing_key"`
	SigningMethod      string            `koanf:"signing_method" json:"signing_method"`
	SigningKeyID       string            `koanf:"signing_key_id" json:"signing_key_id"`
	RetiredSigningKeys map[string]string `koanf:"retired_signing_keys" json:"retired_signing_keys"`
	TokenExpiration    int               `koanf:"token_expiration" json:"token_expiration"`
	Issuer             string            `koanf:"issuer" json:"issuer"`
	CookieName         string            `koanf:"cookie_name" json:"cookie_name"`
	AuthScheme         string            `koanf:"auth_scheme" json:"auth_scheme"`
	CookieSecure       bool              `koanf:"cookie_secure" json:"cookie_secure"`
	CookieSameSite     string            `koanf:"cookie_same_site" json:"cookie_same_site"`
	ContextKey         string            `koanf:"context_key" json:"context_key"`
	LoginRoute         string            `koanf:"login_route" json:"login_route"`
	LoginRedirect      string            `koanf:"login_redirect" json:"login_redirect"`
}

var _ auth.Config = Auth{}

func (a Auth) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.SigningKey, validation.Required, validation.Length(minSigningKeyLength, 0)),
		validation.Field(&a.SigningMethod, validation.In("HS256", "HS384", "HS512")),
		validation.Field(&a.TokenExpiration, validation.Min(0)),
		validation.Field(&a.CookieSameSite, validation.In("Lax", "Strict", "None", "lax", "strict", "none")),
	)
}

func (a Auth) GetSigningKey() string                    { return a.SigningKey }
func (a Auth) GetSigningMethod() string                 { return a.SigningMethod }
func (a Auth) GetSigningKeyID() string                  { return a.SigningKeyID }
func (a Auth) GetRetiredSigningKeys() map[string]string { return a.RetiredSigningKeys }
func (a Auth) GetTokenExpiration() int                  { return a.TokenExpiration }
func (a Auth) GetIssuer() string                        { return a.Issuer }
func (a Auth) GetCookieName() string                    { return a.CookieName }
func (a Auth) GetAuthScheme() string                    { return a.AuthScheme }
func (a Auth) GetCookieSecure() bool                    { return a.CookieSecure }
func (a Auth) GetCookieSameSite() string                { return a.CookieSameSite }
func (a Auth) GetContextKey() string                    { return a.ContextKey }
func (a Auth) GetLoginRoute() string                    { return a.LoginRoute }
func (a Auth) GetLoginRedirect() string                 { return a.LoginRedirect }
