package config

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-print"
)

const redacted = "[redacted]"

type BaseConfig struct {
	App         App         `koanf:"app" json:"app"`
	Auth        Auth        `koanf:"auth" json:"auth"`
	Persistence Persistence `koanf:"persistence" json:"persistence"`
	Server      Server      `koanf:"server" json:"server"`
	Seed        Seed        `koanf:"seed" json:"seed"`
}

type App struct {
	Name     string `koanf:"name" json:"name"`
	Debug    bool   `koanf:"debug" json:"debug"`
	LogLevel string `koanf:"log_level" json:"log_level"`
}

type Persistence struct {
	Driver  string `koanf:"driver" json:"driver"`
	DSN     string `koanf:"dsn" json:"dsn"`
	Migrate bool   `koanf:"migrate" json:"migrate"`
}

type Server struct {
	Address                   string `koanf:"address" json:"address"`
	ShutdownTimeoutExpression string `koanf:"shutdown_timeout" json:"shutdown_timeout"`
}

// Seed describes a user created on startup when Email is set
type Seed struct {
	Email     string `koanf:"email" json:"email"`
	Password  string `koanf:"password" json:"password"`
	FirstName string `koanf:"first_name" json:"first_name"`
	LastName  string `koanf:"last_name" json:"last_name"`
	Role      string `koanf:"role" json:"role"`
}

// Defaults returns the configuration used before any source is applied
func Defaults() BaseConfig {
	return BaseConfig{
		App: App{
			Name:     "go-cookie-auth",
			LogLevel: "info",
		},
		Auth: Auth{
			SigningMethod:   "HS256",
			TokenExpiration: 24,
			CookieName:      "access_token",
			AuthScheme:      "Bearer",
			CookieSameSite:  "Lax",
			ContextKey:      "user",
			LoginRoute:      "/login",
			LoginRedirect:   "/",
		},
		Persistence: Persistence{
			Driver:  "sqlite",
			DSN:     "file:auth.db?cache=shared",
			Migrate: true,
		},
		Server: Server{
			Address:                   ":3000",
			ShutdownTimeoutExpression: "10s",
		},
		Seed: Seed{
			Role: "member",
		},
	}
}

func (c BaseConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Auth),
		validation.Field(&c.Persistence),
		validation.Field(&c.Server),
		validation.Field(&c.Seed),
	)
}

func (p Persistence) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Driver, validation.Required, validation.In("sqlite", "postgres")),
		validation.Field(&p.DSN, validation.Required),
	)
}

func (s Server) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Address, validation.Required),
		validation.Field(&s.ShutdownTimeoutExpression, validation.By(isDuration)),
	)
}

func (s Seed) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Email, is.Email),
		validation.Field(&s.Password, validation.By(func(value any) error {
			if s.Email != "" && s.Password == "" {
				return errors.New("is required when email is set")
			}
			return nil
		})),
		validation.Field(&s.Role, validation.In("guest", "member", "admin", "owner")),
	)
}

// GetShutdownTimeout parses the shutdown timeout expression, it falls back
// to ten seconds.
func (s Server) GetShutdownTimeout() time.Duration {
	dur, err := time.ParseDuration(s.ShutdownTimeoutExpression)
	if err != nil || dur <= 0 {
		return 10 * time.Second
	}
	return dur
}

// String renders the configuration with secrets redacted
func (c BaseConfig) String() string {
	out := c
	if out.Auth.SigningKey != "" {
		out.Auth.SigningKey = redacted
	}

	if len(c.Auth.RetiredSigningKeys) > 0 {
		out.Auth.RetiredSigningKeys = make(map[string]string, len(c.Auth.RetiredSigningKeys))
		for kid := range c.Auth.RetiredSigningKeys {
			out.Auth.RetiredSigningKeys[kid] = redacted
		}
	}

	if out.Seed.Password != "" {
		out.Seed.Password = redacted
	}

	return print.MaybePrettyJSON(out)
}

func isDuration(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := time.ParseDuration(s); err != nil {
		return fmt.Errorf("must be a duration: %w", err)
	}
	return nil
}
