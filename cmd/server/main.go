package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/template/django/v3"
	"github.com/golang-jwt/jwt/v5"
	auth "github.com/goliatone/go-cookie-auth"
	"github.com/goliatone/go-cookie-auth/config"
	"github.com/goliatone/go-cookie-auth/persistence"
	"github.com/uptrace/bun"
)

//go:embed views
var viewsFS embed.FS

type App struct {
	config *config.BaseConfig
	db     *bun.DB
	users  auth.Users
	auther *auth.Auther
	http   *auth.RouteAuthenticator
	srv    *fiber.App
	logger *slog.Logger
}

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	app := &App{
		config: cfg,
		logger: newLogger(cfg.App),
	}
	slog.SetDefault(app.logger)

	if cfg.App.Debug {
		app.logger.Debug("configuration loaded", "config", cfg.String())
	}

	if err := app.SetupDatabase(ctx); err != nil {
		return err
	}
	defer app.db.Close()

	if err := app.SetupAuth(ctx); err != nil {
		return err
	}

	if err := app.SetupRoutes(); err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() {
		app.logger.Info("listening", "address", cfg.Server.Address)
		errc <- app.srv.Listen(cfg.Server.Address)
	}()

	select {
	case err := <-errc:
		return err
	case sig := <-WaitExitSignal():
		app.logger.Info("shutting down", "signal", sig.String())
	}

	return app.srv.ShutdownWithTimeout(cfg.Server.GetShutdownTimeout())
}

func (a *App) SetupDatabase(ctx context.Context) error {
	db, err := persistence.Open(ctx, persistence.Options{
		Driver: a.config.Persistence.Driver,
		DSN:    a.config.Persistence.DSN,
	})
	if err != nil {
		return err
	}
	a.db = db

	if a.config.Persistence.Migrate {
		if err := persistence.Migrate(ctx, db); err != nil {
			return err
		}
	}

	a.users = auth.NewUsersRepository(db)

	return a.seedUser(ctx)
}

func (a *App) seedUser(ctx context.Context) error {
	seed := a.config.Seed
	if seed.Email == "" {
		return nil
	}

	_, err := a.users.FindUserByEmail(ctx, seed.Email)
	if err == nil {
		return nil
	}

	if !errors.Is(err, auth.ErrIdentityNotFound) {
		return fmt.Errorf("seed lookup: %w", err)
	}

	user, err := a.users.Register(ctx, &auth.User{
		Email:     seed.Email,
		FirstName: seed.FirstName,
		LastName:  seed.LastName,
		Role:      seed.Role,
	}, seed.Password)
	if err != nil {
		return fmt.Errorf("seed register: %w", err)
	}

	a.logger.Info("seeded user", "email", user.Email, "id", user.ID.String())
	return nil
}

func (a *App) SetupAuth(_ context.Context) error {
	lgr := auth.NewSlogLogger(a.logger.With("component", "auth"))
	sink := auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
		a.logger.InfoContext(ctx, "auth activity",
			"event", string(event.EventType),
			"user_id", event.UserID,
			"metadata", event.Metadata,
		)
		return nil
	})

	auther, err := auth.NewAuthenticator(a.users, a.config.Auth)
	if err != nil {
		return err
	}

	auther.
		WithLogger(lgr).
		WithActivitySink(sink).
		WithClaimsDecorator(auth.ClaimsDecoratorFunc(func(_ context.Context, user *auth.User, claims jwt.MapClaims) error {
			claims["role"] = user.Role
			return nil
		}))

	httpAuth, err := auth.NewHTTPAuthenticator(auther, a.config.Auth)
	if err != nil {
		return err
	}

	a.auther = auther
	a.http = httpAuth.WithLogger(lgr).WithActivitySink(sink)

	return nil
}

func (a *App) SetupRoutes() error {
	views, err := fs.Sub(viewsFS, "views")
	if err != nil {
		return err
	}

	engine := django.NewFileSystem(http.FS(views), ".html")
	engine.Reload(a.config.App.Debug)

	a.srv = fiber.New(fiber.Config{
		AppName:           a.config.App.Name,
		Views:             engine,
		PassLocalsToViews: false,
	})

	csrfMiddleware := csrf.New(csrf.Config{
		KeyLookup:      "form:_csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		CookieHTTPOnly: true,
		CookieSecure:   a.config.Auth.CookieSecure,
		ContextKey:     auth.CSRFContextKey,
	})

	controller := auth.NewAuthController(
		auth.WithAuthenticator(a.http),
		auth.WithControllerLogger(auth.NewSlogLogger(a.logger.With("component", "auth:ctrl"))),
		auth.WithDebug(a.config.App.Debug),
	)

	auth.RegisterAuthRoutes(a.srv, controller, csrfMiddleware)

	a.srv.Get("/", a.http.IdentityMiddleware(), func(c *fiber.Ctx) error {
		user, _ := auth.GetUser(c, a.http.ContextKey())
		return c.Render("home", fiber.Map{
			"user": user,
		})
	}).Name("home")

	a.srv.Get("/account", a.http.ProtectedRoute(), func(c *fiber.Ctx) error {
		user, ok := auth.FromContext(c.UserContext())
		if !ok {
			return fiber.ErrUnauthorized
		}
		return c.Render("account", fiber.Map{
			"user": user,
			"name": user.DisplayName(),
		})
	}).Name("account")

	return nil
}

func newLogger(cfg config.App) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if cfg.Debug {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With("app", cfg.Name)
}

func WaitExitSignal() <-chan os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return ch
}
