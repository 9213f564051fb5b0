package auth

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
)

// CSRFContextKey is the locals key the login form reads its CSRF token from
const CSRFContextKey = "csrf"

const invalidCredentialsMessage = "Invalid email or password"

// RegisterAuthRoutes mounts the login and logout handlers on app.
func RegisterAuthRoutes(app fiber.Router, controller *AuthController, middleware ...fiber.Handler) {
	login := append(append([]fiber.Handler{}, middleware...), controller.LoginShow)
	app.Get(controller.Routes.Login, login...).Name("sign-in.get")

	post := append(append([]fiber.Handler{}, middleware...), controller.LoginPost)
	app.Post(controller.Routes.Login, post...).Name("sign-in.post")

	app.Get(controller.Routes.Logout, controller.Auther.IdentityMiddleware(), controller.LogOut).Name("sign-out.get")
}

type AuthControllerRoutes struct {
	Login  string
	Logout string
}

type AuthControllerViews struct {
	Login string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Routes       *AuthControllerRoutes
	Views        *AuthControllerViews
	Auther       HTTPAuthenticator
	ErrorHandler fiber.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

// WithAuthenticator sets the HTTPAuthenticator, it is required.
func WithAuthenticator(auther HTTPAuthenticator) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Auther = auther
		return ac
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		if logger != nil {
			ac.Logger = logger
		}
		return ac
	}
}

// WithDebug dumps login payloads, with the password redacted.
func WithDebug(debug bool) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Debug = debug
		return ac
	}
}

func WithControllerRoutes(routes AuthControllerRoutes) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		if routes.Login != "" {
			ac.Routes.Login = routes.Login
		}
		if routes.Logout != "" {
			ac.Routes.Logout = routes.Logout
		}
		return ac
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		ErrorHandler: defaultControllerErrHandler,
		Routes: &AuthControllerRoutes{
			Login:  DefaultLoginRoute,
			Logout: "/logout",
		},
		Views: &AuthControllerViews{
			Login: "login",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in auth controller...")
	}

	return c
}

func (a *AuthController) LoginShow(ctx *fiber.Ctx) error {
	return ctx.Render(a.Views.Login, fiber.Map{
		"errors": nil,
		"record": nil,
		"csrf":   ctx.Locals(CSRFContextKey),
	})
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
			validation.By(maxPasswordBytes),
		),
	)
}

// maxPasswordBytes counts bytes, not runes
func maxPasswordBytes(value any) error {
	if password, _ := value.(string); len(password) > MaxPasswordLength {
		return fmt.Errorf("must be at most %d bytes long", MaxPasswordLength)
	}
	return nil
}

func (a *AuthController) LoginPost(ctx *fiber.Ctx) error {
	payload := new(LoginRequest)

	if err := ctx.BodyParser(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return ctx.Status(fiber.StatusBadRequest).Render(a.Views.Login, fiber.Map{
			"errors": map[string]string{"form": "Failed to parse form"},
			"csrf":   ctx.Locals(CSRFContextKey),
		})
	}

	payload.Email = strings.TrimSpace(payload.Email)

	if a.Debug {
		a.Logger.Debug("login payload", "payload", print.MaybePrettyJSON(map[string]any{
			"email":    payload.Email,
			"password": "[redacted]",
		}))
	}

	if err := payload.Validate(); err != nil {
		return ctx.Status(fiber.StatusBadRequest).Render(a.Views.Login, fiber.Map{
			"record":     fiber.Map{"email": payload.Email},
			"validation": FormatValidationErrorToMap(err),
			"csrf":       ctx.Locals(CSRFContextKey),
		})
	}

	if err := a.Auther.Login(ctx, payload.Email, payload.Password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return ctx.Status(fiber.StatusUnauthorized).Render(a.Views.Login, fiber.Map{
				"errors": map[string]string{"authentication": invalidCredentialsMessage},
				"record": fiber.Map{"email": payload.Email},
				"csrf":   ctx.Locals(CSRFContextKey),
			})
		}
		a.Logger.Error("login error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return nil
}

func (a *AuthController) LogOut(ctx *fiber.Ctx) error {
	if err := a.Auther.Logout(ctx); err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return ctx.Redirect(a.Auther.LoginRedirect(), fiber.StatusSeeOther)
}

// FormatValidationErrorToMap flattens ozzo field errors to field => message
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		out["form"] = err.Error()
		return out
	}

	for field, ferr := range verrs {
		if ferr != nil {
			out[field] = ferr.Error()
		}
	}
	return out
}

func defaultControllerErrHandler(c *fiber.Ctx, _ error) error {
	return c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
}
