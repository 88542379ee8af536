package http

import (
	"errors"
	"time"

	"mission-control/internal/auth/domain/model"
	"mission-control/internal/auth/usecase"
	apperrors "mission-control/internal/shared/errors"

	"github.com/gofiber/fiber/v2"
)

// AuthHTTPHandler handles HTTP requests for authentication
type AuthHTTPHandler struct {
	usecase        usecase.AuthUsecaseInterface
	cookieName     string
	cookiePath     string
	cookieDomain   string
	cookieMaxAge   int
	cookieSecure   bool
	cookieHTTPOnly bool
	cookieSameSite string
}

// NewAuthHTTPHandler creates a new authentication HTTP handler
func NewAuthHTTPHandler(
	uc usecase.AuthUsecaseInterface,
	cookieName, cookiePath, cookieDomain string,
	cookieMaxAge int,
	cookieSecure, cookieHTTPOnly bool,
	cookieSameSite string,
) *AuthHTTPHandler {
	return &AuthHTTPHandler{
		usecase:        uc,
		cookieName:     cookieName,
		cookiePath:     cookiePath,
		cookieDomain:   cookieDomain,
		cookieMaxAge:   cookieMaxAge,
		cookieSecure:   cookieSecure,
		cookieHTTPOnly: cookieHTTPOnly,
		cookieSameSite: cookieSameSite,
	}
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	AccessToken string          `json:"accessToken"`
	TokenType   string          `json:"tokenType"`
	ExpiresIn   int             `json:"expiresIn"`
	User        *model.Operator `json:"user"`
}

// SetupAuthRoutesWithMiddleware mounts login and logout publicly, /me behind Protect and
// account creation behind the admin role.
func (h *AuthHTTPHandler) SetupAuthRoutesWithMiddleware(router fiber.Router, middleware *AuthMiddleware) {
	router.Post("/login", middleware.RateLimiter(10, time.Minute), h.Login)
	router.Post("/logout", h.Logout)

	protected := router.Group("/", middleware.Protect())
	protected.Get("/me", h.GetCurrentUser)
	protected.Post("/register", middleware.RequireRole("admin"), h.Register)
}

// Login handles user login. A rejected attempt also drops any cookie the client holds.
func (h *AuthHTTPHandler) Login(c *fiber.Ctx) error {
	var req usecase.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, apperrors.NewValidationError("Invalid request body").WithCause(apperrors.ErrInvalidInput))
	}

	op, token, err := h.usecase.Login(c.UserContext(), req)
	if err != nil {
		if apperrors.IsAuthentication(err) {
			h.clearCookie(c)
		}
		return writeError(c, err)
	}

	h.setCookie(c, token)
	return c.JSON(h.response(op, token))
}

// Register creates an operator account. The caller stays logged in as themselves, so
// no cookie is set.
func (h *AuthHTTPHandler) Register(c *fiber.Ctx) error {
	var req usecase.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, apperrors.NewValidationError("Invalid request body").WithCause(apperrors.ErrInvalidInput))
	}

	op, token, err := h.usecase.Register(c.UserContext(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(h.response(op, token))
}

// Logout clears the auth cookie. Tokens are stateless and stay valid until they expire.
func (h *AuthHTTPHandler) Logout(c *fiber.Ctx) error {
	h.clearCookie(c)
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// GetCurrentUser returns the operator behind the request's token.
func (h *AuthHTTPHandler) GetCurrentUser(c *fiber.Ctx) error {
	userID, ok := GetUserID(c)
	if !ok {
		return writeError(c, apperrors.NewAuthenticationError("Authentication required"))
	}
	op, err := h.usecase.GetOperator(c.UserContext(), userID)
	if err != nil {
		// the token outlived its account
		if apperrors.IsNotFound(err) {
			h.clearCookie(c)
		}
		return writeError(c, err)
	}
	return c.JSON(op)
}

func (h *AuthHTTPHandler) response(op *model.Operator, token string) AuthResponse {
	return AuthResponse{AccessToken: token, TokenType: "Bearer", ExpiresIn: h.cookieMaxAge, User: op}
}

func writeError(c *fiber.Ctx, err error) error {
	body := fiber.Map{"error": string(apperrors.ErrorTypeInternal), "message": err.Error()}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		body["error"] = string(appErr.Type)
		body["message"] = appErr.Message
		if appErr.Code != "" {
			body["code"] = appErr.Code
		}
		if len(appErr.Details) > 0 {
			body["details"] = appErr.Details
		}
	} else if apperrors.IsStorage(err) {
		body["error"] = string(apperrors.ErrorTypeStorage)
	}
	return c.Status(apperrors.HTTPStatus(err)).JSON(body)
}

func (h *AuthHTTPHandler) setCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     h.cookiePath,
		Domain:   h.cookieDomain,
		MaxAge:   h.cookieMaxAge,
		Secure:   h.cookieSecure,
		HTTPOnly: h.cookieHTTPOnly,
		SameSite: h.cookieSameSite,
		Expires:  time.Now().Add(time.Duration(h.cookieMaxAge) * time.Second),
	})
}

func (h *AuthHTTPHandler) clearCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     h.cookiePath,
		Domain:   h.cookieDomain,
		MaxAge:   -1,
		Secure:   h.cookieSecure,
		HTTPOnly: h.cookieHTTPOnly,
		SameSite: h.cookieSameSite,
		Expires:  time.Now().Add(-1 * time.Hour),
	})
}
