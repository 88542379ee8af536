package http

import (
	"strings"
	"time"

	"mission-control/internal/auth/domain/repository"
	"mission-control/internal/auth/usecase"
	"mission-control/internal/shared/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// Locals keys set by Protect. The docstore handlers read "userID" when building the
// request context.
const (
	localUserID    = "userID"
	localUserEmail = "userEmail"
	localUserRole  = "userRole"
)

// AuthMiddleware provides authentication middleware for Fiber
type AuthMiddleware struct {
	usecase    usecase.AuthUsecaseInterface
	cookieName string
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(uc usecase.AuthUsecaseInterface, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{
		usecase:    uc,
		cookieName: cookieName,
	}
}

// SecurityHeaders adds security headers
func (m *AuthMiddleware) SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		return c.Next()
	}
}

// RateLimiter throttles credential endpoints per client address.
func (m *AuthMiddleware) RateLimiter(max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               max,
		Expiration:        window,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.Get("X-Forwarded-For", c.IP())
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "RATE_LIMITED",
				"message": "Rate limit exceeded. Please try again later.",
			})
		},
	})
}

// Protect rejects requests without a valid token and exposes the claims to handlers.
func (m *AuthMiddleware) Protect() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := m.authenticate(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "AUTHENTICATION_ERROR",
				"message": "Authentication required",
			})
		}
		m.attach(c, claims)
		return c.Next()
	}
}

// OptionalAuth attaches the claims when a valid token is present and otherwise
// continues anonymously.
func (m *AuthMiddleware) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if claims, ok := m.authenticate(c); ok {
			m.attach(c, claims)
		}
		return c.Next()
	}
}

// RequireRole must run after Protect.
func (m *AuthMiddleware) RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		have, _ := c.Locals(localUserRole).(string)
		claims := repository.Claims{Role: have}
		if !claims.HasRole(role) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "FORBIDDEN",
				"message": "Insufficient permissions",
			})
		}
		return c.Next()
	}
}

func (m *AuthMiddleware) authenticate(c *fiber.Ctx) (*repository.Claims, bool) {
	token := m.extractToken(c)
	if token == "" {
		return nil, false
	}
	claims, err := m.usecase.ValidateToken(c.UserContext(), token)
	if err != nil {
		return nil, false
	}
	return claims, true
}

func (m *AuthMiddleware) attach(c *fiber.Ctx, claims *repository.Claims) {
	c.Locals(localUserID, claims.UserID)
	c.Locals(localUserEmail, claims.Email)
	c.Locals(localUserRole, claims.Role)

	ctx := c.UserContext()
	ctx = utils.WithUserID(ctx, claims.UserID)
	ctx = utils.WithUserEmail(ctx, claims.Email)
	ctx = utils.WithUserRole(ctx, claims.Role)
	c.SetUserContext(ctx)
}

// extractToken reads the bearer header, then the cookie, then the token query
// parameter used by websocket clients.
func (m *AuthMiddleware) extractToken(c *fiber.Ctx) string {
	if auth := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if token := c.Cookies(m.cookieName); token != "" {
		return token
	}
	return c.Query("token")
}

// GetUserID returns the operator id Protect attached.
func GetUserID(c *fiber.Ctx) (string, bool) {
	userID, ok := c.Locals(localUserID).(string)
	return userID, ok && userID != ""
}

// GetUserEmail returns the operator email Protect attached.
func GetUserEmail(c *fiber.Ctx) (string, bool) {
	email, ok := c.Locals(localUserEmail).(string)
	return email, ok && email != ""
}
