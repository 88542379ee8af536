package repository

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService issues and checks operator access tokens.
type TokenService interface {
	GenerateToken(ctx context.Context, userID, email, role string) (string, error)
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents JWT claims
type Claims struct {
	UserID string `json:"userID"`
	Email  string `json:"email"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// HasRole reports whether the token carries role. Admins satisfy every role check.
func (c *Claims) HasRole(role string) bool {
	return c.Role == role || c.Role == "admin"
}
