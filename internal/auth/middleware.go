package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workflow-engine/internal/domain"
	apperrors "github.com/spec-kit/workflow-engine/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller. Identity lives in the
// external identity service; the token is the source of truth here.
type Principal struct {
	UserID      string
	Role        string
	Email       string
	DisplayName string
}

// User converts the principal into the domain user projection.
func (p *Principal) User() *domain.User {
	return &domain.User{
		ID:          p.UserID,
		Role:        p.Role,
		Email:       p.Email,
		DisplayName: p.DisplayName,
	}
}

// AuthMiddleware validates bearer tokens.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(principalKey, &Principal{
		UserID:      claims.Subject,
		Role:        claims.Role,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
	})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
