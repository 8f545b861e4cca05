package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"postflow/internal/auth"
	"postflow/internal/model"
)

// ClaimsLocalKey is the key RequireAuth stores the token claims under.
const ClaimsLocalKey = "claims"

// RequireAuth rejects requests without a valid bearer token. Token errors are
// returned as auth.ErrToken* for the error handler to render.
func RequireAuth(tokens *auth.TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(fiber.HeaderAuthorization)
		if raw != "" {
			scheme, token, ok := strings.Cut(raw, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				return auth.ErrTokenInvalid
			}
			raw = strings.TrimSpace(token)
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			return err
		}
		c.Locals(ClaimsLocalKey, claims)
		return c.Next()
	}
}

// RequireRole allows only callers holding role. It must run after RequireAuth.
func RequireRole(role model.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := ClaimsFrom(c)
		if claims == nil {
			return auth.ErrTokenMissing
		}
		if claims.Role != role {
			return fiber.NewError(fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

// ClaimsFrom returns the claims stored by RequireAuth, or nil.
func ClaimsFrom(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals(ClaimsLocalKey).(*auth.Claims)
	return claims
}
