package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/flightapp/flight-auth/internal/domain"
)

const claimsKey = "auth_claims"

// RoleFromContext returns the role claim of the verified token, if any.
func RoleFromContext(c *fiber.Ctx) (domain.Role, bool) {
	claims, ok := c.Locals(claimsKey).(*Claims)
	if !ok || claims == nil {
		return "", false
	}
	role, ok := claims.Values["role"].(string)
	return domain.Role(role), ok && role != ""
}

// RequireRole ensures the verified token carries one of the allowed roles.
// It must run after EdgeAuthEnforcer.Handle.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		role, ok := RoleFromContext(c)
		if !ok {
			return c.SendStatus(fiber.StatusForbidden)
		}
		if _, permitted := allowedSet[role]; !permitted {
			return c.SendStatus(fiber.StatusForbidden)
		}
		return c.Next()
	}
}
