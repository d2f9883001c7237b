package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// RequireRole ensures the caller holds at least one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewAuthenticationRequired("authentication required")
		}
		for _, role := range allowed {
			if user.HasRole(role) {
				return c.Next()
			}
		}
		return apperrors.NewAccessDenied("insufficient role")
	}
}

// RequireAuthenticated ensures a caller is present without a role check.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewAuthenticationRequired("authentication required")
		}
		return c.Next()
	}
}
