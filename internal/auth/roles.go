package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fleet-support/internal/domain"
	apperrors "github.com/spec-kit/fleet-support/pkg/util/errorutil"
)

// RequireAgent ensures the caller is a support agent. Requesters may open
// tickets and reply, but lifecycle and assignment changes are agent work.
func RequireAgent() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if principal.Role != domain.AuthorRoleAgent {
			return apperrors.NewForbidden("agent role required")
		}
		return c.Next()
	}
}
