package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fleet-support/internal/domain"
	"github.com/spec-kit/fleet-support/internal/events"
	"github.com/spec-kit/fleet-support/internal/repository"
	apperrors "github.com/spec-kit/fleet-support/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	ID   string
	Name string
	Role domain.AuthorRole
}

// Author converts the principal into a response author.
func (p *Principal) Author() domain.Author {
	return domain.Author{ID: p.ID, Name: p.Name, Role: p.Role}
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens *TokenManager
	agents repository.AgentDirectory
}

// NewAuthMiddleware constructs middleware. When agents is non-nil, agent
// tokens must name an agent known to the directory.
func NewAuthMiddleware(tokens *TokenManager, agents repository.AgentDirectory) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, agents: agents}
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

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	principal := &Principal{ID: claims.Subject, Name: claims.Name, Role: claims.Role}

	if principal.Role == domain.AuthorRoleAgent && m.agents != nil {
		agent, err := m.agents.GetByID(c.UserContext(), principal.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewUnauthorized("agent not found")
			}
			return apperrors.NewInternalError(err)
		}
		if principal.Name == "" {
			principal.Name = agent.Name
		}
	}

	c.Locals(principalKey, principal)
	c.SetUserContext(events.WithActor(c.UserContext(), events.Actor{
		Type: events.ActorType(principal.Role),
		ID:   principal.ID,
		Name: principal.Name,
	}))
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
