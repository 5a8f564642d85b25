package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/fleet-support/internal/domain"
	"github.com/spec-kit/fleet-support/internal/events"
	"github.com/spec-kit/fleet-support/internal/repository"
	apperrors "github.com/spec-kit/fleet-support/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	token, expires, err := tm.GenerateToken("agent-001", "Sam Rivera", domain.AuthorRoleAgent)
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "agent-001", claims.Subject)
	assert.Equal(t, "Sam Rivera", claims.Name)
	assert.Equal(t, domain.AuthorRoleAgent, claims.Role)
}

func TestParseTokenRejects(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)

	other, _, err := NewTokenManager("other", time.Minute).GenerateToken("agent-001", "Sam", domain.AuthorRoleAgent)
	require.NoError(t, err)
	_, err = tm.ParseToken(other)
	assert.Error(t, err, "wrong signature")

	expired, _, err := NewTokenManager("secret", time.Nanosecond).GenerateToken("agent-001", "Sam", domain.AuthorRoleAgent)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = tm.ParseToken(expired)
	assert.Error(t, err, "expired")

	badRole, _, err := tm.GenerateToken("agent-001", "Sam", "admin")
	require.NoError(t, err)
	_, err = tm.ParseToken(badRole)
	assert.Error(t, err, "unknown role")

	noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Role:             domain.AuthorRoleAgent,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "agent-001"},
	})
	signed, err := noExpiry.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = tm.ParseToken(signed)
	assert.Error(t, err, "expiry required")
}

func newAuthApp(tm *TokenManager, agents repository.AgentDirectory) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).SendString(fe.Message)
			}
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).SendString(domainErr.Code)
		},
	})
	mw := NewAuthMiddleware(tm, agents)
	app.Get("/whoami", mw.Handle, func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.ErrInternalServerError
		}
		actor := events.ActorFrom(c.UserContext())
		return c.SendString(principal.ID + "|" + principal.Name + "|" + string(actor.Type))
	})
	app.Post("/agents-only", mw.Handle, RequireAgent(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	return app
}

func do(t *testing.T, app *fiber.App, method, path, token string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	agents := repository.NewMemoryAgentDirectory(domain.Agent{ID: "agent-001", Name: "Sam Rivera"})
	app := newAuthApp(tm, agents)

	status, body := do(t, app, http.MethodGet, "/whoami", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, apperrors.CodeUnauthorized, body)

	status, _ = do(t, app, http.MethodGet, "/whoami", "garbage")
	assert.Equal(t, http.StatusUnauthorized, status)

	agentToken, _, err := tm.GenerateToken("agent-001", "", domain.AuthorRoleAgent)
	require.NoError(t, err)
	status, body = do(t, app, http.MethodGet, "/whoami", agentToken)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "agent-001|Sam Rivera|agent", body, "name filled from directory")

	ghostToken, _, err := tm.GenerateToken("agent-999", "Ghost", domain.AuthorRoleAgent)
	require.NoError(t, err)
	status, _ = do(t, app, http.MethodGet, "/whoami", ghostToken)
	assert.Equal(t, http.StatusUnauthorized, status)

	riderToken, _, err := tm.GenerateToken("rider-7", "Ada Rider", domain.AuthorRoleRequester)
	require.NoError(t, err)
	status, body = do(t, app, http.MethodGet, "/whoami", riderToken)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "rider-7|Ada Rider|requester", body)

	status, _ = do(t, app, http.MethodPost, "/agents-only", riderToken)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = do(t, app, http.MethodPost, "/agents-only", agentToken)
	assert.Equal(t, http.StatusNoContent, status)
}
