package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/support-ticket-core/pkg/util"
)

const agentKey = "auth_agent"

// Middleware validates bearer tokens on mutating routes.
type Middleware struct {
	tokens *TokenManager
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenManager) *Middleware {
	return &Middleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
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

	c.Locals(agentKey, claims.AgentID)
	return c.Next()
}

// AgentFromContext retrieves the authenticated agent id.
func AgentFromContext(c *fiber.Ctx) (string, bool) {
	val := c.Locals(agentKey)
	if val == nil {
		return "", false
	}
	agentID, ok := val.(string)
	return agentID, ok
}
