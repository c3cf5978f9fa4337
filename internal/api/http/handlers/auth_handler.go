package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-ticket-core/internal/api/dto"
	"github.com/spec-kit/support-ticket-core/internal/auth"
	"github.com/spec-kit/support-ticket-core/internal/config"
	apperrors "github.com/spec-kit/support-ticket-core/pkg/util"
)

// AuthHandler issues agent tokens.
type AuthHandler struct {
	tokens *auth.TokenManager
	cfg    config.AuthConfig
}

// NewAuthHandler constructs handler.
func NewAuthHandler(tokens *auth.TokenManager, cfg config.AuthConfig) *AuthHandler {
	return &AuthHandler{tokens: tokens, cfg: cfg}
}

// IssueToken POST /auth/token.
func (h *AuthHandler) IssueToken(c *fiber.Ctx) error {
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.AgentID == "" || req.Secret == "" {
		return apperrors.NewValidationError("agent_id and secret required", nil)
	}
	if req.AgentID != h.cfg.AgentID || h.cfg.AgentSecretHash == "" {
		return apperrors.NewUnauthorized("unknown agent")
	}
	if err := auth.CompareSecret(h.cfg.AgentSecretHash, req.Secret); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := h.tokens.GenerateToken(req.AgentID)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.TokenResponse{Token: token, ExpiresAt: expiresAt}})
}
