package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/auth"
)

// AuthHandler issues operator tokens.
type AuthHandler struct {
	login *auth.OperatorLogin
}

// NewAuthHandler constructs handler.
func NewAuthHandler(login *auth.OperatorLogin) *AuthHandler {
	return &AuthHandler{login: login}
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	token, expiresAt, err := h.login.Login(req.Operator, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{Token: token, ExpiresAt: expiresAt}})
}
