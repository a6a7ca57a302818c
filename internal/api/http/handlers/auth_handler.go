package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/review-service/internal/api/dto"
	"github.com/spec-kit/review-service/internal/auth"
	"github.com/spec-kit/review-service/internal/domain"
	"github.com/spec-kit/review-service/internal/service"
	apperrors "github.com/spec-kit/review-service/pkg/util/errorutil"
)

// AuthHandler exposes registration, login and logout.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return apperrors.NewValidationError("name, email, password required", nil)
	}

	user, err := h.auth.Register(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewUserSummary(user)})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.UserLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user": dto.NewUserSummary(result.User),
			"auth": dto.AuthResponse{
				Token:        result.Token.Value,
				ExpiresAt:    result.Token.ExpiresAt,
				Role:         result.Session.Role,
				Capabilities: result.Session.Capabilities,
			},
		},
	})
}

// Logout handles POST /auth/logout. With ?all=true every session of the caller is revoked.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if c.QueryBool("all") {
		if err := h.auth.LogoutEverywhere(c.UserContext(), principal.UserID()); err != nil {
			return err
		}
		return c.SendStatus(http.StatusNoContent)
	}
	if err := h.auth.Logout(c.UserContext(), principal.UserID(), principal.Session.Token); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// CreateUser handles POST /admin/users.
func (h *AuthHandler) CreateUser(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return apperrors.NewValidationError("invalid role", map[string]any{"role": req.Role})
	}

	user, err := h.auth.CreateUser(c.UserContext(), auth.SessionFromContext(c), req.Name, req.Email, req.Password, role)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewUserSummary(user)})
}

// ChangeRole handles PATCH /admin/users/:id/role.
func (h *AuthHandler) ChangeRole(c *fiber.Ctx) error {
	var req dto.ChangeRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return apperrors.NewValidationError("invalid role", map[string]any{"role": req.Role})
	}

	user, err := h.auth.ChangeRole(c.UserContext(), auth.SessionFromContext(c), c.Params("id"), role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserSummary(user)})
}
