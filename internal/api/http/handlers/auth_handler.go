package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/flightapp/flight-auth/internal/api/dto"
	"github.com/flightapp/flight-auth/internal/service"
	apperrors "github.com/flightapp/flight-auth/pkg/util"
)

const bearerPrefix = "Bearer "

// AuthHandler exposes the identity service endpoints.
type AuthHandler struct {
	auth   *service.AuthService
	logger *zap.Logger
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{auth: authService, logger: logger}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	h.logger.Info("login request", zap.String("username", req.Username))

	out, err := h.auth.Login(c.UserContext(), service.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	status := fiber.StatusOK
	if !out.Success {
		status = fiber.StatusUnauthorized
	}
	return c.Status(status).JSON(dto.NewAuthResponse(out))
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	h.logger.Info("registration request", zap.String("username", req.Username))

	out, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if errors.Is(err, service.ErrInvalidInput) {
		return apperrors.NewValidationError("validation failed", map[string]any{
			"fields": []dto.FieldError{{Field: "password", Rule: "bcryptlen"}},
		})
	}
	if err != nil {
		return err
	}

	status := fiber.StatusCreated
	if !out.Success {
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(dto.NewAuthResponse(out))
}

// ValidateBody handles POST /api/auth/validate with the token in the JSON body.
func (h *AuthHandler) ValidateBody(c *fiber.Ctx) error {
	var req dto.ValidateTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return h.validate(c, req.Token)
}

// ValidateHeader handles GET /api/auth/validate. The Bearer prefix is optional.
func (h *AuthHandler) ValidateHeader(c *fiber.Ctx) error {
	token := strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), bearerPrefix)
	return h.validate(c, token)
}

func (h *AuthHandler) validate(c *fiber.Ctx, token string) error {
	out := h.auth.ValidateToken(c.UserContext(), token)
	status := fiber.StatusOK
	if !out.Valid {
		status = fiber.StatusUnauthorized
	}
	return c.Status(status).JSON(dto.NewValidateTokenResponse(out))
}

func parseAndValidate(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if fields := dto.Validate(req); fields != nil {
		return apperrors.NewValidationError("validation failed", map[string]any{"fields": fields})
	}
	return nil
}
