package dto

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/flightapp/flight-auth/internal/domain"
)

var validate = newValidator()

// bcryptMaxBytes is the longest input bcrypt accepts.
const bcryptMaxBytes = 72

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// max= counts runes; bcrypt limits bytes
	_ = v.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= bcryptMaxBytes
	})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// LoginRequest payload for POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required,bcryptlen"`
}

// RegisterRequest payload for POST /api/auth/register.
type RegisterRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=50"`
	Password  string `json:"password" validate:"required,min=6,bcryptlen"`
	Email     string `json:"email" validate:"required,email,max=255"`
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
}

// ValidateTokenRequest payload for POST /api/auth/validate.
type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// AuthResponse is returned by login and register, successful or not.
type AuthResponse struct {
	Token    string `json:"token,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	Message  string `json:"message"`
}

// ValidateTokenResponse is returned by both validate endpoints.
type ValidateTokenResponse struct {
	Valid    bool   `json:"valid"`
	Username string `json:"username,omitempty"`
	Message  string `json:"message"`
}

// FieldError describes one failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// Validate runs the struct tags of req. The returned slice is nil when req is valid.
func Validate(req any) []FieldError {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Rule: "invalid", Param: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, FieldError{Field: e.Field(), Rule: e.Tag(), Param: e.Param()})
	}
	return out
}

func NewAuthResponse(out *domain.AuthOutcome) AuthResponse {
	return AuthResponse{
		Token:    out.Token,
		Username: out.Username,
		Email:    out.Email,
		Role:     string(out.Role),
		Message:  out.Message,
	}
}

func NewValidateTokenResponse(out *domain.ValidationOutcome) ValidateTokenResponse {
	return ValidateTokenResponse{Valid: out.Valid, Username: out.Username, Message: out.Message}
}
