package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/flightapp/flight-auth/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health *handlers.HealthHandler
	Auth   *handlers.AuthHandler

	// CredentialLimiter guards login and register. Nil disables limiting.
	CredentialLimiter fiber.Handler
}

// RegisterRoutes wires HTTP routes of the identity service.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	RegisterHealthRoutes(app, cfg.Health)

	limit := cfg.CredentialLimiter
	if limit == nil {
		limit = func(c *fiber.Ctx) error { return c.Next() }
	}

	authGroup := app.Group("/api/auth")
	authGroup.Post("/login", limit, cfg.Auth.Login)
	authGroup.Post("/register", limit, cfg.Auth.Register)
	authGroup.Post("/validate", cfg.Auth.ValidateBody)
	authGroup.Get("/validate", cfg.Auth.ValidateHeader)
}

// RegisterHealthRoutes wires the probes shared by every binary.
func RegisterHealthRoutes(app *fiber.App, health *handlers.HealthHandler) {
	app.Get("/health/live", health.Live)
	app.Get("/health/ready", health.Ready)
	app.Get("/health/metrics", health.Metrics)
}
