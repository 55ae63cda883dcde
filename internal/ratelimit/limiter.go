package ratelimit

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"
)

// Options configures the credential endpoint limiter.
type Options struct {
	Max    int
	Window time.Duration

	// Storage defaults to fiber's in-memory store when nil.
	Storage fiber.Storage
	Logger  *zap.Logger
}

// New returns a fixed-window limiter keyed by client IP and route. Rejected
// requests get 429 with the error envelope used by the rest of the API.
func New(opts Options) fiber.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Max <= 0 {
		opts.Max = 20
	}
	if opts.Window <= 0 {
		opts.Window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        opts.Max,
		Expiration: opts.Window,
		Storage:    opts.Storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|" + c.Path()
		},
		LimitReached: func(c *fiber.Ctx) error {
			logger.Warn("rate limit reached",
				zap.String("ip", c.IP()),
				zap.String("path", c.Path()))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    "RATE_LIMITED",
					"message": "too many requests",
				},
			})
		},
	})
}
