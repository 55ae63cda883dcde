package gateway

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"go.uber.org/zap"

	"github.com/flightapp/flight-auth/internal/auth"
)

const defaultUpstreamTimeout = 30 * time.Second

// Gateway forwards requests to upstream services, enforcing authentication on
// protected routes before dispatch.
type Gateway struct {
	routes         []Route
	enforcer       *auth.EdgeAuthEnforcer
	identityHeader string
	timeout        time.Duration
	logger         *zap.Logger
}

// Options configures a Gateway.
type Options struct {
	Routes         []Route
	Tokens         auth.TokenDecoder
	IdentityHeader string
	Timeout        time.Duration
	Logger         *zap.Logger
}

// New validates the route table and builds the enforcer.
func New(opts Options) (*Gateway, error) {
	routes, err := validateRoutes(opts.Routes)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	header := opts.IdentityHeader
	if header == "" {
		header = auth.DefaultIdentityHeader
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultUpstreamTimeout
	}

	return &Gateway{
		routes:         routes,
		enforcer:       auth.NewEdgeAuthEnforcer(opts.Tokens, header, logger.Named("enforcer")),
		identityHeader: header,
		timeout:        timeout,
		logger:         logger,
	}, nil
}

// Register mounts every route on app.
func (g *Gateway) Register(app *fiber.App) {
	for _, route := range g.routes {
		switch {
		case route.Protected && len(route.Roles) > 0:
			app.Use(route.Prefix, g.enforcer.Handle, auth.RequireRole(route.Roles...), g.forward(route))
		case route.Protected:
			app.Use(route.Prefix, g.enforcer.Handle, g.forward(route))
		default:
			app.Use(route.Prefix, g.stripIdentity, g.forward(route))
		}
		g.logger.Info("route registered",
			zap.String("name", route.Name),
			zap.String("prefix", route.Prefix),
			zap.String("upstream", route.Upstream),
			zap.Bool("protected", route.Protected))
	}
}

// stripIdentity keeps clients from asserting an identity on public routes.
func (g *Gateway) stripIdentity(c *fiber.Ctx) error {
	c.Request().Header.Del(g.identityHeader)
	return c.Next()
}

func (g *Gateway) forward(route Route) fiber.Handler {
	return func(c *fiber.Ctx) error {
		target := route.Upstream + c.OriginalURL()
		if err := proxy.DoTimeout(c, target, g.timeout); err != nil {
			g.logger.Error("upstream request failed",
				zap.String("route", route.Name),
				zap.String("path", c.Path()),
				zap.Error(err))
			return fiber.NewError(fiber.StatusBadGateway, "upstream unavailable")
		}
		return nil
	}
}
