package gateway

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/flightapp/flight-auth/internal/config"
	"github.com/flightapp/flight-auth/internal/domain"
)

// Route maps a path prefix to an upstream base URL.
type Route struct {
	Name      string
	Prefix    string
	Upstream  string
	Protected bool

	// Roles, when set, restricts a protected route to tokens carrying one of them.
	Roles []domain.Role
}

// DefaultRoutes builds the route table: the identity service is public,
// everything else sits behind token enforcement.
func DefaultRoutes(cfg config.GatewayConfig) []Route {
	return []Route{
		{Name: "auth-service", Prefix: "/api/auth", Upstream: cfg.AuthServiceURL},
		{Name: "flight-service", Prefix: "/api/flights", Upstream: cfg.FlightServiceURL, Protected: true},
	}
}

// validateRoutes normalizes upstream URLs and rejects duplicate prefixes.
func validateRoutes(routes []Route) ([]Route, error) {
	seen := make(map[string]struct{}, len(routes))
	out := make([]Route, 0, len(routes))
	for _, r := range routes {
		if !strings.HasPrefix(r.Prefix, "/") {
			return nil, fmt.Errorf("route %q: prefix must start with /", r.Name)
		}
		r.Prefix = strings.TrimSuffix(r.Prefix, "/")
		if len(r.Roles) > 0 && !r.Protected {
			return nil, fmt.Errorf("route %q: roles require a protected route", r.Name)
		}
		if _, dup := seen[r.Prefix]; dup {
			return nil, fmt.Errorf("route %q: duplicate prefix %s", r.Name, r.Prefix)
		}
		seen[r.Prefix] = struct{}{}

		u, err := url.Parse(r.Upstream)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, fmt.Errorf("route %q: invalid upstream %q", r.Name, r.Upstream)
		}
		r.Upstream = strings.TrimSuffix(r.Upstream, "/")
		out = append(out, r)
	}
	return out, nil
}
