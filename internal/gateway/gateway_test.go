package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightapp/flight-auth/internal/auth"
	"github.com/flightapp/flight-auth/internal/config"
	"github.com/flightapp/flight-auth/internal/domain"
)

const testSecret = "mySecretKeyForJWTTokenGenerationAndValidationMustBeLongEnough1234567890"

// echoUpstream answers with the upstream name, the path and the identity header it saw.
func echoUpstream(t *testing.T, name string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, name+" "+r.URL.RequestURI()+" user="+r.Header.Get(auth.DefaultIdentityHeader))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestGateway(t *testing.T) (*fiber.App, *auth.TokenCodec) {
	t.Helper()
	authSrv := echoUpstream(t, "auth")
	flightSrv := echoUpstream(t, "flights")

	codec, err := auth.NewTokenCodec(auth.TokenConfig{Secret: testSecret, TTL: time.Hour})
	require.NoError(t, err)

	gw, err := New(Options{
		Routes: DefaultRoutes(config.GatewayConfig{
			AuthServiceURL:   authSrv.URL,
			FlightServiceURL: flightSrv.URL + "/",
		}),
		Tokens:  codec,
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)

	app := fiber.New()
	gw.Register(app)
	return app, codec
}

func send(t *testing.T, app *fiber.App, method, path string, headers map[string]string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestPublicRouteForwardsWithoutToken(t *testing.T) {
	app, _ := newTestGateway(t)

	status, body := send(t, app, http.MethodPost, "/api/auth/login", map[string]string{
		auth.DefaultIdentityHeader: "admin",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "auth /api/auth/login user=", body)
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	app, codec := newTestGateway(t)

	status, body := send(t, app, http.MethodGet, "/api/flights/search?from=DEL", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Empty(t, body)

	status, _ = send(t, app, http.MethodGet, "/api/flights/search", map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, status)

	token, err := codec.Encode("alice", map[string]any{"role": "USER"})
	require.NoError(t, err)

	status, body = send(t, app, http.MethodGet, "/api/flights/search?from=DEL", map[string]string{
		"Authorization":            "Bearer " + token,
		auth.DefaultIdentityHeader: "mallory",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "flights /api/flights/search?from=DEL user=alice", body)
}

func TestUnknownPathIsNotForwarded(t *testing.T) {
	app, _ := newTestGateway(t)
	status, _ := send(t, app, http.MethodGet, "/api/bookings", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUpstreamDown(t *testing.T) {
	codec, err := auth.NewTokenCodec(auth.TokenConfig{Secret: testSecret, TTL: time.Hour})
	require.NoError(t, err)
	gw, err := New(Options{
		Routes:  []Route{{Name: "dead", Prefix: "/api/auth", Upstream: "http://127.0.0.1:1"}},
		Tokens:  codec,
		Timeout: time.Second,
	})
	require.NoError(t, err)
	app := fiber.New()
	gw.Register(app)

	status, body := send(t, app, http.MethodGet, "/api/auth/validate", nil)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.True(t, strings.Contains(body, "upstream unavailable"))
}

func TestRoleRestrictedRoute(t *testing.T) {
	upstream := echoUpstream(t, "admin")
	codec, err := auth.NewTokenCodec(auth.TokenConfig{Secret: testSecret, TTL: time.Hour})
	require.NoError(t, err)
	gw, err := New(Options{
		Routes: []Route{{
			Name:      "admin",
			Prefix:    "/api/admin",
			Upstream:  upstream.URL,
			Protected: true,
			Roles:     []domain.Role{domain.RoleAdmin},
		}},
		Tokens: codec,
	})
	require.NoError(t, err)
	app := fiber.New()
	gw.Register(app)

	user, err := codec.Encode("alice", map[string]any{"role": "USER"})
	require.NoError(t, err)
	admin, err := codec.Encode("root", map[string]any{"role": "ADMIN"})
	require.NoError(t, err)

	status, _ := send(t, app, http.MethodGet, "/api/admin/flights", map[string]string{"Authorization": "Bearer " + user})
	assert.Equal(t, http.StatusForbidden, status)

	status, body := send(t, app, http.MethodGet, "/api/admin/flights", map[string]string{"Authorization": "Bearer " + admin})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "admin /api/admin/flights user=root", body)
}

func TestValidateRoutes(t *testing.T) {
	_, err := validateRoutes([]Route{{Name: "public admin", Prefix: "/api", Upstream: "http://x", Roles: []domain.Role{domain.RoleAdmin}}})
	assert.Error(t, err)

	_, err = validateRoutes([]Route{{Name: "a", Prefix: "api", Upstream: "http://x"}})
	assert.Error(t, err)

	_, err = validateRoutes([]Route{
		{Name: "a", Prefix: "/api", Upstream: "http://x"},
		{Name: "b", Prefix: "/api/", Upstream: "http://y"},
	})
	assert.Error(t, err)

	_, err = validateRoutes([]Route{{Name: "a", Prefix: "/api", Upstream: "ftp://x"}})
	assert.Error(t, err)

	routes, err := validateRoutes([]Route{{Name: "a", Prefix: "/api/", Upstream: "http://x:8080/"}})
	require.NoError(t, err)
	assert.Equal(t, "/api", routes[0].Prefix)
	assert.Equal(t, "http://x:8080", routes[0].Upstream)
}
