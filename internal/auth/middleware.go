package auth

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	identityKey  = "auth_identity"
	bearerPrefix = "Bearer "

	// DefaultIdentityHeader carries the verified subject to downstream services.
	DefaultIdentityHeader = "X-User-Name"
)

// TokenDecoder is the part of TokenCodec the enforcer depends on.
type TokenDecoder interface {
	Decode(token string) (*Claims, error)
}

// EdgeAuthEnforcer validates bearer tokens in front of backend dispatch and
// annotates accepted requests with the verified subject.
type EdgeAuthEnforcer struct {
	tokens         TokenDecoder
	identityHeader string
	logger         *zap.Logger
}

// NewEdgeAuthEnforcer constructs the middleware. An empty identityHeader falls back to DefaultIdentityHeader.
func NewEdgeAuthEnforcer(tokens TokenDecoder, identityHeader string, logger *zap.Logger) *EdgeAuthEnforcer {
	if identityHeader == "" {
		identityHeader = DefaultIdentityHeader
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EdgeAuthEnforcer{tokens: tokens, identityHeader: identityHeader, logger: logger}
}

// Handle enforces authentication for protected routes. Every failure produces
// the same bare 401 so callers cannot learn which check failed.
func (m *EdgeAuthEnforcer) Handle(c *fiber.Ctx) error {
	// Whatever the client sent under the identity header is never trusted.
	c.Request().Header.Del(m.identityHeader)

	claims, err := m.authenticate(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		m.logger.Debug("request rejected",
			zap.String("path", c.Path()),
			zap.String("method", c.Method()),
			zap.Error(err))
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		c.Status(fiber.StatusUnauthorized)
		return nil
	}

	c.Request().Header.Set(m.identityHeader, claims.Subject)
	c.Locals(identityKey, claims.Subject)
	c.Locals(claimsKey, claims)
	return c.Next()
}

// authenticate resolves the header to verified claims with a non-empty
// subject. Panics from the decoder are turned into errors.
func (m *EdgeAuthEnforcer) authenticate(header string) (claims *Claims, err error) {
	defer func() {
		if r := recover(); r != nil {
			claims, err = nil, fmt.Errorf("token verification panicked: %v", r)
		}
	}()

	if header == "" {
		return nil, ErrMissingAuthHeader
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return nil, ErrMalformedBearer
	}

	claims, err = m.tokens.Decode(strings.TrimPrefix(header, bearerPrefix))
	if err != nil {
		return nil, err
	}
	if claims == nil || claims.Subject == "" {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

// IdentityFromContext retrieves the subject the enforcer verified for this request.
func IdentityFromContext(c *fiber.Ctx) (string, bool) {
	subject, ok := c.Locals(identityKey).(string)
	return subject, ok && subject != ""
}
