package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// TokenConfig is the immutable signing policy handed to NewTokenCodec.
type TokenConfig struct {
	Secret    string
	TTL       time.Duration
	Algorithm string
	Issuer    string
}

type hmacPolicy struct {
	method    *jwt.SigningMethodHMAC
	minSecret int
}

// Secrets must carry at least as many bytes as the digest they key.
var hmacPolicies = map[string]hmacPolicy{
	"HS256": {method: jwt.SigningMethodHS256, minSecret: 32},
	"HS384": {method: jwt.SigningMethodHS384, minSecret: 48},
	"HS512": {method: jwt.SigningMethodHS512, minSecret: 64},
}

var registeredClaims = map[string]struct{}{
	"sub": {},
	"iat": {},
	"exp": {},
	"iss": {},
}

// Claims is the verified content of a token.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time

	// Values holds the application claims (email, role, ...) without the registered ones.
	Values map[string]any
}

// TokenCodec issues and verifies HMAC signed JWTs. It is safe for concurrent use;
// nothing about it changes after construction.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	issuer string
	method *jwt.SigningMethodHMAC
	parser *jwt.Parser
	now    func() time.Time
}

// CodecOption customizes a TokenCodec at construction.
type CodecOption func(*TokenCodec)

// WithClock replaces the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewTokenCodec validates the signing policy and builds a codec.
func NewTokenCodec(cfg TokenConfig, opts ...CodecOption) (*TokenCodec, error) {
	alg := strings.ToUpper(strings.TrimSpace(cfg.Algorithm))
	if alg == "" {
		alg = "HS256"
	}
	policy, ok := hmacPolicies[alg]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, cfg.Algorithm)
	}
	if len(cfg.Secret) < policy.minSecret {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrWeakSecret, alg, policy.minSecret, len(cfg.Secret))
	}
	if cfg.TTL < time.Second {
		return nil, ErrInvalidTTL
	}

	codec := &TokenCodec{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		method: policy.method,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(codec)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{policy.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(codec.now),
		// reject non-canonical base64 so no two signature strings verify alike
		jwt.WithStrictDecoding(),
	}
	if codec.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(codec.issuer))
	}
	codec.parser = jwt.NewParser(parserOpts...)

	return codec, nil
}

// Encode signs a token for subject carrying the given claims. Registered claim
// names in claims are overwritten. An empty subject is omitted from the payload
// and decodes back to "".
func (c *TokenCodec) Encode(subject string, claims map[string]any) (string, error) {
	issuedAt := c.now()
	payload := make(jwt.MapClaims, len(claims)+4)
	for k, v := range claims {
		payload[k] = v
	}
	for k := range registeredClaims {
		delete(payload, k)
	}
	if subject != "" {
		payload["sub"] = subject
	}
	if c.issuer != "" {
		payload["iss"] = c.issuer
	}
	payload["iat"] = jwt.NewNumericDate(issuedAt)
	payload["exp"] = jwt.NewNumericDate(issuedAt.Add(c.ttl))

	signed, err := jwt.NewWithClaims(c.method, payload).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature first and expiry second, then returns the claims.
// The returned error is always one of ErrMalformedToken, ErrBadSignature or ErrExpired.
func (c *TokenCodec) Decode(token string) (*Claims, error) {
	parsed, err := c.parser.ParseWithClaims(token, jwt.MapClaims{}, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	payload, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformedToken
	}

	out := &Claims{Values: make(map[string]any, len(payload))}
	if out.Subject, err = payload.GetSubject(); err != nil {
		return nil, ErrMalformedToken
	}
	if iat, err := payload.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	if exp, err := payload.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	for k, v := range payload {
		if _, reserved := registeredClaims[k]; reserved {
			continue
		}
		out.Values[k] = v
	}
	return out, nil
}

// Validate reports whether token decodes cleanly. It never panics.
func (c *TokenCodec) Validate(token string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	_, err := c.Decode(token)
	return err == nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrMalformedToken
	}
}
