package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/flightapp/flight-auth/internal/auth"
	"github.com/flightapp/flight-auth/internal/config"
	"github.com/flightapp/flight-auth/internal/domain"
	"github.com/flightapp/flight-auth/internal/events"
	"github.com/flightapp/flight-auth/internal/repository"
)

// ErrInvalidInput marks a request the service cannot act on as given.
var ErrInvalidInput = errors.New("invalid input")

// LoginInput carries the credentials presented at login.
type LoginInput struct {
	Username string
	Password string
}

// RegisterInput carries a new account's details.
type RegisterInput struct {
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
}

// AuthService coordinates login, registration and token validation.
type AuthService struct {
	users    repository.UserRepository
	verifier *auth.CredentialVerifier
	hasher   auth.PasswordHasher
	tokens   *auth.TokenCodec
	events   events.Dispatcher
	logger   *zap.Logger
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger

	// Hasher defaults to bcrypt at the configured cost.
	Hasher auth.PasswordHasher
}

// NewAuthService builds the service and its token codec. It fails when the
// signing policy in cfg is unusable (short secret, bad TTL, unknown algorithm).
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies, opts ...auth.CodecOption) (*AuthService, error) {
	tokens, err := auth.NewTokenCodec(auth.TokenConfig{
		Secret:    cfg.JWTSecret,
		TTL:       cfg.TokenTTL,
		Algorithm: cfg.JWTAlgorithm,
		Issuer:    cfg.JWTIssuer,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("token codec: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	hasher := deps.Hasher
	if hasher == nil {
		hasher = auth.NewBcryptHasher(cfg.BcryptCost)
	}

	return &AuthService{
		users:    deps.UserRepo,
		verifier: auth.NewCredentialVerifier(deps.UserRepo, hasher, logger),
		hasher:   hasher,
		tokens:   tokens,
		events:   deps.Dispatcher,
		logger:   logger,
	}, nil
}

// Login checks the credentials and issues a token for an enabled account.
// Every rejected pair yields the same message. The error return is reserved
// for store failures and wraps auth.ErrCollaboratorFailure.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*domain.AuthOutcome, error) {
	identity, err := s.verifier.Verify(ctx, in.Username, in.Password)
	if err != nil {
		s.logger.Error("login lookup failed", zap.String("username", in.Username), zap.Error(err))
		return nil, err
	}
	if identity == nil {
		s.logger.Warn("login failed", zap.String("username", in.Username))
		s.publish(ctx, events.NewEvent(events.EventLoginFailed, in.Username, nil))
		return domain.AuthFailure(domain.MsgInvalidCredentials), nil
	}

	outcome, err := s.issue(identity, domain.MsgLoginSuccessful)
	if err != nil {
		return nil, err
	}
	s.logger.Info("login successful", zap.String("username", identity.Username))
	s.publish(ctx, events.NewEvent(events.EventLoginSucceeded, identity.Username, nil))
	return outcome, nil
}

// Register creates an account and issues its first token. Username uniqueness
// is checked before email uniqueness. The checks are advisory: the store's
// unique constraints decide concurrent races, and a lost race is reported with
// the same message as the check.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.AuthOutcome, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	exists, err := s.users.ExistsByUsername(ctx, in.Username)
	if err != nil {
		return nil, s.storeFailure("username lookup", in.Username, err)
	}
	if exists {
		return s.rejectRegistration(ctx, in.Username, domain.MsgUsernameExists), nil
	}

	exists, err = s.users.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return nil, s.storeFailure("email lookup", in.Username, err)
	}
	if exists {
		return s.rejectRegistration(ctx, in.Username, domain.MsgEmailExists), nil
	}

	digest, err := s.hasher.Hash(in.Password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	cred := &domain.Credential{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: digest,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         domain.RoleUser,
		Enabled:      true,
	}
	if err := s.users.Create(ctx, cred); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateUsername):
			return s.rejectRegistration(ctx, in.Username, domain.MsgUsernameExists), nil
		case errors.Is(err, repository.ErrDuplicateEmail):
			return s.rejectRegistration(ctx, in.Username, domain.MsgEmailExists), nil
		default:
			return nil, s.storeFailure("persist credential", in.Username, err)
		}
	}

	outcome, err := s.issue(cred.Identity(), domain.MsgRegistrationSuccessful)
	if err != nil {
		return nil, err
	}
	s.logger.Info("registration successful", zap.String("username", cred.Username))
	s.publish(ctx, events.NewEvent(events.EventUserRegistered, cred.Username, events.RegisteredPayload{
		Email: cred.Email,
		Role:  string(cred.Role),
	}))
	return outcome, nil
}

// ValidateToken verifies a token and that its subject still maps to an enabled
// account. It never returns an error or panics; failures become negative outcomes.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (out *domain.ValidationOutcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("token validation panicked", zap.Any("panic", r))
			out = domain.InvalidToken(domain.MsgValidationFailed)
		}
	}()

	claims, err := s.tokens.Decode(token)
	if err != nil {
		s.logger.Debug("token rejected", zap.Error(err))
		s.publish(ctx, events.NewEvent(events.EventTokenRejected, "", events.RejectionPayload{Reason: err.Error()}))
		return domain.InvalidToken(domain.MsgTokenInvalid)
	}

	cred, err := s.users.FindByUsername(ctx, claims.Subject)
	if err != nil {
		s.logger.Error("token validation lookup failed", zap.String("username", claims.Subject), zap.Error(err))
		return domain.InvalidToken(domain.MsgValidationFailed)
	}
	if cred == nil || !cred.Enabled {
		return domain.InvalidToken(domain.MsgUserUnavailable)
	}

	return &domain.ValidationOutcome{
		Valid:    true,
		Username: cred.Username,
		Message:  domain.MsgTokenValid,
	}
}

// Tokens exposes the underlying codec, e.g. for an in-process enforcer.
func (s *AuthService) Tokens() *auth.TokenCodec {
	return s.tokens
}

func (s *AuthService) issue(identity *domain.Identity, message string) (*domain.AuthOutcome, error) {
	token, err := s.tokens.Encode(identity.Username, map[string]any{
		"email": identity.Email,
		"role":  string(identity.Role),
	})
	if err != nil {
		s.logger.Error("failed to issue token", zap.String("username", identity.Username), zap.Error(err))
		return nil, err
	}
	return domain.AuthSuccess(token, identity, message), nil
}

func (s *AuthService) rejectRegistration(ctx context.Context, username, message string) *domain.AuthOutcome {
	s.logger.Warn("registration rejected", zap.String("username", username), zap.String("reason", message))
	s.publish(ctx, events.NewEvent(events.EventRegistrationRejected, username, events.RejectionPayload{Reason: message}))
	return domain.AuthFailure(message)
}

func (s *AuthService) storeFailure(op, username string, err error) error {
	s.logger.Error("credential store failure", zap.String("op", op), zap.String("username", username), zap.Error(err))
	return fmt.Errorf("%w: %s: %w", auth.ErrCollaboratorFailure, op, err)
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}
