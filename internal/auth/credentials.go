package auth

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/flightapp/flight-auth/internal/domain"
)

// CredentialLookup is the read side of the credential store the verifier needs.
// Implementations return (nil, nil) when no record exists.
type CredentialLookup interface {
	FindByUsername(ctx context.Context, username string) (*domain.Credential, error)
}

// CredentialVerifier decides whether a username/password pair belongs to an enabled account.
type CredentialVerifier struct {
	store  CredentialLookup
	hasher PasswordHasher
	logger *zap.Logger

	// dummy is compared against when the username is unknown so both paths pay for one hash check.
	dummy string
}

// NewCredentialVerifier constructs a verifier.
func NewCredentialVerifier(store CredentialLookup, hasher PasswordHasher, logger *zap.Logger) *CredentialVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	dummy, err := hasher.Hash("flight-auth-unknown-user")
	if err != nil {
		logger.Warn("failed to prepare dummy digest", zap.Error(err))
	}
	return &CredentialVerifier{store: store, hasher: hasher, logger: logger, dummy: dummy}
}

// Verify returns the identity for a valid pair and nil otherwise. Unknown user,
// wrong password and disabled account all return (nil, nil) so callers cannot
// tell them apart. A store failure is the only error, wrapped in ErrCollaboratorFailure.
func (v *CredentialVerifier) Verify(ctx context.Context, username, password string) (*domain.Identity, error) {
	cred, err := v.store.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCollaboratorFailure, err)
	}
	if cred == nil {
		v.hasher.Verify(password, v.dummy)
		v.reject(username, ErrCredentialNotFound)
		return nil, nil
	}
	if !v.hasher.Verify(password, cred.PasswordHash) {
		v.reject(username, ErrInvalidPassword)
		return nil, nil
	}
	if !cred.Enabled {
		v.reject(username, ErrAccountDisabled)
		return nil, nil
	}
	return cred.Identity(), nil
}

func (v *CredentialVerifier) reject(username string, reason error) {
	v.logger.Debug("credential rejected", zap.String("username", username), zap.Error(reason))
}
