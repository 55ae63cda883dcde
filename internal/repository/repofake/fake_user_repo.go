package repofake

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flightapp/flight-auth/internal/domain"
	"github.com/flightapp/flight-auth/internal/repository"
)

var _ repository.UserRepository = (*FakeUserRepo)(nil)

// FakeUserRepo is an in-memory credential store that enforces the same
// uniqueness contract as the Postgres implementation.
type FakeUserRepo struct {
	lock     sync.RWMutex
	users    map[string]*domain.Credential // username -> record
	emailIDs map[string]string             // lower(email) -> username

	// Err, when set, is returned by every call.
	Err error
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[string]*domain.Credential),
		emailIDs: make(map[string]string),
	}
}

func (ur *FakeUserRepo) FindByUsername(_ context.Context, username string) (*domain.Credential, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	if ur.Err != nil {
		return nil, ur.Err
	}
	cred, ok := ur.users[username]
	if !ok {
		return nil, nil
	}
	cp := *cred
	return &cp, nil
}

func (ur *FakeUserRepo) ExistsByUsername(_ context.Context, username string) (bool, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	if ur.Err != nil {
		return false, ur.Err
	}
	_, ok := ur.users[username]
	return ok, nil
}

func (ur *FakeUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	if ur.Err != nil {
		return false, ur.Err
	}
	_, ok := ur.emailIDs[normalizeEmail(email)]
	return ok, nil
}

func (ur *FakeUserRepo) Create(_ context.Context, cred *domain.Credential) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if ur.Err != nil {
		return ur.Err
	}
	if _, ok := ur.users[cred.Username]; ok {
		return repository.ErrDuplicateUsername
	}
	email := normalizeEmail(cred.Email)
	if _, ok := ur.emailIDs[email]; ok {
		return repository.ErrDuplicateEmail
	}

	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	cred.CreatedAt, cred.UpdatedAt = now, now

	cp := *cred
	ur.users[cred.Username] = &cp
	ur.emailIDs[email] = cred.Username
	return nil
}

// SetEnabled flips the enabled flag of an existing record.
func (ur *FakeUserRepo) SetEnabled(username string, enabled bool) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if cred, ok := ur.users[username]; ok {
		cred.Enabled = enabled
	}
}

// Count returns the number of stored records.
func (ur *FakeUserRepo) Count() int {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return len(ur.users)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
