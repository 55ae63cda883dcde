package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flightapp/flight-auth/internal/domain"
)

// Unique constraint names created by the users migration.
const (
	usernameConstraint = "users_username_key"
	emailConstraint    = "users_email_key"
)

var (
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already exists")
)

// UserRepository is the credential store. Uniqueness of username and email is
// enforced by the database; Create reports a lost race as ErrDuplicateUsername
// or ErrDuplicateEmail.
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*domain.Credential, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, cred *domain.Credential) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) Create(ctx context.Context, cred *domain.Credential) error {
	const query = `
        INSERT INTO users (id, username, email, password_hash, first_name, last_name, role, enabled)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING created_at, updated_at`

	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}

	err := r.pool.QueryRow(ctx, query,
		cred.ID,
		cred.Username,
		strings.ToLower(strings.TrimSpace(cred.Email)),
		cred.PasswordHash,
		cred.FirstName,
		cred.LastName,
		cred.Role,
		cred.Enabled,
	).Scan(&cred.CreatedAt, &cred.UpdatedAt)
	return mapUniqueViolation(err)
}

// FindByUsername returns (nil, nil) when no row matches.
func (r *userRepository) FindByUsername(ctx context.Context, username string) (*domain.Credential, error) {
	const query = `
        SELECT id, username, email, password_hash, first_name, last_name, role, enabled, created_at, updated_at
        FROM users WHERE username=$1`

	var cred domain.Credential
	if err := r.pool.QueryRow(ctx, query, username).Scan(
		&cred.ID,
		&cred.Username,
		&cred.Email,
		&cred.PasswordHash,
		&cred.FirstName,
		&cred.LastName,
		&cred.Role,
		&cred.Enabled,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &cred, nil
}

func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE username=$1)`

	var exists bool
	err := r.pool.QueryRow(ctx, query, username).Scan(&exists)
	return exists, err
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE email=$1)`

	var exists bool
	err := r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))).Scan(&exists)
	return exists, err
}

// mapUniqueViolation turns a unique-constraint failure into the matching duplicate error.
func mapUniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return err
	}

	switch pgErr.ConstraintName {
	case usernameConstraint:
		return ErrDuplicateUsername
	case emailConstraint:
		return ErrDuplicateEmail
	}

	// constraint renamed or an expression index; fall back to the detail text
	detail := strings.ToLower(pgErr.Detail)
	switch {
	case strings.Contains(detail, "(username)"):
		return ErrDuplicateUsername
	case strings.Contains(detail, "(email)"), strings.Contains(detail, "lower(email)"):
		return ErrDuplicateEmail
	}
	return err
}
