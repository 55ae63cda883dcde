package domain

import "time"

// Role names the authorization tier carried in issued tokens.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Credential is the stored account record for a single user.
// Username and Email are unique; the store enforces both with constraints.
type Credential struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         Role
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is what a successful credential check resolves to.
type Identity struct {
	Username string
	Email    string
	Role     Role
}

// Identity projects the credential onto the fields that go into a token.
func (c *Credential) Identity() *Identity {
	return &Identity{Username: c.Username, Email: c.Email, Role: c.Role}
}
