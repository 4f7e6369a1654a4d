// Package model defines domain entities used by services and repositories.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/fortivault/fortivault/internal/errs"
)

// Role is the authorization level of a user. Only RoleUser and RoleAdmin are valid.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole converts s into a Role, rejecting anything outside the closed set.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleUser, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", errs.ErrValidation, s)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// String implements fmt.Stringer.
func (r Role) String() string { return string(r) }

// UnmarshalText validates roles arriving through JSON or other text codecs.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// User is a vault owner. The master password hash never leaves the server.
type User struct {
	ID                 uuid.UUID
	Name               string
	Email              string // unique, stored trimmed and lower-cased
	MasterPasswordHash []byte // bcrypt
	Role               Role
	CreatedAt          time.Time
}

// CredentialRecord is one stored website login. EncryptedPassword is an "ivHex:cipherHex" blob.
type CredentialRecord struct {
	ID                uuid.UUID
	OwnerID           uuid.UUID
	Website           string
	WebsiteURL        string
	Username          string
	EncryptedPassword string
	CreatedAt         time.Time
}

// Credential is a decrypted view of a CredentialRecord, produced only on the way out.
type Credential struct {
	ID         uuid.UUID
	Website    string
	WebsiteURL string
	Username   string
	Password   string
	CreatedAt  time.Time
}

// UserSummary is the admin listing row for a user.
type UserSummary struct {
	ID            uuid.UUID
	Name          string
	Email         string
	Role          Role
	CreatedAt     time.Time
	PasswordCount int
}

// Stats aggregates vault-wide counters.
type Stats struct {
	TotalUsers     int
	TotalPasswords int
}

// Identity is the authenticated subject of a request.
type Identity struct {
	UserID uuid.UUID
	Role   Role
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// Session is an issued session token with its validity window.
type Session struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
