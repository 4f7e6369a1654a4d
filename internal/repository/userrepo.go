// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/fortivault/fortivault/internal/model"
)

// UserRepository provides access to vault owners and admin aggregates.
type UserRepository interface {
	// Create inserts a new user; errs.ErrDuplicateEmail if the email is taken.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads a user by normalized email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// SetRole changes the role and returns the updated user.
	SetRole(ctx context.Context, id uuid.UUID, role model.Role) (*model.User, error)
	// Delete removes the user together with every owned credential record.
	Delete(ctx context.Context, id uuid.UUID) error
	// ListSummaries returns all users with their stored password counts, oldest first.
	ListSummaries(ctx context.Context) ([]model.UserSummary, error)
	// Stats counts users and stored passwords.
	Stats(ctx context.Context) (model.Stats, error)
}
