package service

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/fortivault/fortivault/internal/errs"
	"github.com/fortivault/fortivault/internal/model"
	"github.com/fortivault/fortivault/internal/repository"
)

// AdminService exposes the user directory to administrators.
type AdminService interface {
	ListUsers(ctx context.Context) ([]model.UserSummary, error)
	Stats(ctx context.Context) (model.Stats, error)
	// Promote grants the admin role.
	Promote(ctx context.Context, userID uuid.UUID) (model.User, error)
	// PromoteByEmail is Promote addressed by email, used to bootstrap the first administrator.
	PromoteByEmail(ctx context.Context, email string) (model.User, error)
	// DeleteUser removes a user and everything they stored.
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

// AdminServiceImpl implements AdminService.
type AdminServiceImpl struct {
	users repository.UserRepository
}

var _ AdminService = (*AdminServiceImpl)(nil)

// NewAdminService constructs AdminService.
func NewAdminService(users repository.UserRepository) *AdminServiceImpl {
	return &AdminServiceImpl{users: users}
}

// ListUsers returns every account with its stored-password count.
func (s *AdminServiceImpl) ListUsers(ctx context.Context) ([]model.UserSummary, error) {
	return s.users.ListSummaries(ctx)
}

// Stats returns system-wide user and credential totals.
func (s *AdminServiceImpl) Stats(ctx context.Context) (model.Stats, error) {
	return s.users.Stats(ctx)
}

// Promote grants the admin role to userID.
func (s *AdminServiceImpl) Promote(ctx context.Context, userID uuid.UUID) (model.User, error) {
	if userID == uuid.Nil {
		return model.User{}, fmt.Errorf("%w: user id is required", errs.ErrValidation)
	}
	u, err := s.users.SetRole(ctx, userID, model.RoleAdmin)
	if err != nil {
		return model.User{}, err
	}
	return *u, nil
}

// PromoteByEmail promotes the account registered under email; admins are returned unchanged.
func (s *AdminServiceImpl) PromoteByEmail(ctx context.Context, email string) (model.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return model.User{}, fmt.Errorf("%w: email is required", errs.ErrValidation)
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return model.User{}, err
	}
	if u.Role == model.RoleAdmin {
		return *u, nil
	}
	return s.Promote(ctx, u.ID)
}

// DeleteUser removes the account together with its credentials.
func (s *AdminServiceImpl) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return fmt.Errorf("%w: user id is required", errs.ErrValidation)
	}
	return s.users.Delete(ctx, userID)
}
