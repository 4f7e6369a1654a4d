// Package service contains application services for authentication, the credential vault and administration.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	pkgcrypto "github.com/fortivault/fortivault/internal/crypto"
	"github.com/fortivault/fortivault/internal/errs"
	"github.com/fortivault/fortivault/internal/limiter"
	"github.com/fortivault/fortivault/internal/model"
	"github.com/fortivault/fortivault/internal/repository"
	"github.com/fortivault/fortivault/internal/session"
)

// AuthService defines account and session operations.
type AuthService interface {
	// Register creates a user and opens a session for it. caller is nil for anonymous requests.
	Register(ctx context.Context, in RegisterInput, caller *model.Identity) (AuthResult, error)
	// Login applies rate limiting and authenticates by email and master password.
	Login(ctx context.Context, email, masterPassword, ip string) (AuthResult, error)
	// Verify validates a session token without touching storage.
	Verify(token string) (model.Identity, error)
	// CurrentUser loads the account behind a verified identity.
	CurrentUser(ctx context.Context, id model.Identity) (model.User, error)
}

// RegisterInput carries registration fields. Role is nil when the caller did not ask for one.
type RegisterInput struct {
	Name           string `validate:"required,max=200"`
	Email          string `validate:"required,email,max=254"`
	MasterPassword string `validate:"required,max=72"`
	Role           *model.Role
}

// AuthResult is the authenticated user with a fresh session.
type AuthResult struct {
	User    model.User
	Session model.Session
}

// AuthServiceImpl implements AuthService.
type AuthServiceImpl struct {
	users    repository.UserRepository
	hasher   *pkgcrypto.PasswordHasher
	sessions *session.Manager
	lim      limiter.Limiter
	now      func() time.Time
}

var _ AuthService = (*AuthServiceImpl)(nil)

// NewAuthService constructs AuthService. lim may be nil to disable login throttling.
func NewAuthService(users repository.UserRepository, hasher *pkgcrypto.PasswordHasher, sessions *session.Manager, lim limiter.Limiter) *AuthServiceImpl {
	return &AuthServiceImpl{users: users, hasher: hasher, sessions: sessions, lim: lim, now: time.Now}
}

// NormalizeEmail trims and lower-cases an address the way it is stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new user. Choosing a role other than user requires an admin caller.
func (s *AuthServiceImpl) Register(ctx context.Context, in RegisterInput, caller *model.Identity) (AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = NormalizeEmail(in.Email)
	if err := validateStruct(in); err != nil {
		return AuthResult{}, err
	}

	role := model.RoleUser
	if in.Role != nil {
		if !in.Role.Valid() {
			return AuthResult{}, fmt.Errorf("%w: unknown role %q", errs.ErrValidation, *in.Role)
		}
		if *in.Role != model.RoleUser && (caller == nil || !caller.IsAdmin()) {
			return AuthResult{}, fmt.Errorf("%w: only an administrator may assign roles", errs.ErrForbidden)
		}
		role = *in.Role
	}

	switch _, err := s.users.GetByEmail(ctx, in.Email); {
	case err == nil:
		return AuthResult{}, errs.ErrDuplicateEmail
	case !errors.Is(err, errs.ErrNotFound):
		return AuthResult{}, err
	}

	hash, err := s.hasher.Hash([]byte(in.MasterPassword))
	if err != nil {
		if pkgcrypto.IsTooLong(err) {
			return AuthResult{}, fmt.Errorf("%w: master password too long", errs.ErrValidation)
		}
		return AuthResult{}, err
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return AuthResult{}, err
	}
	u := model.User{
		ID:                 uid,
		Name:               in.Name,
		Email:              in.Email,
		MasterPasswordHash: hash,
		Role:               role,
		CreatedAt:          s.now().UTC(),
	}
	// the unique index settles concurrent registrations of one email
	if err := s.users.Create(ctx, &u); err != nil {
		return AuthResult{}, err
	}

	sess, err := s.sessions.Issue(u.ID, u.Role)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{User: u, Session: sess}, nil
}

// Login authenticates with rate limiting by (email, ip).
// Unknown email and wrong password are indistinguishable, including in timing.
func (s *AuthServiceImpl) Login(ctx context.Context, email, masterPassword, ip string) (AuthResult, error) {
	email = NormalizeEmail(email)
	if email == "" || masterPassword == "" {
		return AuthResult{}, fmt.Errorf("%w: email and master password are required", errs.ErrValidation)
	}
	ipHash := limiter.HashIP(ip)

	if s.lim != nil {
		allowed, _, err := s.lim.Allow(ctx, email, ipHash)
		if err != nil {
			return AuthResult{}, err
		}
		if !allowed {
			return AuthResult{}, errs.ErrRateLimited
		}
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return AuthResult{}, err
	}
	var hash []byte
	if u != nil {
		hash = u.MasterPasswordHash
	}
	if !s.hasher.Verify([]byte(masterPassword), hash) {
		if s.lim != nil {
			if blocked, _, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
				return AuthResult{}, errs.ErrRateLimited
			}
		}
		return AuthResult{}, errs.ErrInvalidCredentials
	}

	if s.lim != nil {
		_ = s.lim.Success(ctx, email, ipHash)
	}

	sess, err := s.sessions.Issue(u.ID, u.Role)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{User: *u, Session: sess}, nil
}

// Verify checks a session token.
func (s *AuthServiceImpl) Verify(token string) (model.Identity, error) {
	return s.sessions.Verify(token)
}

// CurrentUser loads the user behind id.
func (s *AuthServiceImpl) CurrentUser(ctx context.Context, id model.Identity) (model.User, error) {
	u, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		return model.User{}, err
	}
	return *u, nil
}
