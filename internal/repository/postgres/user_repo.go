package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/fortivault/fortivault/internal/errs"
	"github.com/fortivault/fortivault/internal/model"
	"github.com/fortivault/fortivault/internal/repository"
)

// UserRepo implements repository.UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

var _ repository.UserRepository = (*UserRepo)(nil)

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userCols = `id, name, email, master_password_hash, role, created_at`

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `INSERT INTO users (` + userCols + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Pool.Exec(ctx, q, u.ID, u.Name, u.Email, u.MasterPasswordHash, string(u.Role), u.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrDuplicateEmail
	}
	return err
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByEmail selects a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE email=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, email))
}

// SetRole updates the role in place.
func (r *UserRepo) SetRole(ctx context.Context, id uuid.UUID, role model.Role) (*model.User, error) {
	const q = `UPDATE users SET role=$2 WHERE id=$1 RETURNING ` + userCols
	return scanUser(r.db.Pool.QueryRow(ctx, q, id, string(role)))
}

// Delete removes the user; credentials go with it through ON DELETE CASCADE.
func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ListSummaries returns every user with the number of stored passwords.
func (r *UserRepo) ListSummaries(ctx context.Context) ([]model.UserSummary, error) {
	const q = `
SELECT u.id, u.name, u.email, u.role, u.created_at, COUNT(c.id)
FROM users u LEFT JOIN credentials c ON c.owner_id = u.id
GROUP BY u.id
ORDER BY u.created_at, u.id`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.UserSummary, 0)
	for rows.Next() {
		var (
			s    model.UserSummary
			role string
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Email, &role, &s.CreatedAt, &s.PasswordCount); err != nil {
			return nil, err
		}
		s.Role = model.Role(role)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Stats counts users and stored passwords.
func (r *UserRepo) Stats(ctx context.Context) (model.Stats, error) {
	const q = `SELECT (SELECT COUNT(*) FROM users), (SELECT COUNT(*) FROM credentials)`
	var st model.Stats
	if err := r.db.Pool.QueryRow(ctx, q).Scan(&st.TotalUsers, &st.TotalPasswords); err != nil {
		return model.Stats{}, err
	}
	return st, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.MasterPasswordHash, &role, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	parsed, err := model.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", u.ID, err)
	}
	u.Role = parsed
	return &u, nil
}
