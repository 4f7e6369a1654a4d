package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/fortivault/fortivault/internal/errs"
	"github.com/fortivault/fortivault/internal/model"
	"github.com/fortivault/fortivault/internal/repository"
)

// CredentialRepo implements repository.CredentialRepository using PostgreSQL.
// Each record is its own row, so inserts and deletes never rewrite sibling records.
type CredentialRepo struct{ db *DB }

var _ repository.CredentialRepository = (*CredentialRepo)(nil)

// NewCredentialRepo constructs a credential repository.
func NewCredentialRepo(db *DB) *CredentialRepo { return &CredentialRepo{db: db} }

// Insert adds one record row.
func (r *CredentialRepo) Insert(ctx context.Context, rec *model.CredentialRecord) error {
	const q = `
INSERT INTO credentials (id, owner_id, website, website_url, username, encrypted_password, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Pool.Exec(ctx, q,
		rec.ID, rec.OwnerID, rec.Website, rec.WebsiteURL, rec.Username, rec.EncryptedPassword, rec.CreatedAt)
	if isForeignKeyViolation(err) {
		return errs.ErrNotFound
	}
	return err
}

// ListByOwner returns the owner's records ordered by insertion.
func (r *CredentialRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.CredentialRecord, error) {
	var exists bool
	if err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id=$1)`, ownerID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, errs.ErrNotFound
	}

	const q = `
SELECT id, owner_id, website, website_url, username, encrypted_password, created_at
FROM credentials WHERE owner_id=$1
ORDER BY seq`
	rows, err := r.db.Pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.CredentialRecord, 0)
	for rows.Next() {
		var c model.CredentialRecord
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Website, &c.WebsiteURL, &c.Username, &c.EncryptedPassword, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Delete removes the (owner, record) row if present.
func (r *CredentialRepo) Delete(ctx context.Context, ownerID, recordID uuid.UUID) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM credentials WHERE owner_id=$1 AND id=$2`, ownerID, recordID)
	return err
}
