package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/fortivault/fortivault/internal/model"
)

// CredentialRepository stores encrypted credential records keyed by (owner, record).
// Writes touch a single record so concurrent writers for one owner never overwrite each other.
type CredentialRepository interface {
	// Insert appends rec to its owner's collection; errs.ErrNotFound if the owner is gone.
	Insert(ctx context.Context, rec *model.CredentialRecord) error
	// ListByOwner returns the owner's records in insertion order; errs.ErrNotFound for an unknown owner.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.CredentialRecord, error)
	// Delete removes one record. Deleting an absent record is not an error.
	Delete(ctx context.Context, ownerID, recordID uuid.UUID) error
}
