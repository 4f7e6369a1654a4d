package mongodb

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fortivault/fortivault/internal/errs"
	"github.com/fortivault/fortivault/internal/model"
	"github.com/fortivault/fortivault/internal/repository"
)

// CredentialRepo implements repository.CredentialRepository on the embedded passwords array.
type CredentialRepo struct{ coll *mongo.Collection }

var _ repository.CredentialRepository = (*CredentialRepo)(nil)

// NewCredentialRepo constructs a credential repository.
func NewCredentialRepo(db *mongo.Database) *CredentialRepo {
	return &CredentialRepo{coll: db.Collection(usersColl)}
}

// Insert pushes one record onto the owner's array.
func (r *CredentialRepo) Insert(ctx context.Context, rec *model.CredentialRecord) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: rec.OwnerID.String()}},
		bson.D{{Key: "$push", Value: bson.D{{Key: "passwords", Value: toCredentialDoc(rec)}}}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ListByOwner returns the embedded records in array order.
func (r *CredentialRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.CredentialRecord, error) {
	var d struct {
		Passwords []credentialDoc `bson:"passwords"`
	}
	err := r.coll.FindOne(ctx,
		bson.D{{Key: "_id", Value: ownerID.String()}},
		options.FindOne().SetProjection(bson.D{{Key: "passwords", Value: 1}}),
	).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	out := make([]model.CredentialRecord, 0, len(d.Passwords))
	for _, p := range d.Passwords {
		rec, err := p.toModel(ownerID)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Delete pulls the record with recordID from the owner's array.
func (r *CredentialRepo) Delete(ctx context.Context, ownerID, recordID uuid.UUID) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: ownerID.String()}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "passwords", Value: bson.D{{Key: "_id", Value: recordID.String()}}}}}},
	)
	return err
}
