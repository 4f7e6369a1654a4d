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

// UserRepo implements repository.UserRepository on the users collection.
type UserRepo struct{ coll *mongo.Collection }

var _ repository.UserRepository = (*UserRepo)(nil)

// NewUserRepo constructs a user repository.
func NewUserRepo(db *mongo.Database) *UserRepo { return &UserRepo{coll: db.Collection(usersColl)} }

var withoutPasswords = bson.D{{Key: "passwords", Value: 0}}

// passwordCount evaluates to the length of the embedded array, 0 when missing.
var passwordCount = bson.D{{Key: "$size", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$passwords", bson.A{}}}}}}

// Create inserts a user document with an empty passwords array.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	_, err := r.coll.InsertOne(ctx, toUserDoc(u))
	if mongo.IsDuplicateKeyError(err) {
		return errs.ErrDuplicateEmail
	}
	return err
}

// GetByID loads a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id.String()}})
}

// GetByEmail loads a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.D) (*model.User, error) {
	var d userDoc
	err := r.coll.FindOne(ctx, filter, options.FindOne().SetProjection(withoutPasswords)).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d.toModel()
}

// SetRole updates the role and returns the new document.
func (r *UserRepo) SetRole(ctx context.Context, id uuid.UUID, role model.Role) (*model.User, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(withoutPasswords)
	var d userDoc
	err := r.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id.String()}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "role", Value: string(role)}}}},
		opts,
	).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d.toModel()
}

// Delete removes the user document and with it every embedded record.
func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id.String()}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ListSummaries projects every user with the length of its passwords array.
func (r *UserRepo) ListSummaries(ctx context.Context) ([]model.UserSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$project", Value: bson.D{
			{Key: "name", Value: 1},
			{Key: "email", Value: 1},
			{Key: "role", Value: 1},
			{Key: "createdAt", Value: 1},
			{Key: "passwordCount", Value: passwordCount},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]model.UserSummary, 0)
	for cur.Next(ctx) {
		var d summaryDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		s, err := d.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, cur.Err()
}

// Stats sums users and embedded records in one pass.
func (r *UserRepo) Stats(ctx context.Context) (model.Stats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "users", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "passwords", Value: bson.D{{Key: "$sum", Value: passwordCount}}},
		}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return model.Stats{}, err
	}
	defer cur.Close(ctx)

	var st model.Stats
	if cur.Next(ctx) {
		var d struct {
			Users     int `bson:"users"`
			Passwords int `bson:"passwords"`
		}
		if err := cur.Decode(&d); err != nil {
			return model.Stats{}, err
		}
		st = model.Stats{TotalUsers: d.Users, TotalPasswords: d.Passwords}
	}
	return st, cur.Err()
}
