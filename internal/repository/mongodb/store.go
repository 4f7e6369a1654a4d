// Package mongodb contains MongoDB implementations of repository interfaces.
//
// A user is one document in the users collection with its credential records embedded
// in a passwords array. Records are added with $push and removed with $pull so writers
// never replace the whole array.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersColl    = "users"
	attemptsColl = "login_attempts"
)

// connectTimeout bounds Connect and the first Ping.
const connectTimeout = 10 * time.Second

// Store owns the client and database handle.
type Store struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// Connect dials uri, pings the primary and selects database name.
func Connect(ctx context.Context, uri, name string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &Store{Client: client, DB: client.Database(name)}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.Client.Ping(ctx, nil) }

// Attempts is the collection backing the login limiter.
func (s *Store) Attempts() *mongo.Collection { return s.DB.Collection(attemptsColl) }

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error { return s.Client.Disconnect(ctx) }

// EnsureIndexes creates the unique email and limiter key indexes.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersColl).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("users_email_unique"),
	})
	if err != nil {
		return fmt.Errorf("users index: %w", err)
	}
	_, err = db.Collection(attemptsColl).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}, {Key: "ipHash", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("login_attempts_key"),
	})
	if err != nil {
		return fmt.Errorf("login_attempts index: %w", err)
	}
	return nil
}
