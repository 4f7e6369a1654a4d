package limiter

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo is the limiter for deployments on the document store; one document per (email, ipHash).
type Mongo struct {
	coll *mongo.Collection
	s    Settings
	now  func() time.Time
}

var _ Limiter = (*Mongo)(nil)

type attemptDoc struct {
	FailCount    int       `bson:"failCount"`
	WindowStart  time.Time `bson:"windowStart"`
	BlockedUntil time.Time `bson:"blockedUntil"`
}

// NewMongo constructs a limiter on coll.
func NewMongo(coll *mongo.Collection, s Settings) *Mongo {
	return &Mongo{coll: coll, s: s.withDefaults(), now: time.Now}
}

func attemptKey(email string, ipHash []byte) bson.D {
	return bson.D{{Key: "email", Value: email}, {Key: "ipHash", Value: ipHash}}
}

// Allow reports whether login is currently allowed and a retry-after duration.
func (l *Mongo) Allow(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	var d attemptDoc
	err := l.coll.FindOne(ctx, attemptKey(email, ipHash)).Decode(&d)
	switch {
	case err == nil:
		if now := l.now(); d.BlockedUntil.After(now) {
			return false, d.BlockedUntil.Sub(now), nil
		}
		return true, 0, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return true, 0, nil
	default:
		return false, 0, err
	}
}

// Success drops the attempt document.
func (l *Mongo) Success(ctx context.Context, email string, ipHash []byte) error {
	_, err := l.coll.DeleteOne(ctx, attemptKey(email, ipHash))
	return err
}

// Failure counts failures within Window of the first one and blocks once MaxFails is reached.
// A failure after the window has elapsed opens a new window with a count of 1.
func (l *Mongo) Failure(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	now := l.now().UTC()
	windowFloor := now.Add(-l.s.Window)

	// restart the counter when the window has elapsed, otherwise increment
	inWindow := bson.D{{Key: "$gt", Value: bson.A{
		bson.D{{Key: "$ifNull", Value: bson.A{"$windowStart", time.Time{}}}},
		windowFloor,
	}}}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "failCount", Value: bson.D{{Key: "$cond", Value: bson.A{
				inWindow,
				bson.D{{Key: "$add", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$failCount", 0}}}, 1}}},
				1,
			}}}},
			{Key: "windowStart", Value: bson.D{{Key: "$cond", Value: bson.A{inWindow, "$windowStart", now}}}},
		}}},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var d attemptDoc
	if err := l.coll.FindOneAndUpdate(ctx, attemptKey(email, ipHash), update, opts).Decode(&d); err != nil {
		return false, 0, err
	}
	if d.FailCount < l.s.MaxFails {
		return false, 0, nil
	}
	_, err := l.coll.UpdateOne(ctx, attemptKey(email, ipHash),
		bson.D{{Key: "$set", Value: bson.D{{Key: "blockedUntil", Value: now.Add(l.s.BlockFor)}}}})
	if err != nil {
		return false, 0, err
	}
	return true, l.s.BlockFor, nil
}
