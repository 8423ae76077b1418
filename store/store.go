// Package store holds the document repositories the handlers work against.
// Collection is implemented by MongoDB for production and by Memory for tests
// and local runs without a database.
package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"madrasah-backend/entity"
)

const (
	UsersCollection   = "users"
	EventsCollection  = "events"
	NoticesCollection = "notices"
)

// Collection is the capability set every endpoint is written against.
//
// FindOne returns errs.ErrNotFound when nothing matches. InsertOne and
// UpdateOne return errs.ErrAlreadyExists when a unique key would be violated.
// Filters are equality matches on top-level fields.
type Collection interface {
	Find(ctx context.Context, filter entity.Document) ([]entity.Document, error)
	FindOne(ctx context.Context, filter entity.Document) (entity.Document, error)
	InsertOne(ctx context.Context, doc entity.Document) (primitive.ObjectID, error)
	UpdateOne(ctx context.Context, id primitive.ObjectID, set entity.Document) (entity.UpdateAck, error)
	DeleteOne(ctx context.Context, id primitive.ObjectID) (int64, error)
}

// Pinger reports whether the backing storage is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Collections bundles the three collections of the site.
type Collections struct {
	Users   Collection
	Events  Collection
	Notices Collection
}

// withID returns a copy of doc that carries an _id, generating one if absent.
func withID(doc entity.Document) (entity.Document, primitive.ObjectID) {
	c := entity.Clone(doc)
	if c == nil {
		c = entity.Document{}
	}
	if id, ok := c[entity.IDField].(primitive.ObjectID); ok {
		return c, id
	}
	id := primitive.NewObjectID()
	c[entity.IDField] = id
	return c, id
}
