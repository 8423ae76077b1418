package store

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
	"madrasah-backend/entity"
	"madrasah-backend/errs"
	"madrasah-backend/log"
)

// Mongo owns the client connection. It is opened once by Connect and must be
// released with Close.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

func Connect(ctx context.Context, uri, database string) (*Mongo, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongo")
	}

	return &Mongo{client: client, db: client.Database(database)}, nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return errors.Wrap(m.client.Ping(ctx, readpref.Primary()), "pinging mongo")
}

func (m *Mongo) Close(ctx context.Context) error {
	return errors.Wrap(m.client.Disconnect(ctx), "disconnecting from mongo")
}

// EnsureIndexes creates the unique email index that makes create-if-absent
// safe under concurrent requests. Existing duplicate emails make this fail;
// they are logged so they can be merged or removed by hand.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.db.Collection(UsersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: entity.EmailField, Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err == nil {
		return nil
	}

	dupes, derr := m.DuplicateEmails(ctx)
	if derr != nil {
		log.Logger.Error("could not list duplicate emails", zap.Error(derr))
	} else if len(dupes) > 0 {
		log.Logger.Error("users share an email, remove the duplicates before starting",
			zap.Strings("emails", dupes))
		return errors.Wrapf(err, "creating users email index: %d duplicated emails", len(dupes))
	}
	return errors.Wrap(err, "creating users email index")
}

// DuplicateEmails lists every email held by more than one user.
func (m *Mongo) DuplicateEmails(ctx context.Context) ([]string, error) {
	cursor, err := m.db.Collection(UsersCollection).Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + entity.EmailField},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$match", Value: bson.D{{Key: "count", Value: bson.D{{Key: "$gt", Value: 1}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "aggregating duplicate emails")
	}

	var groups []struct {
		Email interface{} `bson:"_id"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, errors.Wrap(err, "reading duplicate emails")
	}
	emails := make([]string, 0, len(groups))
	for _, g := range groups {
		emails = append(emails, fmt.Sprint(g.Email))
	}
	return emails, nil
}

func (m *Mongo) Collection(name string) Collection {
	return &mongoCollection{c: m.db.Collection(name)}
}

func (m *Mongo) Collections() Collections {
	return Collections{
		Users:   m.Collection(UsersCollection),
		Events:  m.Collection(EventsCollection),
		Notices: m.Collection(NoticesCollection),
	}
}

type mongoCollection struct {
	c *mongo.Collection
}

func (m *mongoCollection) Find(ctx context.Context, filter entity.Document) ([]entity.Document, error) {
	if filter == nil {
		filter = bson.M{}
	}
	cursor, err := m.c.Find(ctx, filter)
	if err != nil {
		return nil, errors.Wrapf(err, "finding in %s", m.c.Name())
	}

	docs := make([]entity.Document, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrapf(err, "reading cursor of %s", m.c.Name())
	}
	return docs, nil
}

func (m *mongoCollection) FindOne(ctx context.Context, filter entity.Document) (entity.Document, error) {
	doc := entity.Document{}
	err := m.c.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errs.ErrNotFound
		}
		return nil, errors.Wrapf(err, "finding one in %s", m.c.Name())
	}
	return doc, nil
}

func (m *mongoCollection) InsertOne(ctx context.Context, doc entity.Document) (primitive.ObjectID, error) {
	doc, id := withID(doc)
	_, err := m.c.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, errs.ErrAlreadyExists
		}
		return primitive.NilObjectID, errors.Wrapf(err, "inserting into %s", m.c.Name())
	}
	return id, nil
}

func (m *mongoCollection) UpdateOne(ctx context.Context, id primitive.ObjectID, set entity.Document) (entity.UpdateAck, error) {
	res, err := m.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return entity.UpdateAck{}, errs.ErrAlreadyExists
		}
		return entity.UpdateAck{}, errors.Wrapf(err, "updating %s in %s", id.Hex(), m.c.Name())
	}
	return entity.UpdateAck{
		Acknowledged:  true,
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
		UpsertedCount: res.UpsertedCount,
		UpsertedID:    res.UpsertedID,
	}, nil
}

func (m *mongoCollection) DeleteOne(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := m.c.DeleteOne(ctx, bson.M{entity.IDField: id})
	if err != nil {
		return 0, errors.Wrapf(err, "deleting %s from %s", id.Hex(), m.c.Name())
	}
	return res.DeletedCount, nil
}
