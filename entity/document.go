package entity

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"madrasah-backend/errs"
)

// Document is a schema-free record as stored in any of the collections.
type Document = bson.M

const IDField = "_id"

// ParseID converts the 24-hex form used on the wire into an ObjectID.
func ParseID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, errs.ErrInvalidID
	}
	return id, nil
}

// Clone copies the top level of d. Nested values are shared.
func Clone(d Document) Document {
	if d == nil {
		return nil
	}
	c := make(Document, len(d))
	for k, v := range d {
		c[k] = v
	}
	return c
}
