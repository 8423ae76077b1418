package entity

import "go.mongodb.org/mongo-driver/bson/primitive"

// The ack shapes follow what the MongoDB drivers report, so existing
// clients of the site keep reading the same keys.

type InsertAck struct {
	Acknowledged bool               `json:"acknowledged"`
	InsertedID   primitive.ObjectID `json:"insertedId"`
}

type UpdateAck struct {
	Acknowledged  bool        `json:"acknowledged"`
	MatchedCount  int64       `json:"matchedCount"`
	ModifiedCount int64       `json:"modifiedCount"`
	UpsertedCount int64       `json:"upsertedCount"`
	UpsertedID    interface{} `json:"upsertedId"`
}

type DeleteAck struct {
	Acknowledged bool  `json:"acknowledged"`
	DeletedCount int64 `json:"deletedCount"`
}

type Message struct {
	Message string `json:"message"`
}

const MessageUserExists = "user already exists"
