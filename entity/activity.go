package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Action string

const (
	ActionCreated     Action = "created"
	ActionUpdated     Action = "updated"
	ActionRoleChanged Action = "role_changed"
	ActionDeleted     Action = "deleted"
)

// Activity describes one committed write. It is what the events package
// fans out to RabbitMQ.
type Activity struct {
	ID         string             `json:"id"`
	Collection string             `json:"collection"`
	Action     Action             `json:"action"`
	DocumentID primitive.ObjectID `json:"documentId"`
	Role       Role               `json:"role,omitempty"`
	Time       time.Time          `json:"time"`
}

// RoutingKey is "<collection>.<action>", e.g. "users.role_changed".
func (a Activity) RoutingKey() string {
	return a.Collection + "." + string(a.Action)
}
