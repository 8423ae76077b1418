package handler

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"madrasah-backend/entity"
	"madrasah-backend/errs"
	"madrasah-backend/events"
	"madrasah-backend/store"
)

type userHandler struct {
	c      store.Collection
	events events.Publisher
}

func NewUserHandler(c store.Collection, p events.Publisher) *userHandler {
	return &userHandler{c: c, events: p}
}

// List returns every user, or only those holding role when it is set.
func (h *userHandler) List(ctx context.Context, role entity.Role) ([]entity.Document, error) {
	filter := entity.Document{}
	if role != "" {
		filter[entity.RoleField] = string(role)
	}

	users, err := h.c.Find(ctx, filter)
	if err != nil {
		return nil, dbError(ctx, err)
	}
	return users, nil
}

func (h *userHandler) Get(ctx context.Context, id primitive.ObjectID) (entity.Document, error) {
	u, err := h.c.FindOne(ctx, entity.Document{entity.IDField: id})
	if err != nil {
		return nil, dbError(ctx, err)
	}
	return u, nil
}

func (h *userHandler) GetByEmail(ctx context.Context, email string) (entity.Document, error) {
	u, err := h.c.FindOne(ctx, entity.Document{entity.EmailField: email})
	if err != nil {
		return nil, dbError(ctx, err)
	}
	return u, nil
}

// HasRole reports whether the user with email holds role. An unknown email
// is not an error, it simply does not hold the role.
func (h *userHandler) HasRole(ctx context.Context, email string, role entity.Role) (map[string]bool, error) {
	u, err := h.c.FindOne(ctx, entity.Document{entity.EmailField: email})
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, dbError(ctx, err)
	}
	return map[string]bool{string(role): err == nil && entity.RoleOf(u) == role}, nil
}

// Create inserts the submitted document unless a user with the same email
// already exists. The unique email index settles concurrent creates that both
// pass the lookup.
func (h *userHandler) Create(ctx context.Context, doc entity.Document) (interface{}, error) {
	if err := entity.ValidateNewUser(doc); err != nil {
		return nil, err
	}
	email, _ := entity.EmailOf(doc)
	logger := loggerFrom(ctx).With(zap.String("email", email))

	_, err := h.c.FindOne(ctx, entity.Document{entity.EmailField: email})
	if err == nil {
		return entity.Message{Message: entity.MessageUserExists}, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, dbError(ctx, err)
	}

	id, err := h.c.InsertOne(ctx, doc)
	if err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			logger.Debug("lost create race on email")
			return entity.Message{Message: entity.MessageUserExists}, nil
		}
		return nil, dbError(ctx, err)
	}

	a := events.NewActivity(store.UsersCollection, entity.ActionCreated, id)
	a.Role = entity.RoleOf(doc)
	announce(ctx, h.events, a)

	return entity.InsertAck{Acknowledged: true, InsertedID: id}, nil
}

// Merge sets every submitted field on the user.
func (h *userHandler) Merge(ctx context.Context, id primitive.ObjectID, body entity.Document) (entity.UpdateAck, error) {
	patch, err := entity.MergePatch(body)
	if err != nil {
		return entity.UpdateAck{}, err
	}
	return h.update(ctx, id, patch, entity.ActionUpdated)
}

// UpdateProfile sets only the allow-listed profile fields.
func (h *userHandler) UpdateProfile(ctx context.Context, id primitive.ObjectID, body entity.Document) (entity.UpdateAck, error) {
	patch, err := entity.ProfilePatch(body)
	if err != nil {
		return entity.UpdateAck{}, err
	}
	return h.update(ctx, id, patch, entity.ActionUpdated)
}

// SetRole moves a user to role. MakeAdmin and RemoveAdmin are the two
// transitions exposed over HTTP.
func (h *userHandler) SetRole(ctx context.Context, id primitive.ObjectID, role entity.Role) (entity.UpdateAck, error) {
	if !role.Valid() {
		return entity.UpdateAck{}, errs.ErrInvalidRole
	}
	return h.update(ctx, id, entity.Document{entity.RoleField: string(role)}, entity.ActionRoleChanged)
}

func (h *userHandler) MakeAdmin(ctx context.Context, id primitive.ObjectID) (entity.UpdateAck, error) {
	return h.SetRole(ctx, id, entity.RoleAdmin)
}

func (h *userHandler) RemoveAdmin(ctx context.Context, id primitive.ObjectID) (entity.UpdateAck, error) {
	return h.SetRole(ctx, id, entity.RoleTeacher)
}

func (h *userHandler) update(ctx context.Context, id primitive.ObjectID, patch entity.Document, action entity.Action) (entity.UpdateAck, error) {
	ack, err := h.c.UpdateOne(ctx, id, patch)
	if err != nil {
		return entity.UpdateAck{}, dbError(ctx, err)
	}

	if ack.ModifiedCount > 0 {
		a := events.NewActivity(store.UsersCollection, action, id)
		a.Role = entity.RoleOf(patch)
		announce(ctx, h.events, a)
	}
	return ack, nil
}

func (h *userHandler) Delete(ctx context.Context, id primitive.ObjectID) (entity.DeleteAck, error) {
	n, err := h.c.DeleteOne(ctx, id)
	if err != nil {
		return entity.DeleteAck{}, dbError(ctx, err)
	}

	if n > 0 {
		announce(ctx, h.events, events.NewActivity(store.UsersCollection, entity.ActionDeleted, id))
	}
	return entity.DeleteAck{Acknowledged: true, DeletedCount: n}, nil
}
