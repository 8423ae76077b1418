package handler

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"madrasah-backend/entity"
	"madrasah-backend/events"
	"madrasah-backend/store"
)

// boardHandler serves a collection of free-form postings. Events and notices
// are both boards.
type boardHandler struct {
	name   string
	c      store.Collection
	events events.Publisher
}

func NewBoardHandler(name string, c store.Collection, p events.Publisher) *boardHandler {
	return &boardHandler{name: name, c: c, events: p}
}

func (h *boardHandler) List(ctx context.Context) ([]entity.Document, error) {
	docs, err := h.c.Find(ctx, entity.Document{})
	if err != nil {
		return nil, dbError(ctx, err)
	}
	return docs, nil
}

func (h *boardHandler) Create(ctx context.Context, doc entity.Document) (entity.InsertAck, error) {
	id, err := h.c.InsertOne(ctx, doc)
	if err != nil {
		return entity.InsertAck{}, dbError(ctx, err)
	}

	announce(ctx, h.events, events.NewActivity(h.name, entity.ActionCreated, id))
	return entity.InsertAck{Acknowledged: true, InsertedID: id}, nil
}

func (h *boardHandler) Delete(ctx context.Context, id primitive.ObjectID) (entity.DeleteAck, error) {
	n, err := h.c.DeleteOne(ctx, id)
	if err != nil {
		return entity.DeleteAck{}, dbError(ctx, err)
	}

	if n > 0 {
		announce(ctx, h.events, events.NewActivity(h.name, entity.ActionDeleted, id))
	}
	return entity.DeleteAck{Acknowledged: true, DeletedCount: n}, nil
}
