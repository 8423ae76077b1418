package store

import (
	"context"
	"reflect"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"madrasah-backend/entity"
	"madrasah-backend/errs"
)

// Memory is a process-local Collection. Documents keep insertion order and
// the listed unique fields behave like a unique index.
type Memory struct {
	mu     sync.RWMutex
	docs   []entity.Document
	unique []string
}

func NewMemory(uniqueFields ...string) *Memory {
	return &Memory{unique: uniqueFields}
}

// NewMemoryCollections mirrors the indexes Mongo.EnsureIndexes creates.
func NewMemoryCollections() Collections {
	return Collections{
		Users:   NewMemory(entity.EmailField),
		Events:  NewMemory(),
		Notices: NewMemory(),
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

func matches(doc, filter entity.Document) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func (m *Memory) indexOf(id primitive.ObjectID) int {
	for i, d := range m.docs {
		if d[entity.IDField] == id {
			return i
		}
	}
	return -1
}

// conflicts reports whether doc would share a unique value with any stored
// document other than the one at skip.
func (m *Memory) conflicts(doc entity.Document, skip int) bool {
	for _, field := range append([]string{entity.IDField}, m.unique...) {
		val, ok := doc[field]
		if !ok {
			continue
		}
		for i, d := range m.docs {
			if i == skip {
				continue
			}
			if other, ok := d[field]; ok && reflect.DeepEqual(other, val) {
				return true
			}
		}
	}
	return false
}

func (m *Memory) Find(ctx context.Context, filter entity.Document) ([]entity.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]entity.Document, 0, len(m.docs))
	for _, d := range m.docs {
		if matches(d, filter) {
			docs = append(docs, entity.Clone(d))
		}
	}
	return docs, nil
}

func (m *Memory) FindOne(ctx context.Context, filter entity.Document) (entity.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, d := range m.docs {
		if matches(d, filter) {
			return entity.Clone(d), nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *Memory) InsertOne(ctx context.Context, doc entity.Document) (primitive.ObjectID, error) {
	if err := ctx.Err(); err != nil {
		return primitive.NilObjectID, err
	}
	doc, id := withID(doc)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conflicts(doc, -1) {
		return primitive.NilObjectID, errs.ErrAlreadyExists
	}
	m.docs = append(m.docs, doc)
	return id, nil
}

func (m *Memory) UpdateOne(ctx context.Context, id primitive.ObjectID, set entity.Document) (entity.UpdateAck, error) {
	ack := entity.UpdateAck{Acknowledged: true}
	if err := ctx.Err(); err != nil {
		return entity.UpdateAck{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return ack, nil
	}
	ack.MatchedCount = 1

	if m.conflicts(set, i) {
		return entity.UpdateAck{}, errs.ErrAlreadyExists
	}

	updated := entity.Clone(m.docs[i])
	for k, v := range set {
		if k == entity.IDField {
			continue
		}
		if old, ok := updated[k]; !ok || !reflect.DeepEqual(old, v) {
			ack.ModifiedCount = 1
		}
		updated[k] = v
	}
	m.docs[i] = updated
	return ack, nil
}

func (m *Memory) DeleteOne(ctx context.Context, id primitive.ObjectID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return 0, nil
	}
	m.docs = append(m.docs[:i], m.docs[i+1:]...)
	return 1, nil
}
