package events

import (
	"context"
	"sync"

	"madrasah-backend/entity"
)

// Recorder keeps published activities in memory. Tests use it to observe
// what a handler announced.
type Recorder struct {
	mu         sync.Mutex
	activities []entity.Activity
	Err        error
}

func (r *Recorder) Publish(_ context.Context, a entity.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.activities = append(r.activities, a)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Activities() []entity.Activity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.Activity(nil), r.activities...)
}
