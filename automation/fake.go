package automation

import (
	"context"
	"sync"

	"blinkos/intent"
)

// Recorder keeps the most recent intents instead of touching the desktop.
// It backs the "none" backend and tests.
type Recorder struct {
	mu    sync.Mutex
	limit int
	log   []intent.Intent
	total int
	fail  error
}

func NewRecorder(limit int) *Recorder {
	if limit < 1 {
		limit = 1
	}
	return &Recorder{limit: limit}
}

func (r *Recorder) Name() string { return "none" }

func (r *Recorder) Apply(_ context.Context, in intent.Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.total++
	r.log = append(r.log, in)
	if len(r.log) > r.limit {
		r.log = append(r.log[:0], r.log[len(r.log)-r.limit:]...)
	}
	return nil
}

// FailWith makes every following Apply return err. Nil restores success.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	r.fail = err
	r.mu.Unlock()
}

func (r *Recorder) Intents() []intent.Intent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]intent.Intent(nil), r.log...)
}

// Total counts every applied intent, including those no longer kept.
func (r *Recorder) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

func (r *Recorder) Close() error { return nil }
