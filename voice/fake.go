package voice

import (
	"context"
	"fmt"
	"sync"
)

// FakeRecognizer returns scripted utterances in order. When gate is set,
// every call waits for a value on it, which lets tests hold a request in
// flight.
type FakeRecognizer struct {
	mu      sync.Mutex
	results []fakeResult
	calls   []Segment
	gate    chan struct{}
}

type fakeResult struct {
	u   Utterance
	err error
}

func NewFakeRecognizer() *FakeRecognizer {
	return &FakeRecognizer{}
}

func (f *FakeRecognizer) Name() string { return "fake" }

func (f *FakeRecognizer) Say(text string, confidence float64) *FakeRecognizer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, fakeResult{u: Utterance{Text: text, Confidence: confidence}})
	return f
}

func (f *FakeRecognizer) Fail(err error) *FakeRecognizer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, fakeResult{err: err})
	return f
}

// Gate makes Recognize block until Release is called once per call.
func (f *FakeRecognizer) Gate() *FakeRecognizer {
	f.mu.Lock()
	f.gate = make(chan struct{})
	f.mu.Unlock()
	return f
}

func (f *FakeRecognizer) Release() {
	f.gate <- struct{}{}
}

func (f *FakeRecognizer) Calls() []Segment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Segment(nil), f.calls...)
}

func (f *FakeRecognizer) Recognize(ctx context.Context, seg Segment) (Utterance, error) {
	f.mu.Lock()
	f.calls = append(f.calls, seg)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Utterance{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.results) == 0 {
		return Utterance{}, fmt.Errorf("fake recognizer: no scripted result for segment %d", len(f.calls))
	}
	r := f.results[0]
	f.results = f.results[1:]
	r.u.At = seg.At
	return r.u, r.err
}
