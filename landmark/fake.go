package landmark

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

type fakeStep struct {
	frame Frame
	err   error
	delay time.Duration
}

// FakeSource replays a scripted sequence. Once the script runs out it
// reports a capture fault, like a camera being unplugged.
type FakeSource struct {
	mu     sync.Mutex
	steps  []fakeStep
	pos    int
	closed bool
}

func NewFake() *FakeSource {
	return &FakeSource{}
}

func (f *FakeSource) Add(frames ...Frame) *FakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fr := range frames {
		f.steps = append(f.steps, fakeStep{frame: fr})
	}
	return f
}

// AddGap scripts a "no frame available" tick at the given time.
func (f *FakeSource) AddGap(at time.Time) *FakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, fakeStep{frame: Frame{At: at}, err: ErrNoFrame})
	return f
}

func (f *FakeSource) AddFault(err error) *FakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, fakeStep{err: fmt.Errorf("%w: %v", ErrCaptureFault, err)})
	return f
}

// AddDelay makes the next Next call wait d before returning.
func (f *FakeSource) AddDelay(d time.Duration) *FakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, fakeStep{delay: d})
	return f
}

func (f *FakeSource) Next(ctx context.Context) (Frame, error) {
	for {
		f.mu.Lock()
		if f.closed || f.pos >= len(f.steps) {
			f.mu.Unlock()
			return Frame{}, fmt.Errorf("%w: %v", ErrCaptureFault, io.EOF)
		}
		st := f.steps[f.pos]
		f.pos++
		f.mu.Unlock()

		if st.delay > 0 {
			select {
			case <-ctx.Done():
				return Frame{}, ctx.Err()
			case <-time.After(st.delay):
			}
			continue
		}
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		return st.frame, st.err
	}
}

func (f *FakeSource) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.steps) - f.pos
}

func (f *FakeSource) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}
