package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Segment is one speech segment cut by the voice activity detector.
type Segment struct {
	At    time.Time
	Audio []byte
}

// Recognizer turns a segment into text. Implementations may block on a
// device or the network; the pipeline keeps at most one call in flight.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, seg Segment) (Utterance, error)
}

type PipelineConfig struct {
	// Pending is how many segments may wait behind the in-flight one. When
	// full, the oldest waiting segment is dropped. Zero drops new segments
	// while a request is in flight.
	Pending int
	// Timeout bounds a single Recognize call. Zero means no limit.
	Timeout time.Duration
}

// Pipeline feeds segments to a Recognizer one at a time with a bounded
// backlog, so a stalled recognizer never grows memory without bound.
type Pipeline struct {
	rec     Recognizer
	cfg     PipelineConfig
	onText  func(Utterance)
	onFault func(error)

	mu    sync.Mutex
	queue []Segment
	busy  bool
	wake  chan struct{}

	dropped   atomic.Int64
	processed atomic.Int64
}

func NewPipeline(rec Recognizer, cfg PipelineConfig, onText func(Utterance), onFault func(error)) *Pipeline {
	if cfg.Pending < 0 {
		cfg.Pending = 0
	}
	return &Pipeline{
		rec:     rec,
		cfg:     cfg,
		onText:  onText,
		onFault: onFault,
		wake:    make(chan struct{}, 1),
	}
}

// Submit enqueues seg without blocking. It reports whether a segment had to
// be dropped to make room.
func (p *Pipeline) Submit(seg Segment) (dropped bool) {
	p.mu.Lock()
	limit := p.cfg.Pending
	if !p.busy {
		// an idle worker takes the head immediately
		limit++
	}
	switch {
	case len(p.queue) < limit:
		p.queue = append(p.queue, seg)
	case p.cfg.Pending == 0:
		dropped = true
	default:
		copy(p.queue, p.queue[1:])
		p.queue[len(p.queue)-1] = seg
		dropped = true
	}
	p.mu.Unlock()

	if dropped {
		p.dropped.Add(1)
	}
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return dropped
}

func (p *Pipeline) next() (Segment, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		p.busy = false
		return Segment{}, false
	}
	seg := p.queue[0]
	p.queue = p.queue[1:]
	p.busy = true
	return seg, true
}

// Run processes segments until ctx is done.
func (p *Pipeline) Run(ctx context.Context) {
	for {
		seg, ok := p.next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-p.wake:
				continue
			}
		}
		p.recognize(ctx, seg)
		if ctx.Err() != nil {
			return
		}
	}
}

func (p *Pipeline) recognize(ctx context.Context, seg Segment) {
	rctx := ctx
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}
	u, err := p.rec.Recognize(rctx, seg)
	p.processed.Add(1)
	switch {
	case err == nil:
		if u.At.IsZero() {
			u.At = seg.At
		}
		p.onText(u)
	case errors.Is(err, ErrNoSpeech):
	case ctx.Err() != nil:
	case errors.Is(err, ErrMicrophoneFault):
		p.onFault(err)
	default:
		p.onFault(fmt.Errorf("%w: %s: %v", ErrMicrophoneFault, p.rec.Name(), err))
	}
}

func (p *Pipeline) Dropped() int64   { return p.dropped.Load() }
func (p *Pipeline) Processed() int64 { return p.processed.Load() }

// Backlog is the number of segments waiting behind the in-flight one.
func (p *Pipeline) Backlog() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}
