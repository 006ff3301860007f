package voice

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

type collector struct {
	mu     sync.Mutex
	texts  []string
	faults []error
	got    chan struct{}
}

func newCollector() *collector {
	return &collector{got: make(chan struct{}, 64)}
}

func (c *collector) text(u Utterance) {
	c.mu.Lock()
	c.texts = append(c.texts, u.Text)
	c.mu.Unlock()
	c.got <- struct{}{}
}

func (c *collector) fault(err error) {
	c.mu.Lock()
	c.faults = append(c.faults, err)
	c.mu.Unlock()
	c.got <- struct{}{}
}

func (c *collector) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for result %d of %d", i+1, n)
		}
	}
}

func waitCalls(t *testing.T, f *FakeRecognizer, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for len(f.Calls()) < n {
		select {
		case <-deadline:
			t.Fatalf("recognizer saw %d calls, want %d", len(f.Calls()), n)
		case <-time.After(time.Millisecond):
		}
	}
}

func TestPipelineBoundedBacklog(t *testing.T) {
	rec := NewFakeRecognizer().Gate().Say("first", 1).Say("newest", 1)
	c := newCollector()
	p := NewPipeline(rec, PipelineConfig{Pending: 1}, c.text, c.fault)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	t0 := time.Unix(0, 0)
	p.Submit(Segment{At: t0, Audio: []byte("1")})
	waitCalls(t, rec, 1)

	// recognizer is stalled: only the newest waiting segment survives
	for i := 2; i <= 5; i++ {
		p.Submit(Segment{At: t0.Add(time.Duration(i) * time.Second), Audio: []byte{byte('0' + i)}})
	}
	if got := p.Backlog(); got != 1 {
		t.Errorf("backlog = %d, want 1", got)
	}
	if got := p.Dropped(); got != 3 {
		t.Errorf("dropped = %d, want 3", got)
	}

	rec.Release()
	c.wait(t, 1)
	waitCalls(t, rec, 2)
	rec.Release()
	c.wait(t, 1)

	calls := rec.Calls()
	if string(calls[1].Audio) != "5" {
		t.Errorf("second request carried segment %q, want 5", calls[1].Audio)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if strings.Join(c.texts, ",") != "first,newest" {
		t.Errorf("texts = %v", c.texts)
	}
}

func TestPipelineZeroPendingDropsNew(t *testing.T) {
	rec := NewFakeRecognizer().Gate().Say("only", 1)
	c := newCollector()
	p := NewPipeline(rec, PipelineConfig{}, c.text, c.fault)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Submit(Segment{Audio: []byte("a")})
	waitCalls(t, rec, 1)
	if !p.Submit(Segment{Audio: []byte("b")}) {
		t.Error("expected drop while in flight")
	}
	rec.Release()
	c.wait(t, 1)
	if p.Backlog() != 0 || p.Dropped() != 1 {
		t.Errorf("backlog=%d dropped=%d", p.Backlog(), p.Dropped())
	}
}

func TestPipelineFaults(t *testing.T) {
	rec := NewFakeRecognizer().
		Fail(errors.New("connection reset")).
		Fail(ErrNoSpeech).
		Say("after", 1)
	c := newCollector()
	p := NewPipeline(rec, PipelineConfig{Pending: 4}, c.text, c.fault)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	for i := 0; i < 3; i++ {
		p.Submit(Segment{Audio: []byte{byte(i)}})
		waitCalls(t, rec, i+1)
	}
	c.wait(t, 2)

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.faults) != 1 || !errors.Is(c.faults[0], ErrMicrophoneFault) {
		t.Errorf("faults = %v", c.faults)
	}
	if len(c.texts) != 1 || c.texts[0] != "after" {
		t.Errorf("texts = %v", c.texts)
	}
}

func TestPipelineTimeoutIsFault(t *testing.T) {
	rec := NewFakeRecognizer().Gate()
	c := newCollector()
	p := NewPipeline(rec, PipelineConfig{Pending: 1, Timeout: 20 * time.Millisecond}, c.text, c.fault)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Submit(Segment{})
	c.wait(t, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.faults) != 1 || !errors.Is(c.faults[0], ErrMicrophoneFault) {
		t.Errorf("faults = %v", c.faults)
	}
}

func TestStreamSource(t *testing.T) {
	in := strings.Join([]string{
		`{"t": 1000, "text": "scroll down", "confidence": 0.93}`,
		`{"t": 2000, "audio": "UklGRg=="}`,
		`{"t": 3000, "fault": "usb mic unplugged"}`,
		`{"t": 3500, "text": `,
		`{"t": 4000, "text": "hybrid mode", "confidence": 0.8}`,
	}, "\n")
	src := NewStreamSource(io.NopCloser(strings.NewReader(in)))
	defer src.Close()
	ctx := context.Background()

	it, err := src.Next(ctx)
	if err != nil || it.Utterance == nil || it.Utterance.Text != "scroll down" || it.Utterance.Confidence != 0.93 {
		t.Fatalf("first = %+v, %v", it, err)
	}
	it, err = src.Next(ctx)
	if err != nil || it.Segment == nil || string(it.Segment.Audio) != "RIFF" {
		t.Fatalf("second = %+v, %v", it, err)
	}
	if _, err := src.Next(ctx); !errors.Is(err, ErrMicrophoneFault) || errors.Is(err, ErrStreamEnded) {
		t.Fatalf("third err = %v", err)
	}
	if _, err := src.Next(ctx); !errors.Is(err, ErrBadRecord) || errors.Is(err, ErrMicrophoneFault) {
		t.Fatalf("malformed line err = %v, want ErrBadRecord only", err)
	}
	it, err = src.Next(ctx)
	if err != nil || it.Utterance == nil || it.Utterance.Text != "hybrid mode" {
		t.Fatalf("stream should continue after a fault record: %+v, %v", it, err)
	}
	for i := 0; i < 2; i++ {
		if _, err := src.Next(ctx); !errors.Is(err, ErrMicrophoneFault) || !errors.Is(err, ErrStreamEnded) {
			t.Errorf("eof %d: err = %v", i, err)
		}
	}
}

func TestExecRecognizerMissingCommand(t *testing.T) {
	if _, err := NewExecRecognizer("definitely-not-a-real-recognizer-binary"); !errors.Is(err, ErrMicrophoneFault) {
		t.Errorf("err = %v", err)
	}
	if _, err := NewExecRecognizer("  "); err == nil {
		t.Error("empty command accepted")
	}
}

func TestExecRecognizer(t *testing.T) {
	r, err := NewExecRecognizer("cat")
	if err != nil {
		t.Skip("cat not available")
	}
	u, err := r.Recognize(context.Background(), Segment{Audio: []byte("  open safari \n")})
	if err != nil {
		t.Fatal(err)
	}
	if u.Text != "open safari" {
		t.Errorf("text = %q", u.Text)
	}
	if _, err := r.Recognize(context.Background(), Segment{Audio: []byte("\n")}); !errors.Is(err, ErrNoSpeech) {
		t.Errorf("blank output err = %v", err)
	}
}
