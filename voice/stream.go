package voice

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// Item is one record from the voice sidecar: either an already recognized
// utterance or a raw segment that still needs a recognizer.
type Item struct {
	Utterance *Utterance
	Segment   *Segment
}

type streamRecord struct {
	T          int64   `json:"t"`
	Text       string  `json:"text,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Audio      []byte  `json:"audio,omitempty"`
	Fault      string  `json:"fault,omitempty"`
}

type streamItem struct {
	item Item
	err  error
}

// StreamSource reads JSON lines from the voice sidecar. A {"fault": ...}
// record surfaces as an error wrapping ErrMicrophoneFault and a malformed
// line as ErrBadRecord; the stream keeps going after either. EOF is a
// permanent fault.
type StreamSource struct {
	rc    io.ReadCloser
	items chan streamItem
	done  chan struct{}
	once  sync.Once

	mu     sync.Mutex
	closed error
}

func NewStreamSource(rc io.ReadCloser) *StreamSource {
	s := &StreamSource{
		rc:    rc,
		items: make(chan streamItem, 1),
		done:  make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *StreamSource) readLoop() {
	defer close(s.items)
	sc := bufio.NewScanner(s.rc)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var it streamItem
		var rec streamRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			it.err = fmt.Errorf("%w: %v", ErrBadRecord, err)
		} else {
			it = toStreamItem(rec)
		}
		select {
		case s.items <- it:
		case <-s.done:
			return
		}
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	select {
	case s.items <- streamItem{err: fmt.Errorf("%w: voice stream closed: %v", ErrMicrophoneFault, err)}:
	case <-s.done:
	}
}

func toStreamItem(rec streamRecord) streamItem {
	at := time.Unix(0, rec.T)
	if rec.T == 0 {
		at = time.Now()
	}
	switch {
	case rec.Fault != "":
		return streamItem{err: fmt.Errorf("%w: %s", ErrMicrophoneFault, rec.Fault)}
	case len(rec.Audio) > 0:
		return streamItem{item: Item{Segment: &Segment{At: at, Audio: rec.Audio}}}
	default:
		return streamItem{item: Item{Utterance: &Utterance{Text: rec.Text, Confidence: rec.Confidence, At: at}}}
	}
}

func (s *StreamSource) Next(ctx context.Context) (Item, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed != nil {
		return Item{}, closed
	}
	select {
	case <-ctx.Done():
		return Item{}, ctx.Err()
	case it, ok := <-s.items:
		if !ok {
			err := fmt.Errorf("%w: %w", ErrMicrophoneFault, ErrStreamEnded)
			s.mu.Lock()
			s.closed = err
			s.mu.Unlock()
			return Item{}, err
		}
		return it.item, it.err
	}
}

func (s *StreamSource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.rc.Close()
	})
	return err
}
