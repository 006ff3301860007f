package landmark

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

type Format string

const (
	FormatMsgpack Format = "msgpack"
	FormatJSONL   Format = "jsonl"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatMsgpack, "":
		return FormatMsgpack, nil
	case FormatJSONL:
		return FormatJSONL, nil
	}
	return "", fmt.Errorf("unknown landmark format %q (want msgpack or jsonl)", s)
}

// record is the wire shape written by the extractor sidecar.
type record struct {
	T   int64        `json:"t" msgpack:"t"`
	Pts [][3]float64 `json:"pts,omitempty" msgpack:"pts,omitempty"`
	Gap bool         `json:"gap,omitempty" msgpack:"gap,omitempty"`
}

type decoder interface {
	decode(*record) error
}

type msgpackDecoder struct{ dec *msgpack.Decoder }

func (d msgpackDecoder) decode(r *record) error { return d.dec.Decode(r) }

// badRecord is a JSON line that did not parse. The next line is still
// readable, so it costs one tick rather than the stream.
type badRecord struct{ err error }

func (b badRecord) Error() string { return "bad record: " + b.err.Error() }

type jsonlDecoder struct{ sc *bufio.Scanner }

func (d jsonlDecoder) decode(r *record) error {
	for d.sc.Scan() {
		line := d.sc.Bytes()
		if len(line) == 0 {
			continue
		}
		*r = record{}
		if err := json.Unmarshal(line, r); err != nil {
			return badRecord{err}
		}
		return nil
	}
	if err := d.sc.Err(); err != nil {
		return err
	}
	return io.EOF
}

type item struct {
	frame Frame
	err   error
}

// StreamSource reads extractor records from a pipe or file.
type StreamSource struct {
	rc     io.ReadCloser
	items  chan item
	done   chan struct{}
	once   sync.Once
	mu     sync.Mutex
	failed error
}

func NewStreamSource(rc io.ReadCloser, format Format) *StreamSource {
	var dec decoder
	switch format {
	case FormatJSONL:
		sc := bufio.NewScanner(rc)
		sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		dec = jsonlDecoder{sc: sc}
	default:
		dec = msgpackDecoder{dec: msgpack.NewDecoder(bufio.NewReader(rc))}
	}
	s := &StreamSource{
		rc:    rc,
		items: make(chan item, 1),
		done:  make(chan struct{}),
	}
	go s.readLoop(dec)
	return s
}

func (s *StreamSource) readLoop(dec decoder) {
	defer close(s.items)
	for {
		var rec record
		err := dec.decode(&rec)
		var it item
		var bad badRecord
		switch {
		case errors.As(err, &bad):
			it.frame = Frame{At: time.Now()}
			it.err = fmt.Errorf("%w: %v", ErrNoFrame, bad)
			err = nil
		case err != nil:
			it.err = fmt.Errorf("%w: %v", ErrCaptureFault, err)
		case rec.Gap:
			it.frame = Frame{At: toFrame(rec).At}
			it.err = ErrNoFrame
		default:
			it.frame = toFrame(rec)
		}
		select {
		case s.items <- it:
		case <-s.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func toFrame(rec record) Frame {
	f := Frame{At: time.Unix(0, rec.T)}
	if rec.T == 0 {
		f.At = time.Now()
	}
	if len(rec.Pts) > 0 {
		f.Points = make([]Point, len(rec.Pts))
		for i, p := range rec.Pts {
			f.Points[i] = Point{X: p[0], Y: p[1], Z: p[2]}
		}
	}
	return f
}

func (s *StreamSource) Next(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	failed := s.failed
	s.mu.Unlock()
	if failed != nil {
		return Frame{}, failed
	}

	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case it, ok := <-s.items:
		if !ok {
			return Frame{}, fmt.Errorf("%w: stream closed", ErrCaptureFault)
		}
		if it.err != nil && errors.Is(it.err, ErrCaptureFault) {
			s.mu.Lock()
			s.failed = it.err
			s.mu.Unlock()
		}
		return it.frame, it.err
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

// EncodeFrame writes f in the msgpack wire shape. Used by tests and the
// recording tool to produce streams.
func EncodeFrame(enc *msgpack.Encoder, f Frame) error {
	rec := record{T: f.At.UnixNano()}
	for _, p := range f.Points {
		rec.Pts = append(rec.Pts, [3]float64{p.X, p.Y, p.Z})
	}
	return enc.Encode(&rec)
}

// EncodeGap writes a "no frame available" marker.
func EncodeGap(enc *msgpack.Encoder, at time.Time) error {
	return enc.Encode(&record{T: at.UnixNano(), Gap: true})
}
