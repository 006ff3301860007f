package landmark

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

func TestStreamSourceMsgpack(t *testing.T) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	t0 := time.Unix(100, 0)

	if err := EncodeFrame(enc, SyntheticFace(t0, 0.3, 0.5, -0.5)); err != nil {
		t.Fatal(err)
	}
	if err := EncodeGap(enc, t0.Add(33*time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	if err := EncodeFrame(enc, Frame{At: t0.Add(66 * time.Millisecond)}); err != nil {
		t.Fatal(err)
	}

	src := NewStreamSource(io.NopCloser(&buf), FormatMsgpack)
	defer src.Close()
	ctx := context.Background()

	f, err := src.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !f.At.Equal(t0) {
		t.Errorf("At = %v, want %v", f.At, t0)
	}
	if len(f.Points) != NumLandmarks {
		t.Fatalf("points = %d, want %d", len(f.Points), NumLandmarks)
	}

	if _, err := src.Next(ctx); !errors.Is(err, ErrNoFrame) {
		t.Errorf("gap: err = %v, want ErrNoFrame", err)
	}

	f, err = src.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Points) != 0 {
		t.Errorf("empty frame has %d points", len(f.Points))
	}

	if _, err := src.Next(ctx); !errors.Is(err, ErrCaptureFault) {
		t.Errorf("eof: err = %v, want ErrCaptureFault", err)
	}
	// fault is sticky
	if _, err := src.Next(ctx); !errors.Is(err, ErrCaptureFault) {
		t.Errorf("after eof: err = %v, want ErrCaptureFault", err)
	}
}

func TestStreamSourceJSONL(t *testing.T) {
	in := strings.Join([]string{
		`{"t": 1000, "pts": [[0.1, 0.2, 0], [0.3, 0.4, 0]]}`,
		``,
		`{"t": 2000000000, "gap": true}`,
		`{not json`,
		`{"t": 3000000000, "pts": []}`,
		`{"t": 4000000000, "pts": [[0.5, 0.5, 0]]}`,
	}, "\n")
	src := NewStreamSource(io.NopCloser(strings.NewReader(in)), FormatJSONL)
	defer src.Close()
	ctx := context.Background()

	f, err := src.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Points) != 2 || f.Points[1].Y != 0.4 {
		t.Errorf("points = %+v", f.Points)
	}
	if f, err := src.Next(ctx); !errors.Is(err, ErrNoFrame) || !f.At.Equal(time.Unix(2, 0)) {
		t.Errorf("gap = %v, %v; want ErrNoFrame at 2s", f.At, err)
	}
	if _, err := src.Next(ctx); !errors.Is(err, ErrNoFrame) || errors.Is(err, ErrCaptureFault) {
		t.Errorf("bad line: err = %v, want ErrNoFrame only", err)
	}
	// the stream picks up again on the next line
	for _, want := range []time.Time{time.Unix(3, 0), time.Unix(4, 0)} {
		f, err := src.Next(ctx)
		if err != nil {
			t.Fatalf("after bad line: %v", err)
		}
		if !f.At.Equal(want) {
			t.Errorf("At = %v, want %v", f.At, want)
		}
	}
	if _, err := src.Next(ctx); !errors.Is(err, ErrCaptureFault) {
		t.Errorf("eof: err = %v, want ErrCaptureFault", err)
	}
}

func TestStreamSourceContextCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	src := NewStreamSource(pr, FormatMsgpack)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := src.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatMsgpack, false},
		{"msgpack", FormatMsgpack, false},
		{"jsonl", FormatJSONL, false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestFakeSource(t *testing.T) {
	src := NewFake().
		Add(Frame{At: time.Unix(1, 0)}).
		AddGap(time.Unix(2, 0)).
		AddFault(errors.New("unplugged"))
	ctx := context.Background()

	if _, err := src.Next(ctx); err != nil {
		t.Fatal(err)
	}
	if f, err := src.Next(ctx); !errors.Is(err, ErrNoFrame) || !f.At.Equal(time.Unix(2, 0)) {
		t.Errorf("gap = %v, %v; want ErrNoFrame at 2s", f.At, err)
	}
	if _, err := src.Next(ctx); !errors.Is(err, ErrCaptureFault) {
		t.Errorf("err = %v, want ErrCaptureFault", err)
	}
	if _, err := src.Next(ctx); !errors.Is(err, ErrCaptureFault) {
		t.Errorf("exhausted: err = %v, want ErrCaptureFault", err)
	}
}

func TestFrameHas(t *testing.T) {
	f := SyntheticFace(time.Now(), 0.3, 0, 0)
	if !f.Has(RightEye[:]...) || !f.Has(LeftIris[:]...) {
		t.Error("synthetic face missing eye indices")
	}
	if (Frame{}).Has(0) {
		t.Error("empty frame reports index 0")
	}
}
