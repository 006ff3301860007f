// Package landmark defines the per-frame face landmark input consumed from an
// external extractor (MediaPipe face mesh with refined iris points).
package landmark

import (
	"context"
	"errors"
	"math"
	"time"
)

// Face mesh indices, MediaPipe convention with iris refinement enabled.
// Eye contours are ordered p1..p6 for the eye aspect ratio:
// p1/p4 are the corners, p2/p3 the upper lid and p6/p5 the lower lid.
var (
	RightEye = [6]int{33, 160, 158, 133, 153, 144}
	LeftEye  = [6]int{362, 385, 387, 263, 373, 380}

	RightIris = [4]int{469, 470, 471, 472}
	LeftIris  = [4]int{474, 475, 476, 477}
)

const (
	RightIrisCenter = 468
	LeftIrisCenter  = 473
	NumLandmarks    = 478
)

var (
	// ErrNoFrame means the extractor had nothing for this tick. It is
	// transient and distinct from a frame with unusable landmarks.
	ErrNoFrame = errors.New("landmark: no frame available")

	// ErrCaptureFault wraps fatal extractor failures (disconnect, EOF).
	ErrCaptureFault = errors.New("landmark: capture fault")
)

type Point struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

func Distance(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Frame is one extractor output. Points is empty when no face was found.
type Frame struct {
	At     time.Time
	Points []Point
}

// Has reports whether every index is present in the frame.
func (f Frame) Has(idx ...int) bool {
	for _, i := range idx {
		if i < 0 || i >= len(f.Points) {
			return false
		}
	}
	return true
}

// Source delivers frames in capture order. Next returns ErrNoFrame when the
// extractor skipped a tick and an error wrapping ErrCaptureFault when it is
// gone for good.
type Source interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}
