// Package eyestate turns face landmarks into an eye aspect ratio and a raw
// gaze vector per frame.
package eyestate

import (
	"errors"
	"math"
	"time"

	"blinkos/landmark"
)

// ErrTrackingLost is reported once per low-confidence run that outlasts the
// recovery window.
var ErrTrackingLost = errors.New("eyestate: tracking lost")

// Gaze is an iris offset inside the eye bounding box, each axis in [-1, 1].
// Positive X is toward the image right, positive Y toward the image bottom.
type Gaze struct {
	X float64 `msgpack:"x"`
	Y float64 `msgpack:"y"`
}

// State is the per-frame estimate.
//
// When Confident is false, Gaze repeats the last valid value (or is zero after
// tracking was lost) and EAR is zero. GazeHeld is set when the face was found
// but the eyes were too closed to locate the iris; Gaze then repeats the last
// valid value while EAR is still measured.
type State struct {
	At           time.Time
	EAR          float64
	Gaze         Gaze
	Confident    bool
	GazeHeld     bool
	TrackingLost bool
}

type Config struct {
	// MinEyeWidth rejects eyes narrower than this, in normalized image units.
	MinEyeWidth float64
	// MinGazeEAR is the openness below which the iris offset is not trusted.
	MinGazeEAR float64
	// RecoveryWindow bounds how long the held gaze survives low confidence.
	RecoveryWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinEyeWidth:    0.01,
		MinGazeEAR:     0.12,
		RecoveryWindow: time.Second,
	}
}

type Estimator struct {
	cfg Config

	last    Gaze
	hasLast bool

	lowSince time.Time
	inLow    bool
	lost     bool
}

func New(cfg Config) *Estimator {
	return &Estimator{cfg: cfg}
}

type eyeMeasure struct {
	ear  float64
	gaze Gaze
	ok   bool
}

// Update estimates the state for one frame.
func (e *Estimator) Update(f landmark.Frame) State {
	r := measureEye(f, landmark.RightEye, landmark.RightIris, landmark.RightIrisCenter, e.cfg.MinEyeWidth)
	l := measureEye(f, landmark.LeftEye, landmark.LeftIris, landmark.LeftIrisCenter, e.cfg.MinEyeWidth)

	var ear float64
	var g Gaze
	switch {
	case r.ok && l.ok:
		ear = (r.ear + l.ear) / 2
		g = Gaze{X: (r.gaze.X + l.gaze.X) / 2, Y: (r.gaze.Y + l.gaze.Y) / 2}
	case r.ok:
		ear, g = r.ear, r.gaze
	case l.ok:
		ear, g = l.ear, l.gaze
	default:
		return e.Miss(f.At)
	}

	e.inLow = false
	e.lost = false

	st := State{At: f.At, EAR: ear, Confident: true}
	if ear < e.cfg.MinGazeEAR {
		st.Gaze = e.last
		st.GazeHeld = true
		return st
	}
	e.last = g
	e.hasLast = true
	st.Gaze = g
	return st
}

// Miss records a tick without usable landmarks, whether the extractor sent an
// empty frame or nothing at all.
func (e *Estimator) Miss(at time.Time) State {
	if !e.inLow {
		e.inLow = true
		e.lowSince = at
	}
	st := State{At: at, Gaze: e.last}
	if !e.lost && at.Sub(e.lowSince) > e.cfg.RecoveryWindow {
		e.lost = true
		e.last = Gaze{}
		e.hasLast = false
		st.Gaze = Gaze{}
		st.TrackingLost = true
	}
	return st
}

// Lost reports whether the current low-confidence run has timed out.
func (e *Estimator) Lost() bool { return e.lost }

func (e *Estimator) Reset() {
	*e = Estimator{cfg: e.cfg}
}

func measureEye(f landmark.Frame, eye [6]int, iris [4]int, center int, minWidth float64) eyeMeasure {
	if !f.Has(eye[:]...) {
		return eyeMeasure{}
	}
	p := func(i int) landmark.Point { return f.Points[eye[i]] }

	width := landmark.Distance(p(0), p(3))
	if !finite(width) || width < minWidth {
		return eyeMeasure{}
	}
	ear := (landmark.Distance(p(1), p(5)) + landmark.Distance(p(2), p(4))) / (2 * width)
	if !finite(ear) {
		return eyeMeasure{}
	}

	ic, ok := irisCenter(f, iris, center)
	if !ok {
		return eyeMeasure{}
	}

	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, i := range eye {
		pt := f.Points[i]
		minX = math.Min(minX, pt.X)
		maxX = math.Max(maxX, pt.X)
		minY = math.Min(minY, pt.Y)
		maxY = math.Max(maxY, pt.Y)
	}

	g := Gaze{X: normAxis(ic.X, minX, maxX), Y: normAxis(ic.Y, minY, maxY)}
	return eyeMeasure{ear: ear, gaze: g, ok: true}
}

// irisCenter averages the four iris ring points, falling back to the
// refined center point when the ring is absent.
func irisCenter(f landmark.Frame, iris [4]int, center int) (landmark.Point, bool) {
	if f.Has(iris[:]...) {
		var c landmark.Point
		for _, i := range iris {
			c.X += f.Points[i].X
			c.Y += f.Points[i].Y
		}
		c.X /= 4
		c.Y /= 4
		return c, finite(c.X) && finite(c.Y)
	}
	if f.Has(center) {
		c := f.Points[center]
		return c, finite(c.X) && finite(c.Y)
	}
	return landmark.Point{}, false
}

func normAxis(v, lo, hi float64) float64 {
	span := hi - lo
	if span <= 0 {
		return 0
	}
	n := 2*(v-lo)/span - 1
	return math.Max(-1, math.Min(1, n))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
