// Package calibration fits and applies the transform from raw gaze vectors
// to screen coordinates using a 3x3 grid of reference points.
package calibration

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"blinkos/eyestate"
	"blinkos/intent"
)

var (
	ErrCalibrationBusy  = errors.New("calibration: session already active")
	ErrNoSession        = errors.New("calibration: no active session")
	ErrBadPoint         = errors.New("calibration: reference index out of range")
	ErrInsufficientData = errors.New("calibration: insufficient calibration data")
	ErrFitDegenerate    = errors.New("calibration: fit degenerate")
	ErrNotCalibrated    = errors.New("calibration: no transform committed or loaded")
	ErrInvalidProfile   = errors.New("calibration: invalid profile")
)

type Config struct {
	ScreenW, ScreenH int
	SamplesPerPoint  int
	GridMargin       float64
	MaxCondition     float64
}

func DefaultConfig() Config {
	return Config{
		ScreenW:         1920,
		ScreenH:         1080,
		SamplesPerPoint: 5,
		GridMargin:      0.1,
		MaxCondition:    1e6,
	}
}

type session struct {
	samples [NumPoints][]eyestate.Gaze
	started time.Time
}

// Engine owns the active profile and at most one calibration session.
// Apply is lock free: the profile is published as a whole through an atomic
// pointer and never mutated afterwards.
type Engine struct {
	cfg    Config
	active atomic.Pointer[Profile]

	mu   sync.Mutex
	sess *session
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

func (e *Engine) Config() Config { return e.cfg }

// Begin starts a session. The active profile keeps serving Apply until a
// Commit succeeds.
func (e *Engine) Begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess != nil {
		return ErrCalibrationBusy
	}
	e.sess = &session{started: time.Now()}
	return nil
}

// RecordPoint adds one observation for reference point idx. Only the last
// SamplesPerPoint observations of a point are kept; Commit averages them.
func (e *Engine) RecordPoint(idx int, g eyestate.Gaze) error {
	if idx < 0 || idx >= NumPoints {
		return fmt.Errorf("%w: %d", ErrBadPoint, idx)
	}
	if math.IsNaN(g.X) || math.IsNaN(g.Y) || math.IsInf(g.X, 0) || math.IsInf(g.Y, 0) {
		return fmt.Errorf("%w: non-finite gaze for point %d", ErrInsufficientData, idx)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return ErrNoSession
	}
	s := append(e.sess.samples[idx], g)
	if n := e.cfg.SamplesPerPoint; n > 0 && len(s) > n {
		s = append([]eyestate.Gaze(nil), s[len(s)-n:]...)
	}
	e.sess.samples[idx] = s
	return nil
}

// Progress returns the number of kept samples per reference point.
func (e *Engine) Progress() (counts [NumPoints]int, active bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return counts, false
	}
	for i, s := range e.sess.samples {
		counts[i] = len(s)
	}
	return counts, true
}

func (e *Engine) InSession() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess != nil
}

// Commit fits the transform and publishes it.
//
// With points missing it returns ErrInsufficientData and the session stays
// open so they can still be recorded. A degenerate fit ends the session.
// On any error the previously active profile is untouched.
func (e *Engine) Commit() (*Profile, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return nil, ErrNoSession
	}

	var missing []int
	for i, s := range e.sess.samples {
		if len(s) == 0 {
			missing = append(missing, i)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %d of %d points have no samples %v",
			ErrInsufficientData, len(missing), NumPoints, missing)
	}

	p := &Profile{
		Version:   ProfileVersion,
		ID:        newProfileID(),
		CreatedAt: time.Now(),
		ScreenW:   e.cfg.ScreenW,
		ScreenH:   e.cfg.ScreenH,
		Margin:    e.cfg.GridMargin,
	}
	obs := make([]eyestate.Gaze, NumPoints)
	targets := make([]intent.Point, NumPoints)
	for i, s := range e.sess.samples {
		obs[i] = mean(s)
		targets[i] = GridNorm(i, e.cfg.GridMargin)
		p.Points[i] = PointRecord{Target: targets[i], Observed: obs[i], Samples: len(s)}
	}
	e.sess = nil

	m, cond, err := fit(obs, targets, e.cfg.MaxCondition)
	if err != nil {
		return nil, err
	}
	p.Model = m
	p.Cond = cond
	p.RMSPixels = rmsPixels(m, obs, targets, e.cfg.ScreenW, e.cfg.ScreenH)

	e.active.Store(p)
	return p, nil
}

// Abort drops the session. The active profile was never replaced, so it
// keeps serving Apply unchanged.
func (e *Engine) Abort() {
	e.mu.Lock()
	e.sess = nil
	e.mu.Unlock()
}

// Apply maps g to a pixel coordinate clamped to the screen.
func (e *Engine) Apply(g eyestate.Gaze) (intent.Point, error) {
	p := e.active.Load()
	if p == nil {
		return intent.Point{}, ErrNotCalibrated
	}
	n := p.Model.Eval(g)
	px := toPixels(n, e.cfg.ScreenW, e.cfg.ScreenH)
	px.X = clamp(px.X, 0, float64(e.cfg.ScreenW-1))
	px.Y = clamp(px.Y, 0, float64(e.cfg.ScreenH-1))
	return px, nil
}

// Load validates p and swaps it in as the active transform.
func (e *Engine) Load(p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	e.active.Store(p)
	return nil
}

// Export returns the active profile.
func (e *Engine) Export() (*Profile, error) {
	p := e.active.Load()
	if p == nil {
		return nil, ErrNotCalibrated
	}
	return p, nil
}

func (e *Engine) Calibrated() bool {
	return e.active.Load() != nil
}

func mean(s []eyestate.Gaze) eyestate.Gaze {
	var g eyestate.Gaze
	for _, v := range s {
		g.X += v.X
		g.Y += v.Y
	}
	g.X /= float64(len(s))
	g.Y /= float64(len(s))
	return g
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
