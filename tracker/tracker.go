// Package tracker runs the frame pipeline: landmarks in, eye state, blink
// clicks and smoothed cursor positions out to the coordinator.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"blinkos/blink"
	"blinkos/calibration"
	"blinkos/coordinator"
	"blinkos/cursor"
	"blinkos/eyestate"
	"blinkos/intent"
	"blinkos/landmark"
	"blinkos/log"
)

type Config struct {
	Eye    eyestate.Config
	Blink  blink.Config
	Window int
	// CaptureSamples is how many recent raw gaze vectors one calibration
	// capture records.
	CaptureSamples int
}

// Status is a snapshot for the status display, replaced once per frame.
type Status struct {
	At           time.Time
	Frames       int64
	EAR          float64
	Gaze         eyestate.Gaze
	Confident    bool
	TrackingLost bool
	Blink        blink.Phase
	LastBlink    blink.Outcome
	Cursor       intent.Point
	HasCursor    bool
	Calibrated   bool
	Calibrating  bool
}

type Tracker struct {
	cfg   Config
	src   landmark.Source
	coord *coordinator.Coordinator
	cal   *calibration.Engine

	// owned by the Run goroutine
	est    *eyestate.Estimator
	blinks *blink.Classifier
	drv    *cursor.Driver

	// mu guards the calibration capture state shared with the UI.
	mu         sync.Mutex
	collecting bool
	ring       []eyestate.Gaze

	frames    atomic.Int64
	mapErrs   atomic.Int64
	status    atomic.Pointer[Status]
	mapWarned bool
}

func New(cfg Config, src landmark.Source, cal *calibration.Engine, coord *coordinator.Coordinator) *Tracker {
	if cfg.CaptureSamples < 1 {
		cfg.CaptureSamples = 1
	}
	t := &Tracker{
		cfg:    cfg,
		src:    src,
		coord:  coord,
		cal:    cal,
		est:    eyestate.New(cfg.Eye),
		blinks: blink.New(cfg.Blink),
		drv:    cursor.New(cal, cfg.Window),
	}
	t.status.Store(&Status{})
	return t
}

// Run reads frames until ctx is done or the source fails for good. A
// capture fault is reported to the coordinator before Run returns it.
func (t *Tracker) Run(ctx context.Context) error {
	for {
		f, err := t.src.Next(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var st eyestate.State
		switch {
		case err == nil:
			st = t.est.Update(f)
		case errors.Is(err, landmark.ErrNoFrame):
			at := f.At
			if at.IsZero() {
				at = time.Now()
			}
			st = t.est.Miss(at)
		default:
			if !errors.Is(err, landmark.ErrCaptureFault) {
				err = fmt.Errorf("%w: %v", landmark.ErrCaptureFault, err)
			}
			t.coord.ReportFault(coordinator.Fault{
				Kind:     coordinator.FaultCapture,
				Pipeline: coordinator.PipelineEye,
				At:       time.Now(),
				Err:      err,
			})
			return err
		}
		t.process(ctx, st)
	}
}

func (t *Tracker) process(ctx context.Context, st eyestate.State) {
	n := t.frames.Add(1)

	if st.TrackingLost {
		t.coord.ReportFault(coordinator.Fault{
			Kind:     coordinator.FaultTrackingLost,
			Pipeline: coordinator.PipelineEye,
			At:       st.At,
			Err:      eyestate.ErrTrackingLost,
		})
	}

	t.mu.Lock()
	collecting := t.collecting
	if collecting && st.Confident && !st.GazeHeld {
		t.ring = append(t.ring, st.Gaze)
		if len(t.ring) > t.cfg.CaptureSamples {
			t.ring = t.ring[1:]
		}
	}
	t.mu.Unlock()
	t.drv.SetCollecting(collecting)

	// blinks still advance while calibrating so a closure spanning the end
	// of a session is classified, but clicks are not forwarded
	if click, ok := t.blinks.Update(st); ok && !collecting {
		t.coord.SubmitEye(ctx, click)
	}

	cur, ok, err := t.drv.Update(st)
	switch {
	case err != nil:
		t.mapErrs.Add(1)
		if !t.mapWarned && !errors.Is(err, calibration.ErrNotCalibrated) {
			t.mapWarned = true
			log.Warnf("gaze mapping failed: %v", err)
		}
	case ok:
		t.coord.SubmitEye(ctx, cur)
	}

	pos, has := t.drv.Position()
	t.status.Store(&Status{
		At:           st.At,
		Frames:       n,
		EAR:          st.EAR,
		Gaze:         st.Gaze,
		Confident:    st.Confident,
		TrackingLost: t.est.Lost(),
		Blink:        t.blinks.Phase(),
		LastBlink:    t.blinks.LastOutcome(),
		Cursor:       pos,
		HasCursor:    has,
		Calibrated:   t.cal.Calibrated(),
		Calibrating:  collecting,
	})
}

func (t *Tracker) Status() Status { return *t.status.Load() }
func (t *Tracker) Frames() int64  { return t.frames.Load() }

// BeginCalibration opens a session and stops cursor output until it ends.
func (t *Tracker) BeginCalibration() error {
	if err := t.cal.Begin(); err != nil {
		return err
	}
	t.mu.Lock()
	t.collecting = true
	t.ring = t.ring[:0]
	t.mu.Unlock()
	log.Info("calibration started")
	return nil
}

// CapturePoint records the recent raw gaze vectors for reference point idx
// and returns how many were recorded.
func (t *Tracker) CapturePoint(idx int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.collecting {
		return 0, calibration.ErrNoSession
	}
	if len(t.ring) == 0 {
		return 0, fmt.Errorf("%w: no confident gaze to capture for point %d",
			calibration.ErrInsufficientData, idx)
	}
	for _, g := range t.ring {
		if err := t.cal.RecordPoint(idx, g); err != nil {
			return 0, err
		}
	}
	n := len(t.ring)
	t.ring = t.ring[:0]
	return n, nil
}

// CommitCalibration fits and publishes the new profile. Missing points keep
// the session open; any other outcome ends it.
func (t *Tracker) CommitCalibration() (*calibration.Profile, error) {
	p, err := t.cal.Commit()
	if errors.Is(err, calibration.ErrInsufficientData) {
		return nil, err
	}
	t.endSession()
	if err != nil {
		log.CalibrationFailed(err)
		t.coord.ReportFault(coordinator.Fault{
			Kind:     coordinator.FaultCalibration,
			Pipeline: coordinator.PipelineEye,
			At:       time.Now(),
			Err:      err,
		})
		return nil, err
	}
	log.CalibrationCommitted(p.ID, calibration.NumPoints, p.RMSPixels)
	return p, nil
}

// AbortCalibration drops the session; the previous profile stays active.
func (t *Tracker) AbortCalibration() {
	t.cal.Abort()
	t.endSession()
	log.Info("calibration aborted")
}

func (t *Tracker) Calibrating() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.collecting
}

func (t *Tracker) endSession() {
	t.mu.Lock()
	t.collecting = false
	t.ring = t.ring[:0]
	t.mu.Unlock()
}
