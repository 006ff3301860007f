package cursor

import (
	"errors"
	"math"
	"testing"
	"time"

	"blinkos/eyestate"
	"blinkos/intent"
)

// pixelMapper maps gaze straight to pixels, x1000.
type pixelMapper struct{ err error }

func (m pixelMapper) Apply(g eyestate.Gaze) (intent.Point, error) {
	if m.err != nil {
		return intent.Point{}, m.err
	}
	return intent.Point{X: g.X * 1000, Y: g.Y * 1000}, nil
}

func state(at time.Time, x, y float64) eyestate.State {
	return eyestate.State{At: at, Confident: true, EAR: 0.3, Gaze: eyestate.Gaze{X: x, Y: y}}
}

func TestStepSettlesWithinWindow(t *testing.T) {
	for _, window := range []int{1, 3, 5, 9} {
		d := New(pixelMapper{}, window)
		t0 := time.Unix(0, 0)
		for i := 0; i < 20; i++ {
			d.Update(state(t0, 0.1, 0.2))
		}

		const tol = 1e-9
		prev := 100.0
		for i := 1; i <= window+5; i++ {
			c, ok, err := d.Update(state(t0, 0.6, 0.2))
			if err != nil || !ok {
				t.Fatalf("window %d: frame %d not emitted (%v)", window, i, err)
			}
			if c.To.X < 100-tol || c.To.X > 600+tol {
				t.Errorf("window %d: frame %d overshoot %.3f", window, i, c.To.X)
			}
			if c.To.X < prev-tol {
				t.Errorf("window %d: frame %d moved backwards %.3f < %.3f", window, i, c.To.X, prev)
			}
			prev = c.To.X
			if i >= window && math.Abs(c.To.X-600) > tol {
				t.Errorf("window %d: frame %d = %.3f, want settled at 600", window, i, c.To.X)
			}
		}
	}
}

func TestOneIntentPerConfidentState(t *testing.T) {
	d := New(pixelMapper{}, 5)
	t0 := time.Unix(0, 0)
	var emitted int
	for i := 0; i < 10; i++ {
		st := state(t0.Add(time.Duration(i)*33*time.Millisecond), 0.5, 0.5)
		if i%3 == 0 {
			st.Confident = false
		}
		c, ok, _ := d.Update(st)
		if ok {
			emitted++
			if c.Source != intent.SourceGaze || !c.At.Equal(st.At) {
				t.Errorf("intent = %+v", c)
			}
		}
	}
	if emitted != 6 {
		t.Errorf("emitted %d, want 6", emitted)
	}
}

func TestHoldOnLowConfidence(t *testing.T) {
	d := New(pixelMapper{}, 3)
	d.Update(state(time.Now(), 0.2, 0.3))
	before, _ := d.Position()

	_, ok, _ := d.Update(eyestate.State{Gaze: eyestate.Gaze{X: 0.9, Y: 0.9}})
	if ok {
		t.Fatal("emitted on low confidence")
	}
	if after, _ := d.Position(); after != before {
		t.Errorf("position moved %+v -> %+v", before, after)
	}
}

func TestCollectingSuppressesEmission(t *testing.T) {
	d := New(pixelMapper{}, 3)
	d.SetCollecting(true)
	if _, ok, _ := d.Update(state(time.Now(), 0.1, 0.1)); ok {
		t.Error("emitted while collecting")
	}
	d.SetCollecting(false)
	c, ok, _ := d.Update(state(time.Now(), 0.4, 0.4))
	if !ok || c.To.X != 400 {
		t.Errorf("after collecting: %+v ok=%v", c, ok)
	}
}

func TestTrackingLostResetsWindow(t *testing.T) {
	d := New(pixelMapper{}, 5)
	for i := 0; i < 5; i++ {
		d.Update(state(time.Now(), 0.1, 0.1))
	}
	d.Update(eyestate.State{TrackingLost: true})
	c, _, _ := d.Update(state(time.Now(), 0.8, 0.8))
	if c.To.X != 800 {
		t.Errorf("X = %v, want 800 after reset", c.To.X)
	}
}

func TestMapperErrorPropagates(t *testing.T) {
	boom := errors.New("not calibrated")
	d := New(pixelMapper{err: boom}, 5)
	if _, ok, err := d.Update(state(time.Now(), 0, 0)); ok || !errors.Is(err, boom) {
		t.Errorf("ok=%v err=%v", ok, err)
	}
}

func TestLatencyBounded(t *testing.T) {
	d := New(pixelMapper{}, 5)
	if got := d.Latency(33 * time.Millisecond); got != 132*time.Millisecond {
		t.Errorf("latency = %v", got)
	}
}
