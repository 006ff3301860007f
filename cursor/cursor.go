// Package cursor smooths mapped gaze positions into cursor intents.
package cursor

import (
	"time"

	"blinkos/eyestate"
	"blinkos/intent"
)

// Mapper turns a raw gaze vector into a screen position.
type Mapper interface {
	Apply(g eyestate.Gaze) (intent.Point, error)
}

// Driver keeps a moving average over the last Window mapped positions. The
// output for a step input reaches the new value after exactly Window frames
// and stays within the range of the inputs.
type Driver struct {
	mapper Mapper
	window int

	ring []intent.Point
	pos  int
	n    int

	last       intent.Point
	hasLast    bool
	collecting bool
}

func New(mapper Mapper, window int) *Driver {
	if window < 1 {
		window = 1
	}
	return &Driver{
		mapper: mapper,
		window: window,
		ring:   make([]intent.Point, window),
	}
}

func (d *Driver) Window() int { return d.window }

// Update processes one eye state. It returns an intent for every confident
// state unless the driver is collecting calibration samples. Mapping errors
// are returned without touching the window.
func (d *Driver) Update(st eyestate.State) (intent.Cursor, bool, error) {
	if st.TrackingLost {
		d.Reset()
	}
	if !st.Confident || d.collecting {
		return intent.Cursor{}, false, nil
	}
	p, err := d.mapper.Apply(st.Gaze)
	if err != nil {
		return intent.Cursor{}, false, err
	}
	return intent.Cursor{To: d.push(p), At: st.At, Source: intent.SourceGaze}, true, nil
}

func (d *Driver) push(p intent.Point) intent.Point {
	d.ring[d.pos] = p
	d.pos = (d.pos + 1) % d.window
	if d.n < d.window {
		d.n++
	}
	var sum intent.Point
	for i := 0; i < d.n; i++ {
		sum.X += d.ring[i].X
		sum.Y += d.ring[i].Y
	}
	d.last = intent.Point{X: sum.X / float64(d.n), Y: sum.Y / float64(d.n)}
	d.hasLast = true
	return d.last
}

// Position is the last emitted position.
func (d *Driver) Position() (intent.Point, bool) {
	return d.last, d.hasLast
}

// Reset empties the window. The last position is kept for display.
func (d *Driver) Reset() {
	d.pos = 0
	d.n = 0
}

// SetCollecting switches the calibration sub-state. Leaving it resets the
// window so pre-calibration positions do not bleed into the new mapping.
func (d *Driver) SetCollecting(on bool) {
	if d.collecting && !on {
		d.Reset()
	}
	d.collecting = on
}

func (d *Driver) Collecting() bool { return d.collecting }

// Latency is the worst-case delay the window adds at the given frame period.
func (d *Driver) Latency(framePeriod time.Duration) time.Duration {
	return time.Duration(d.window-1) * framePeriod
}
