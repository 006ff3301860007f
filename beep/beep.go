// Package beep plays short audible cues for clicks, mode switches and
// errors. Cues are off until Enable is called.
package beep

import (
	"math"
	"sync/atomic"
)

var enabled atomic.Bool

func Enable()  { enabled.Store(true) }
func Disable() { enabled.Store(false) }

func Enabled() bool { return enabled.Load() }

const sampleRate = 44100

// Cue is one of the fixed sounds.
type Cue int

const (
	// Click confirms a forwarded blink click or a captured calibration point.
	Click Cue = iota
	// Mode marks a mode switch.
	Mode
	// Error is a low double beep for faults.
	Error
)

type tone struct {
	freq, volume, decay float64
	// seconds; the pulse backend pads with a tail so its buffer fills
	dur    float64
	double bool
}

var tones = [...]tone{
	Click: {freq: 1200, volume: 0.5, decay: 60, dur: 0.05},
	Mode:  {freq: 900, volume: 0.5, decay: 40, dur: 0.08},
	Error: {freq: 350, volume: 0.6, decay: 30, dur: 0.08, double: true},
}

// samples renders a mono cue.
func (t tone) samples(tail float64) []int16 {
	one := tick(t.freq, t.dur+tail, t.volume, t.decay)
	if !t.double {
		return one
	}
	gap := make([]int16, int(sampleRate*0.05))
	out := make([]int16, 0, 2*len(one)+len(gap))
	out = append(out, one...)
	out = append(out, gap...)
	return append(out, one...)
}

func tick(freq, duration, volume, decay float64) []int16 {
	n := int(sampleRate * duration)
	out := make([]int16, n)
	for i := range out {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * decay)
		out[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return out
}

// Play starts c in the background. It never blocks the caller.
func Play(c Cue) {
	if !enabled.Load() || int(c) < 0 || int(c) >= len(tones) {
		return
	}
	play(c)
}
