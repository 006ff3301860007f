package beep

import "testing"

func TestToneShapes(t *testing.T) {
	click := tones[Click].samples(0)
	if want := int(sampleRate * tones[Click].dur); len(click) != want {
		t.Errorf("click samples = %d, want %d", len(click), want)
	}
	if click[0] != 0 {
		t.Errorf("cue does not start at zero: %d", click[0])
	}

	single := tick(tones[Error].freq, tones[Error].dur, tones[Error].volume, tones[Error].decay)
	double := tones[Error].samples(0)
	if len(double) <= 2*len(single) {
		t.Errorf("error cue has no gap: %d vs %d", len(double), len(single))
	}

	tail := tones[Mode].samples(0.15)
	if len(tail) <= len(tones[Mode].samples(0)) {
		t.Error("tail not added")
	}
}

func TestDecays(t *testing.T) {
	s := tick(440, 0.2, 0.5, 40)
	peak := func(from, to int) int16 {
		var p int16
		for _, v := range s[from:to] {
			if v < 0 {
				v = -v
			}
			p = max(p, v)
		}
		return p
	}
	if early, late := peak(0, 1000), peak(len(s)-1000, len(s)); late >= early {
		t.Errorf("no decay: early %d late %d", early, late)
	}
}

func TestDisabledByDefault(t *testing.T) {
	if Enabled() {
		t.Fatal("cues enabled by default")
	}
	Play(Click) // must be a no-op
	Enable()
	if !Enabled() {
		t.Error("Enable had no effect")
	}
	Disable()
}
