package hotkey

import (
	"testing"
	"time"
)

func waitAction(t *testing.T, g *Gestures, want Action) {
	t.Helper()
	select {
	case got := <-g.Actions():
		if got != want {
			t.Fatalf("action = %v, want %v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %v", want)
	}
}

func noAction(t *testing.T, g *Gestures, within time.Duration) {
	t.Helper()
	select {
	case a := <-g.Actions():
		t.Fatalf("unexpected %v", a)
	case <-time.After(within):
	}
}

func TestTap(t *testing.T) {
	fk := NewFake()
	g := NewGestures(fk, 200*time.Millisecond)

	fk.SimKeydown()
	noAction(t, g, 20*time.Millisecond)
	fk.SimKeyup()
	waitAction(t, g, Tap)
}

func TestHoldFiresBeforeRelease(t *testing.T) {
	fk := NewFake()
	threshold := 50 * time.Millisecond
	g := NewGestures(fk, threshold)

	fk.SimKeydown()
	waitAction(t, g, Hold)
	fk.SimKeyup()
	noAction(t, g, threshold)
}

func TestMultipleCycles(t *testing.T) {
	fk := NewFake()
	threshold := 50 * time.Millisecond
	g := NewGestures(fk, threshold)

	fk.SimPress(threshold + 20*time.Millisecond)
	waitAction(t, g, Hold)

	fk.SimPress(0)
	waitAction(t, g, Tap)

	fk.SimPress(5 * time.Millisecond)
	waitAction(t, g, Tap)

	fk.SimKeydown()
	waitAction(t, g, Hold)
	fk.SimKeyup()
}

func TestParseCombo(t *testing.T) {
	tests := []struct {
		in      string
		want    Combo
		wantErr bool
	}{
		{"ctrl+shift+space", DefaultCombo, false},
		{"Ctrl+B", Combo{Ctrl: true, Key: "b"}, false},
		{"shift + e", Combo{Shift: true, Key: "e"}, false},
		{"space", Combo{}, true},
		{"ctrl+f12", Combo{}, true},
		{"ctrl+space+shift", Combo{}, true},
		{"", Combo{}, true},
	}
	for _, tt := range tests {
		got, err := ParseCombo(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseCombo(%q) = %+v, %v", tt.in, got, err)
		}
	}
	if s := DefaultCombo.String(); s != "Ctrl+Shift+Space" {
		t.Errorf("String = %q", s)
	}
}
