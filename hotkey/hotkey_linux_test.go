//go:build linux

package hotkey

import (
	"encoding/binary"
	"testing"
)

func key(code uint16, value int32) inputEvent {
	return inputEvent{typ: evKey, code: code, value: value}
}

func TestComboTracker(t *testing.T) {
	tr := &comboTracker{combo: DefaultCombo, code: keyCode(DefaultCombo.Key)}
	steps := []struct {
		ev                inputEvent
		pressed, released bool
	}{
		{key(keySpace, 1), false, false}, // no modifiers
		{key(keySpace, 0), false, false},
		{key(keyLCtrl, 1), false, false},
		{key(keySpace, 1), false, false}, // shift missing
		{key(keySpace, 0), false, false},
		{key(keyRShift, 1), false, false},
		{key(keySpace, 1), true, false},
		{key(keySpace, 2), false, false}, // autorepeat
		{key(keyLCtrl, 0), false, false}, // releasing a modifier first still ends on key up
		{key(keySpace, 0), false, true},
		{inputEvent{typ: 4, code: 4, value: 1}, false, false}, // EV_MSC
	}
	for i, s := range steps {
		p, r := tr.feed(s.ev)
		if p != s.pressed || r != s.released {
			t.Errorf("step %d: got (%v,%v), want (%v,%v)", i, p, r, s.pressed, s.released)
		}
	}
}

func TestComboTrackerLetter(t *testing.T) {
	c, err := ParseCombo("ctrl+b")
	if err != nil {
		t.Fatal(err)
	}
	tr := &comboTracker{combo: c, code: keyCode(c.Key)}
	tr.feed(key(keyRCtrl, 1))
	if p, _ := tr.feed(key(48, 1)); !p {
		t.Error("ctrl+b not detected")
	}
}

func TestDecodeEvents(t *testing.T) {
	buf := make([]byte, 2*inputEventSize+5)
	binary.LittleEndian.PutUint16(buf[16:], evKey)
	binary.LittleEndian.PutUint16(buf[18:], keySpace)
	binary.LittleEndian.PutUint32(buf[20:], 1)
	binary.LittleEndian.PutUint16(buf[inputEventSize+16:], evKey)
	binary.LittleEndian.PutUint16(buf[inputEventSize+18:], keyLCtrl)

	var got []inputEvent
	decodeEvents(buf, func(ev inputEvent) { got = append(got, ev) })
	if len(got) != 2 {
		t.Fatalf("decoded %d events, want 2 (trailing partial ignored)", len(got))
	}
	if got[0] != key(keySpace, 1) || got[1] != key(keyLCtrl, 0) {
		t.Errorf("events = %+v", got)
	}
}
