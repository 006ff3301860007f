package hotkey

import "time"

// FakeHotkey is driven by tests instead of a keyboard.
type FakeHotkey struct {
	down, up chan struct{}
}

func NewFake() *FakeHotkey {
	return &FakeHotkey{down: make(chan struct{}, 1), up: make(chan struct{}, 1)}
}

func (f *FakeHotkey) Register() error          { return nil }
func (f *FakeHotkey) Unregister()              {}
func (f *FakeHotkey) Keydown() <-chan struct{} { return f.down }
func (f *FakeHotkey) Keyup() <-chan struct{}   { return f.up }

func (f *FakeHotkey) SimKeydown() { f.down <- struct{}{} }
func (f *FakeHotkey) SimKeyup()   { f.up <- struct{}{} }

// SimPress holds the combo for d, then lets go.
func (f *FakeHotkey) SimPress(d time.Duration) {
	f.SimKeydown()
	time.Sleep(d)
	f.SimKeyup()
}
