//go:build !linux

package hotkey

import (
	"fmt"

	"golang.design/x/hotkey"
)

var letterKeys = [26]hotkey.Key{
	hotkey.KeyA, hotkey.KeyB, hotkey.KeyC, hotkey.KeyD, hotkey.KeyE,
	hotkey.KeyF, hotkey.KeyG, hotkey.KeyH, hotkey.KeyI, hotkey.KeyJ,
	hotkey.KeyK, hotkey.KeyL, hotkey.KeyM, hotkey.KeyN, hotkey.KeyO,
	hotkey.KeyP, hotkey.KeyQ, hotkey.KeyR, hotkey.KeyS, hotkey.KeyT,
	hotkey.KeyU, hotkey.KeyV, hotkey.KeyW, hotkey.KeyX, hotkey.KeyY,
	hotkey.KeyZ,
}

type xHotkey struct {
	combo   Combo
	hk      *hotkey.Hotkey
	keydown chan struct{}
	keyup   chan struct{}
}

func New(c Combo) Hotkey {
	var mods []hotkey.Modifier
	if c.Ctrl {
		mods = append(mods, hotkey.ModCtrl)
	}
	if c.Shift {
		mods = append(mods, hotkey.ModShift)
	}
	key := hotkey.KeySpace
	if len(c.Key) == 1 && c.Key[0] >= 'a' && c.Key[0] <= 'z' {
		key = letterKeys[c.Key[0]-'a']
	}
	return &xHotkey{
		combo:   c,
		hk:      hotkey.New(mods, key),
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

func (h *xHotkey) Register() error {
	if err := h.hk.Register(); err != nil {
		return fmt.Errorf("register %s: %w", h.combo, err)
	}
	go relay(h.hk.Keydown(), h.keydown)
	go relay(h.hk.Keyup(), h.keyup)
	return nil
}

func (h *xHotkey) Unregister() {
	h.hk.Unregister()
}

func (h *xHotkey) Keydown() <-chan struct{} { return h.keydown }
func (h *xHotkey) Keyup() <-chan struct{}   { return h.keyup }

// relay copies library events into our buffered channel, dropping any that
// arrive while one is still pending. It ends when the library closes src.
func relay(src <-chan hotkey.Event, dst chan struct{}) {
	for range src {
		select {
		case dst <- struct{}{}:
		default:
		}
	}
}

func Diagnose() (string, error) {
	return "system hotkey API available (" + DefaultCombo.String() + " by default)", nil
}
