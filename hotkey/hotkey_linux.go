//go:build linux

package hotkey

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// from linux/input-event-codes.h
const (
	evKey     = 1
	keyLCtrl  = 29
	keyRCtrl  = 97
	keyLShift = 42
	keyRShift = 54
	keySpace  = 57
)

// struct input_event on 64-bit: timeval (16) + type (2) + code (2) + value (4)
const inputEventSize = 24

var errNoKeyboard = errors.New("no keyboard devices found (is user in 'input' group?)")

// Linux input codes for a..z.
var letterCodes = [26]uint16{
	30, 48, 46, 32, 18, 33, 34, 35, 23, 36,
	37, 38, 50, 49, 24, 25, 16, 19, 31, 20,
	22, 47, 17, 45, 21, 44,
}

func keyCode(name string) uint16 {
	if len(name) == 1 && name[0] >= 'a' && name[0] <= 'z' {
		return letterCodes[name[0]-'a']
	}
	return keySpace
}

type inputEvent struct {
	typ   uint16
	code  uint16
	value int32 // 0 release, 1 press, 2 autorepeat
}

func decodeEvents(buf []byte, fn func(inputEvent)) {
	for i := 0; i+inputEventSize <= len(buf); i += inputEventSize {
		fn(inputEvent{
			typ:   binary.LittleEndian.Uint16(buf[i+16:]),
			code:  binary.LittleEndian.Uint16(buf[i+18:]),
			value: int32(binary.LittleEndian.Uint32(buf[i+20:])),
		})
	}
}

// comboTracker follows one keyboard's modifier state and reports when the
// combo goes down and when its key comes back up. Autorepeat is ignored.
type comboTracker struct {
	combo Combo
	code  uint16
	ctrl  bool
	shift bool
	down  bool
}

func (t *comboTracker) feed(ev inputEvent) (pressed, released bool) {
	if ev.typ != evKey || ev.value > 1 {
		return false, false
	}
	on := ev.value == 1
	switch ev.code {
	case keyLCtrl, keyRCtrl:
		t.ctrl = on
	case keyLShift, keyRShift:
		t.shift = on
	case t.code:
		mods := (!t.combo.Ctrl || t.ctrl) && (!t.combo.Shift || t.shift)
		switch {
		case on && !t.down && mods:
			t.down = true
			return true, false
		case !on && t.down:
			t.down = false
			return false, true
		}
	}
	return false, false
}

// linuxHotkey reads every keyboard under /dev/input directly, so it works
// without a display server.
type linuxHotkey struct {
	combo   Combo
	keydown chan struct{}
	keyup   chan struct{}
	files   []*os.File
	stop    chan struct{}
	once    sync.Once
}

func New(c Combo) Hotkey {
	return &linuxHotkey{
		combo:   c,
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
}

func (h *linuxHotkey) Register() error {
	files, total, err := openKeyboards()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("found %d keyboard(s) but could not open any (run: sudo usermod -aG input $USER, then re-login)", total)
	}
	h.files = files
	for _, f := range files {
		go h.watch(f)
	}
	return nil
}

func (h *linuxHotkey) watch(f *os.File) {
	t := &comboTracker{combo: h.combo, code: keyCode(h.combo.Key)}
	buf := make([]byte, inputEventSize*16)
	for {
		n, err := f.Read(buf)
		if err != nil {
			return
		}
		select {
		case <-h.stop:
			return
		default:
		}
		decodeEvents(buf[:n], func(ev inputEvent) {
			pressed, released := t.feed(ev)
			switch {
			case pressed:
				signal(h.keydown)
			case released:
				signal(h.keyup)
			}
		})
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Unregister closes the devices, which ends the readers.
func (h *linuxHotkey) Unregister() {
	h.once.Do(func() {
		close(h.stop)
		for _, f := range h.files {
			f.Close()
		}
	})
}

func (h *linuxHotkey) Keydown() <-chan struct{} { return h.keydown }
func (h *linuxHotkey) Keyup() <-chan struct{}   { return h.keyup }

// openKeyboards opens every readable keyboard and reports how many exist.
func openKeyboards() ([]*os.File, int, error) {
	entries, err := os.ReadDir("/dev/input")
	if err != nil {
		return nil, 0, fmt.Errorf("cannot scan input devices: %w", err)
	}
	var files []*os.File
	total := 0
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") || !isKeyboard(e.Name()) {
			continue
		}
		total++
		if f, err := os.Open(filepath.Join("/dev/input", e.Name())); err == nil {
			files = append(files, f)
		}
	}
	if total == 0 {
		return nil, 0, errNoKeyboard
	}
	return files, total, nil
}

// isKeyboard checks the key capability bitmap; mice and power buttons
// expose only a few bits.
func isKeyboard(eventName string) bool {
	data, err := os.ReadFile(filepath.Join("/sys/class/input", eventName, "device", "capabilities", "key"))
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(data))) > 10
}

// Diagnose reports whether the evdev backend can see and open a keyboard.
func Diagnose() (string, error) {
	files, total, err := openKeyboards()
	if err != nil {
		return "", err
	}
	for _, f := range files {
		f.Close()
	}
	if len(files) == 0 {
		return "", fmt.Errorf("found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER)", total)
	}
	return fmt.Sprintf("evdev: %d of %d keyboard(s) readable", len(files), total), nil
}
