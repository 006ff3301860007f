//go:build linux

package automation

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"blinkos/intent"
)

// ioctl constants from linux/uinput.h
const (
	uiSetEvbit   = 0x40045564 // UI_SET_EVBIT
	uiSetKeybit  = 0x40045565 // UI_SET_KEYBIT
	uiSetAbsbit  = 0x40045567 // UI_SET_ABSBIT
	uiDevCreate  = 0x5501     // UI_DEV_CREATE
	uiDevDestroy = 0x5502     // UI_DEV_DESTROY
)

// from linux/input-event-codes.h
const (
	evSyn   = 0x00
	evKey   = 0x01
	evAbs   = 0x03
	absX    = 0x00
	absY    = 0x01
	btnLeft = 0x110
)

const (
	busUSB     = 0x03
	deviceName = "blinkos-input"
	keyDelay   = 5 * time.Millisecond
)

type inputEvent struct {
	Time  syscall.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type uinputUserDev struct {
	Name         [80]byte
	ID           inputID
	FfEffectsMax uint32
	Absmax       [64]int32
	Absmin       [64]int32
	Absfuzz      [64]int32
	Absflat      [64]int32
}

// uinputDevice is one virtual device with a full keyboard, a left button and
// an absolute pointer spanning the screen.
type uinputDevice struct {
	mu sync.Mutex
	f  *os.File
}

func ioctl(f *os.File, req, arg uintptr) error {
	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), req, arg); errno != 0 {
		return errno
	}
	return nil
}

func openUinput(screenW, screenH int) (*uinputDevice, error) {
	if screenW < 1 || screenH < 1 {
		return nil, fmt.Errorf("uinput: bad screen size %dx%d", screenW, screenH)
	}
	path := "/dev/uinput"
	if _, err := os.Stat(path); err != nil {
		path = "/dev/input/uinput"
		if _, err := os.Stat(path); err != nil {
			return nil, errors.New("uinput device not found, try: sudo modprobe uinput")
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|syscall.O_NONBLOCK, os.ModeDevice)
	if err != nil {
		return nil, err
	}

	setup := func() error {
		for _, ev := range []uintptr{evKey, evSyn, evAbs} {
			if err := ioctl(f, uiSetEvbit, ev); err != nil {
				return err
			}
		}
		// all standard keys so udev classifies this as a keyboard too
		for i := uintptr(0); i < 256; i++ {
			if err := ioctl(f, uiSetKeybit, i); err != nil {
				return err
			}
		}
		if err := ioctl(f, uiSetKeybit, btnLeft); err != nil {
			return err
		}
		for _, a := range []uintptr{absX, absY} {
			if err := ioctl(f, uiSetAbsbit, a); err != nil {
				return err
			}
		}

		dev := uinputUserDev{}
		copy(dev.Name[:], deviceName)
		dev.ID.Bustype = busUSB
		dev.ID.Vendor = 0x1234
		dev.ID.Product = 0x5679
		dev.ID.Version = 1
		dev.Absmax[absX] = int32(screenW - 1)
		dev.Absmax[absY] = int32(screenH - 1)
		if err := binary.Write(f, binary.LittleEndian, &dev); err != nil {
			return err
		}
		return ioctl(f, uiDevCreate, 0)
	}
	if err := setup(); err != nil {
		f.Close()
		return nil, fmt.Errorf("uinput setup: %w", err)
	}
	// give the compositor time to pick up the new device
	time.Sleep(200 * time.Millisecond)
	return &uinputDevice{f: f}, nil
}

func (d *uinputDevice) write(typ, code uint16, value int32) error {
	ev := inputEvent{Type: typ, Code: code, Value: value}
	return binary.Write(d.f, binary.LittleEndian, &ev)
}

func (d *uinputDevice) syn() error {
	return d.write(evSyn, 0, 0)
}

func (d *uinputDevice) key(code int, down bool) error {
	v := int32(0)
	if down {
		v = 1
	}
	if err := d.write(evKey, uint16(code), v); err != nil {
		return err
	}
	return d.syn()
}

// Chord presses the modifiers, taps key and releases the modifiers in
// reverse order.
func (d *uinputDevice) Chord(mods []int, key int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range mods {
		if err := d.key(m, true); err != nil {
			return err
		}
	}
	if len(mods) > 0 {
		// let the compositor register modifier state
		time.Sleep(keyDelay)
	}
	if err := d.key(key, true); err != nil {
		return err
	}
	if err := d.key(key, false); err != nil {
		return err
	}
	for i := len(mods) - 1; i >= 0; i-- {
		if err := d.key(mods[i], false); err != nil {
			return err
		}
	}
	return nil
}

func (d *uinputDevice) Type(text string) error {
	return typeByChords(text, d.Chord)
}

func (d *uinputDevice) Move(p intent.Point) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.write(evAbs, absX, int32(p.X+0.5)); err != nil {
		return err
	}
	if err := d.write(evAbs, absY, int32(p.Y+0.5)); err != nil {
		return err
	}
	return d.syn()
}

func (d *uinputDevice) Click() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.key(btnLeft, true); err != nil {
		return err
	}
	time.Sleep(keyDelay)
	return d.key(btnLeft, false)
}

func (d *uinputDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	ioctl(d.f, uiDevDestroy, 0)
	err := d.f.Close()
	d.f = nil
	return err
}

// Verify taps Ctrl on the device and reads it back from the kernel input
// layer to confirm events are delivered.
func (d *uinputDevice) Verify() (string, error) {
	entries, err := os.ReadDir("/sys/class/input")
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	var evdevPath string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		data, err := os.ReadFile(filepath.Join("/sys/class/input", e.Name(), "device", "name"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(data)) == deviceName {
			evdevPath = filepath.Join("/dev/input", e.Name())
			break
		}
	}
	if evdevPath == "" {
		return "", errors.New(deviceName + " evdev device not found")
	}
	evdev, err := os.Open(evdevPath)
	if err != nil {
		return "", fmt.Errorf("cannot open %s: %w", evdevPath, err)
	}
	defer evdev.Close()

	if err := d.Chord(nil, intent.KeyLeftCtrl); err != nil {
		return "", fmt.Errorf("send: %w", err)
	}

	ch := make(chan error, 1)
	go func() {
		buf := make([]byte, 24*32)
		n, err := evdev.Read(buf)
		if err != nil {
			ch <- err
			return
		}
		for i := 0; i+24 <= n; i += 24 {
			typ := binary.LittleEndian.Uint16(buf[i+16:])
			code := binary.LittleEndian.Uint16(buf[i+18:])
			if typ == evKey && code == intent.KeyLeftCtrl {
				ch <- nil
				return
			}
		}
		ch <- errors.New("ctrl event missing")
	}()

	select {
	case err := <-ch:
		if err != nil {
			return "", err
		}
		return "key event verified via " + evdevPath, nil
	case <-time.After(500 * time.Millisecond):
		return "", errors.New("timed out waiting for key events")
	}
}
