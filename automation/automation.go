// Package automation applies intents to the desktop: pointer moves and
// clicks, key chords, typed text and application or URL launches.
package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	cb "github.com/atotto/clipboard"

	"blinkos/intent"
)

// ErrUnsupported is returned for intents the selected backend cannot apply.
var ErrUnsupported = errors.New("automation: not supported by this backend")

// Sink applies one intent at a time. Implementations do not interpret the
// intent beyond what it carries.
type Sink interface {
	Name() string
	Apply(ctx context.Context, in intent.Intent) error
	Close() error
}

type Config struct {
	// Backend is auto, uinput, keybd or none.
	Backend string
	// PasteText delivers typed text through the clipboard and a paste chord
	// instead of one keystroke per character.
	PasteText bool
	ScreenW   int
	ScreenH   int
}

type keyboard interface {
	Chord(mods []int, key int) error
	Type(text string) error
}

type pointer interface {
	Move(p intent.Point) error
	Click() error
}

// desktop combines a keyboard and an optional pointer into a Sink.
type desktop struct {
	name     string
	kb       keyboard
	ptr      pointer
	paste    bool
	pasteMod int
	copyText func(string) error
	open     func(ctx context.Context, o intent.Open) error
	closers  []func() error
}

func (d *desktop) Name() string { return d.name }

func (d *desktop) Apply(ctx context.Context, in intent.Intent) error {
	switch v := in.(type) {
	case intent.Cursor:
		if d.ptr == nil {
			return fmt.Errorf("%w: cursor on %s", ErrUnsupported, d.name)
		}
		return d.ptr.Move(v.To)
	case intent.Click:
		if d.ptr == nil {
			return fmt.Errorf("%w: click on %s", ErrUnsupported, d.name)
		}
		return d.ptr.Click()
	case intent.Text:
		return d.typeText(v.Text)
	case intent.KeyChord:
		n := v.Repeat
		if n < 1 {
			n = 1
		}
		for i := 0; i < n; i++ {
			if err := d.kb.Chord(v.Mods, v.Key); err != nil {
				return fmt.Errorf("%s: %w", v.Name, err)
			}
		}
		return nil
	case intent.Open:
		return d.open(ctx, v)
	}
	return fmt.Errorf("%w: %s intent", ErrUnsupported, in.Kind())
}

func (d *desktop) typeText(text string) error {
	if text == "" {
		return nil
	}
	if !d.paste {
		return d.kb.Type(text)
	}
	if err := d.copyText(text); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return d.kb.Chord([]int{d.pasteMod}, intent.KeyV)
}

func (d *desktop) Close() error {
	var errs []error
	for _, c := range d.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func clipboardWrite(text string) error {
	return cb.WriteAll(text)
}

type verifier interface {
	Verify() (string, error)
}

// Verify sends a harmless key through the sink's keyboard and reports how
// delivery was confirmed.
func Verify(s Sink) (string, error) {
	d, ok := s.(*desktop)
	if !ok {
		return "", fmt.Errorf("%w: %s backend has no device to verify", ErrUnsupported, s.Name())
	}
	v, ok := d.kb.(verifier)
	if !ok {
		return "", fmt.Errorf("%w: %s backend cannot verify delivery", ErrUnsupported, d.name)
	}
	return v.Verify()
}

// New builds the sink for the host platform.
func New(cfg Config) (Sink, error) {
	switch strings.ToLower(cfg.Backend) {
	case "none":
		return NewRecorder(256), nil
	case "", "auto", "uinput", "keybd":
		return newPlatform(cfg)
	}
	return nil, fmt.Errorf("unknown automation backend %q", cfg.Backend)
}

// Run applies intents in order until ctx is done or in is closed. A failed
// intent is handed to onErr and the stream carries on.
func Run(ctx context.Context, s Sink, in <-chan intent.Intent, onErr func(intent.Intent, error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case it, ok := <-in:
			if !ok {
				return
			}
			if err := s.Apply(ctx, it); err != nil && onErr != nil {
				onErr(it, err)
			}
		}
	}
}
