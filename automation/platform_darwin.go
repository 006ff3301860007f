package automation

import (
	"errors"
	"strings"

	"blinkos/intent"
)

// newPlatform drives the keyboard through keybd_event. There is no pointer
// backend on macOS, so cursor and click intents report ErrUnsupported.
func newPlatform(cfg Config) (Sink, error) {
	if strings.ToLower(cfg.Backend) == "uinput" {
		return nil, errors.New("uinput backend is only available on Linux")
	}
	kb, err := newKeybd()
	if err != nil {
		return nil, err
	}
	return &desktop{
		name:     "keybd",
		kb:       kb,
		paste:    cfg.PasteText,
		pasteMod: intent.KeyLeftMeta,
		copyText: clipboardWrite,
		open:     launch,
	}, nil
}
