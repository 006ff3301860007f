package automation

import (
	"fmt"
	"strings"

	"blinkos/intent"
)

// newPlatform uses one uinput device for keys and pointer, or keybd_event
// for keys only.
func newPlatform(cfg Config) (Sink, error) {
	d := &desktop{
		paste:    cfg.PasteText,
		pasteMod: intent.KeyLeftCtrl,
		copyText: clipboardWrite,
		open:     launch,
	}
	switch strings.ToLower(cfg.Backend) {
	case "keybd":
		kb, err := newKeybd()
		if err != nil {
			return nil, err
		}
		d.name, d.kb = "keybd", kb
	default:
		dev, err := openUinput(cfg.ScreenW, cfg.ScreenH)
		if err != nil {
			return nil, fmt.Errorf("uinput: %w", err)
		}
		d.name, d.kb, d.ptr = "uinput", dev, dev
		d.closers = append(d.closers, dev.Close)
	}
	return d, nil
}
