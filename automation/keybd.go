//go:build linux || darwin

package automation

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"

	"blinkos/intent"
)

// keybdKeyboard sends chords through keybd_event. Key codes are translated
// from Linux codes by keybdCode for the host.
type keybdKeyboard struct {
	mu sync.Mutex
	kb keybd_event.KeyBonding
}

func newKeybd() (*keybdKeyboard, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, fmt.Errorf("keyboard event binding: %w", err)
	}
	if keybdSettle > 0 {
		time.Sleep(keybdSettle)
	}
	return &keybdKeyboard{kb: kb}, nil
}

func (k *keybdKeyboard) Chord(mods []int, key int) error {
	code, ok := keybdCode(key)
	if !ok {
		return fmt.Errorf("%w: key code %d", ErrUnsupported, key)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.kb.SetKeys(code)
	k.kb.HasCTRL(slices.Contains(mods, intent.KeyLeftCtrl))
	k.kb.HasSHIFT(slices.Contains(mods, intent.KeyLeftShift))
	k.kb.HasALT(slices.Contains(mods, intent.KeyLeftAlt))
	k.kb.HasSuper(slices.Contains(mods, intent.KeyLeftMeta))
	return k.kb.Launching()
}

func (k *keybdKeyboard) Type(text string) error {
	return typeByChords(text, k.Chord)
}

func (k *keybdKeyboard) Verify() (string, error) {
	return "keyboard event binding OK", nil
}
