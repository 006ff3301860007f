package automation

import "blinkos/intent"

const keybdSettle = 0

// macOS virtual key codes (kVK_*) indexed like letterKeys and digitKeys.
var (
	macLetters = [26]int{
		0x00, 0x0B, 0x08, 0x02, 0x0E, 0x03, 0x05, 0x04, 0x22, 0x26,
		0x28, 0x25, 0x2E, 0x2D, 0x1F, 0x23, 0x0C, 0x0F, 0x01, 0x11,
		0x20, 0x09, 0x0D, 0x07, 0x10, 0x06,
	}
	macDigits = [10]int{0x1D, 0x12, 0x13, 0x14, 0x15, 0x17, 0x16, 0x1A, 0x1C, 0x19}
)

var macKeys = map[int]int{
	12:                       0x1B, // minus
	13:                       0x18, // equal
	26:                       0x21, // left bracket
	27:                       0x1E, // right bracket
	39:                       0x29, // semicolon
	40:                       0x27, // quote
	41:                       0x32, // grave
	43:                       0x2A, // backslash
	51:                       0x2B, // comma
	52:                       0x2F, // period
	53:                       0x2C, // slash
	intent.KeyEsc:            0x35,
	intent.KeyBackspace:      0x33,
	intent.KeyTab:            0x30,
	intent.KeyEnter:          0x24,
	intent.KeySpace:          0x31,
	intent.KeyF4:             0x76,
	intent.KeyF5:             0x60,
	intent.KeyF11:            0x67,
	intent.KeyUp:             0x7E,
	intent.KeyPageUp:         0x74,
	intent.KeyLeft:           0x7B,
	intent.KeyRight:          0x7C,
	intent.KeyDown:           0x7D,
	intent.KeyPageDown:       0x79,
	intent.KeyMute:           0x4A,
	intent.KeyVolumeDown:     0x49,
	intent.KeyVolumeUp:       0x48,
	intent.KeyBrightnessDown: 0x91,
	intent.KeyBrightnessUp:   0x90,
}

func init() {
	for i, code := range letterKeys {
		macKeys[code] = macLetters[i]
	}
	for i, code := range digitKeys {
		macKeys[code] = macDigits[i]
	}
}

func keybdCode(linux int) (int, bool) {
	c, ok := macKeys[linux]
	return c, ok
}
