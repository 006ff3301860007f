package automation

import "blinkos/intent"

// Linux input codes for a..z and 0..9.
var (
	letterKeys = [26]int{
		30, 48, 46, 32, 18, 33, 34, 35, 23, 36,
		37, 38, 50, 49, 24, 25, 16, 19, 31, 20,
		22, 47, 17, 45, 21, 44,
	}
	digitKeys = [10]int{11, 2, 3, 4, 5, 6, 7, 8, 9, 10}
)

type shiftedKey struct {
	code  int
	shift bool
}

// US layout.
var punctKeys = map[byte]shiftedKey{
	'.': {52, false}, ',': {51, false}, '/': {53, false},
	';': {39, false}, '\'': {40, false}, '[': {26, false},
	']': {27, false}, '-': {12, false}, '=': {13, false},
	'\\': {43, false}, '`': {41, false},
	'!': {2, true}, '@': {3, true}, '#': {4, true},
	'$': {5, true}, '%': {6, true}, '^': {7, true},
	'&': {8, true}, '*': {9, true}, '(': {10, true},
	')': {11, true}, '_': {12, true}, '+': {13, true},
	'{': {26, true}, '}': {27, true}, '|': {43, true},
	':': {39, true}, '"': {40, true}, '<': {51, true},
	'>': {52, true}, '?': {53, true}, '~': {41, true},
}

// charToKey maps an ASCII character to a Linux key code and whether shift
// is needed. Characters outside the US layout are not typeable.
func charToKey(c byte) (code int, shift bool, ok bool) {
	switch {
	case c >= 'a' && c <= 'z':
		return letterKeys[c-'a'], false, true
	case c >= 'A' && c <= 'Z':
		return letterKeys[c-'A'], true, true
	case c >= '0' && c <= '9':
		return digitKeys[c-'0'], false, true
	case c == ' ':
		return intent.KeySpace, false, true
	case c == '\n':
		return intent.KeyEnter, false, true
	case c == '\t':
		return intent.KeyTab, false, true
	}
	k, ok := punctKeys[c]
	return k.code, k.shift, ok
}

// typeByChords sends text one character at a time through chord, skipping
// characters with no key.
func typeByChords(text string, chord func(mods []int, key int) error) error {
	shift := []int{intent.KeyLeftShift}
	for i := 0; i < len(text); i++ {
		code, sh, ok := charToKey(text[i])
		if !ok {
			continue
		}
		var mods []int
		if sh {
			mods = shift
		}
		if err := chord(mods, code); err != nil {
			return err
		}
	}
	return nil
}
