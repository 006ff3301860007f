// Package hotkey watches one global key combination and classifies presses
// into taps and holds.
package hotkey

import (
	"fmt"
	"strings"
)

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// Combo is Ctrl and/or Shift plus one key: space or a letter.
type Combo struct {
	Ctrl  bool
	Shift bool
	Key   string
}

var DefaultCombo = Combo{Ctrl: true, Shift: true, Key: "space"}

// ParseCombo reads forms like "ctrl+shift+space" or "ctrl+b".
func ParseCombo(s string) (Combo, error) {
	var c Combo
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		last := i == len(parts)-1
		switch {
		case !last && (p == "ctrl" || p == "control"):
			c.Ctrl = true
		case !last && p == "shift":
			c.Shift = true
		case last && validKey(p):
			c.Key = p
		default:
			return Combo{}, fmt.Errorf("bad hotkey %q: unexpected %q", s, p)
		}
	}
	if !c.Ctrl && !c.Shift {
		return Combo{}, fmt.Errorf("bad hotkey %q: needs ctrl or shift", s)
	}
	return c, nil
}

func validKey(k string) bool {
	return k == "space" || (len(k) == 1 && k[0] >= 'a' && k[0] <= 'z')
}

func (c Combo) String() string {
	var parts []string
	if c.Ctrl {
		parts = append(parts, "Ctrl")
	}
	if c.Shift {
		parts = append(parts, "Shift")
	}
	k := strings.ToUpper(c.Key)
	if c.Key == "space" {
		k = "Space"
	}
	return strings.Join(append(parts, k), "+")
}
