package automation

import "time"

// keybd_event creates its own uinput device, which takes a moment to show up.
const keybdSettle = 2 * time.Second

// Linux codes are native here.
func keybdCode(linux int) (int, bool) {
	return linux, linux > 0 && linux < 256
}
