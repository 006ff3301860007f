package intent

// Key codes from linux/input-event-codes.h. Chords are expressed in these
// codes on every platform and translated by the sink backend.
const (
	KeyEsc            = 1
	KeyBackspace      = 14
	KeyTab            = 15
	KeyQ              = 16
	KeyW              = 17
	KeyR              = 19
	KeyT              = 20
	KeyLeftBrace      = 26
	KeyRightBrace     = 27
	KeyEnter          = 28
	KeyLeftCtrl       = 29
	KeyA              = 30
	KeyH              = 35
	KeyGrave          = 41
	KeyLeftShift      = 42
	KeyZ              = 44
	KeyV              = 47
	KeyN              = 49
	KeyM              = 50
	KeyLeftAlt        = 56
	KeySpace          = 57
	KeyF              = 33
	Key3              = 4
	KeyF4             = 62
	KeyF5             = 63
	KeyF11            = 87
	KeySysRq          = 99
	KeyUp             = 103
	KeyPageUp         = 104
	KeyLeft           = 105
	KeyRight          = 106
	KeyDown           = 108
	KeyPageDown       = 109
	KeyMute           = 113
	KeyVolumeDown     = 114
	KeyVolumeUp       = 115
	KeyLeftMeta       = 125
	KeySleep          = 142
	KeyBrightnessDown = 224
	KeyBrightnessUp   = 225
)
