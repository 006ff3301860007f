package voice

import (
	"net/url"
	"runtime"
	"time"

	"blinkos/intent"
)

// Platform selects the shortcut conventions commands resolve to.
type Platform int

const (
	PlatformLinux Platform = iota
	PlatformMac
)

func HostPlatform() Platform {
	if runtime.GOOS == "darwin" {
		return PlatformMac
	}
	return PlatformLinux
}

// scrollRepeat is how many arrow presses one "scroll" command sends.
const scrollRepeat = 3

type chord struct {
	mods []int
	key  int
	rep  int
}

const (
	ctrl  = intent.KeyLeftCtrl
	shift = intent.KeyLeftShift
	alt   = intent.KeyLeftAlt
	meta  = intent.KeyLeftMeta
)

var linuxChords = map[CommandKind]chord{
	CmdCloseWindow:    {mods: []int{alt}, key: intent.KeyF4},
	CmdCloseTab:       {mods: []int{ctrl}, key: intent.KeyW},
	CmdNewTab:         {mods: []int{ctrl}, key: intent.KeyT},
	CmdNewWindow:      {mods: []int{ctrl}, key: intent.KeyN},
	CmdMinimize:       {mods: []int{meta}, key: intent.KeyH},
	CmdMaximize:       {mods: []int{meta}, key: intent.KeyUp},
	CmdFullScreen:     {key: intent.KeyF11},
	CmdNextWindow:     {mods: []int{alt}, key: intent.KeyTab},
	CmdPreviousWindow: {mods: []int{alt, shift}, key: intent.KeyTab},
	CmdQuitApp:        {mods: []int{ctrl}, key: intent.KeyQ},
	CmdScrollDown:     {key: intent.KeyDown, rep: scrollRepeat},
	CmdScrollUp:       {key: intent.KeyUp, rep: scrollRepeat},
	CmdPageDown:       {key: intent.KeyPageDown},
	CmdPageUp:         {key: intent.KeyPageUp},
	CmdGoBack:         {mods: []int{alt}, key: intent.KeyLeft},
	CmdGoForward:      {mods: []int{alt}, key: intent.KeyRight},
	CmdRefresh:        {mods: []int{ctrl}, key: intent.KeyR},
	CmdNextTab:        {mods: []int{ctrl}, key: intent.KeyTab},
	CmdPreviousTab:    {mods: []int{ctrl, shift}, key: intent.KeyTab},
	CmdReopenTab:      {mods: []int{ctrl, shift}, key: intent.KeyT},
	CmdVolumeUp:       {key: intent.KeyVolumeUp},
	CmdVolumeDown:     {key: intent.KeyVolumeDown},
	CmdMute:           {key: intent.KeyMute},
	CmdUnmute:         {key: intent.KeyMute},
	CmdBrightnessUp:   {key: intent.KeyBrightnessUp},
	CmdBrightnessDown: {key: intent.KeyBrightnessDown},
	CmdScreenshot:     {key: intent.KeySysRq},
	CmdSleep:          {key: intent.KeySleep},
}

// macOverrides replaces the Linux chords where macOS differs.
var macOverrides = map[CommandKind]chord{
	CmdCloseWindow:    {mods: []int{meta}, key: intent.KeyW},
	CmdCloseTab:       {mods: []int{meta}, key: intent.KeyW},
	CmdNewTab:         {mods: []int{meta}, key: intent.KeyT},
	CmdNewWindow:      {mods: []int{meta}, key: intent.KeyN},
	CmdMinimize:       {mods: []int{meta}, key: intent.KeyM},
	CmdMaximize:       {mods: []int{ctrl, meta}, key: intent.KeyF},
	CmdFullScreen:     {mods: []int{ctrl, meta}, key: intent.KeyF},
	CmdNextWindow:     {mods: []int{meta}, key: intent.KeyGrave},
	CmdPreviousWindow: {mods: []int{meta, shift}, key: intent.KeyGrave},
	CmdQuitApp:        {mods: []int{meta}, key: intent.KeyQ},
	CmdGoBack:         {mods: []int{meta}, key: intent.KeyLeftBrace},
	CmdGoForward:      {mods: []int{meta}, key: intent.KeyRightBrace},
	CmdRefresh:        {mods: []int{meta}, key: intent.KeyR},
	CmdReopenTab:      {mods: []int{meta, shift}, key: intent.KeyT},
	CmdScreenshot:     {mods: []int{meta, shift}, key: intent.Key3},
}

// Intents resolves a command into sink-ready intents. Help resolves to
// nothing; the caller presents the phrase list instead.
func (c Command) Intents(at time.Time, p Platform) []intent.Intent {
	switch c.Kind {
	case CmdNone, CmdHelp:
		return nil
	case CmdOpenApp:
		return []intent.Intent{intent.Open{Target: intent.OpenApp, Value: c.Arg, At: at, Source: intent.SourceVoice}}
	case CmdSearch:
		u := "https://www.google.com/search?q=" + url.QueryEscape(c.Arg)
		return []intent.Intent{intent.Open{Target: intent.OpenURL, Value: u, At: at, Source: intent.SourceVoice}}
	}

	ch, ok := linuxChords[c.Kind]
	if p == PlatformMac {
		if m, found := macOverrides[c.Kind]; found {
			ch, ok = m, true
		}
	}
	if !ok {
		return nil
	}
	rep := ch.rep
	if rep == 0 {
		rep = 1
	}
	return []intent.Intent{intent.KeyChord{
		Name:   c.Kind.String(),
		Mods:   ch.mods,
		Key:    ch.key,
		Repeat: rep,
		At:     at,
		Source: intent.SourceVoice,
	}}
}

// PrimaryModifier is Cmd on macOS and Ctrl elsewhere.
func PrimaryModifier(p Platform) int {
	if p == PlatformMac {
		return meta
	}
	return ctrl
}
