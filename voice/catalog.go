package voice

import (
	"fmt"
	"sort"
	"strings"
)

// CommandKind is the closed set of spoken commands.
type CommandKind int

const (
	CmdNone CommandKind = iota
	CmdOpenApp
	CmdCloseWindow
	CmdCloseTab
	CmdNewTab
	CmdNewWindow
	CmdMinimize
	CmdMaximize
	CmdFullScreen
	CmdNextWindow
	CmdPreviousWindow
	CmdQuitApp
	CmdScrollDown
	CmdScrollUp
	CmdPageDown
	CmdPageUp
	CmdGoBack
	CmdGoForward
	CmdRefresh
	CmdNextTab
	CmdPreviousTab
	CmdReopenTab
	CmdVolumeUp
	CmdVolumeDown
	CmdMute
	CmdUnmute
	CmdBrightnessUp
	CmdBrightnessDown
	CmdScreenshot
	CmdSleep
	CmdSearch
	CmdHelp
)

var commandNames = map[CommandKind]string{
	CmdNone:           "none",
	CmdOpenApp:        "open_app",
	CmdCloseWindow:    "close_window",
	CmdCloseTab:       "close_tab",
	CmdNewTab:         "new_tab",
	CmdNewWindow:      "new_window",
	CmdMinimize:       "minimize",
	CmdMaximize:       "maximize",
	CmdFullScreen:     "full_screen",
	CmdNextWindow:     "next_window",
	CmdPreviousWindow: "previous_window",
	CmdQuitApp:        "quit_app",
	CmdScrollDown:     "scroll_down",
	CmdScrollUp:       "scroll_up",
	CmdPageDown:       "page_down",
	CmdPageUp:         "page_up",
	CmdGoBack:         "go_back",
	CmdGoForward:      "go_forward",
	CmdRefresh:        "refresh",
	CmdNextTab:        "next_tab",
	CmdPreviousTab:    "previous_tab",
	CmdReopenTab:      "reopen_tab",
	CmdVolumeUp:       "volume_up",
	CmdVolumeDown:     "volume_down",
	CmdMute:           "mute",
	CmdUnmute:         "unmute",
	CmdBrightnessUp:   "brightness_up",
	CmdBrightnessDown: "brightness_down",
	CmdScreenshot:     "screenshot",
	CmdSleep:          "sleep",
	CmdSearch:         "search",
	CmdHelp:           "help",
}

func (k CommandKind) String() string {
	if s, ok := commandNames[k]; ok {
		return s
	}
	return fmt.Sprintf("command(%d)", int(k))
}

// Command is a parsed spoken command. Arg carries the application name for
// CmdOpenApp and the query for CmdSearch.
type Command struct {
	Kind CommandKind
	Arg  string
}

func (c Command) String() string {
	if c.Arg != "" {
		return c.Kind.String() + " " + c.Arg
	}
	return c.Kind.String()
}

// Control is the closed set of phrases that steer the system itself.
type Control int

const (
	ControlNone Control = iota
	ControlStartDictation
	ControlStopDictation
	ControlEyeMode
	ControlVoiceMode
	ControlHybridMode
)

func (c Control) String() string {
	switch c {
	case ControlNone:
		return "none"
	case ControlStartDictation:
		return "start_dictation"
	case ControlStopDictation:
		return "stop_dictation"
	case ControlEyeMode:
		return "eye_mode"
	case ControlVoiceMode:
		return "voice_mode"
	case ControlHybridMode:
		return "hybrid_mode"
	}
	return fmt.Sprintf("control(%d)", int(c))
}

const stopDictationPhrase = "stop typing"

var controls = map[string]Control{
	"type":            ControlStartDictation,
	"start typing":    ControlStartDictation,
	"start dictation": ControlStartDictation,
	"stop typing":     ControlStopDictation,
	"eye mode":        ControlEyeMode,
	"eyes only":       ControlEyeMode,
	"eye only":        ControlEyeMode,
	"stop listening":  ControlEyeMode,
	"voice mode":      ControlVoiceMode,
	"voice only":      ControlVoiceMode,
	"hybrid mode":     ControlHybridMode,
}

// Applications addressable with "open <name>", mapped to their canonical
// names.
var apps = map[string]string{
	"safari":   "Safari",
	"chrome":   "Google Chrome",
	"firefox":  "Firefox",
	"notes":    "Notes",
	"terminal": "Terminal",
	"mail":     "Mail",
	"finder":   "Finder",
	"messages": "Messages",
	"calendar": "Calendar",
}

var commands = map[string]CommandKind{
	"close window":      CmdCloseWindow,
	"close tab":         CmdCloseTab,
	"new tab":           CmdNewTab,
	"new window":        CmdNewWindow,
	"minimize":          CmdMinimize,
	"maximize":          CmdMaximize,
	"full screen":       CmdFullScreen,
	"fullscreen":        CmdFullScreen,
	"next window":       CmdNextWindow,
	"previous window":   CmdPreviousWindow,
	"quit app":          CmdQuitApp,
	"quit application":  CmdQuitApp,
	"scroll down":       CmdScrollDown,
	"scroll up":         CmdScrollUp,
	"page down":         CmdPageDown,
	"page up":           CmdPageUp,
	"go back":           CmdGoBack,
	"go forward":        CmdGoForward,
	"refresh":           CmdRefresh,
	"refresh page":      CmdRefresh,
	"reload":            CmdRefresh,
	"next tab":          CmdNextTab,
	"previous tab":      CmdPreviousTab,
	"reopen tab":        CmdReopenTab,
	"volume up":         CmdVolumeUp,
	"volume down":       CmdVolumeDown,
	"mute":              CmdMute,
	"unmute":            CmdUnmute,
	"brightness up":     CmdBrightnessUp,
	"brightness down":   CmdBrightnessDown,
	"take screenshot":   CmdScreenshot,
	"take a screenshot": CmdScreenshot,
	"screenshot":        CmdScreenshot,
	"screen shot":       CmdScreenshot,
	"sleep":             CmdSleep,
	"help":              CmdHelp,
	"list commands":     CmdHelp,
}

var searchPrefixes = []string{"search for ", "search ", "google "}

func lookupControl(text string) (Control, bool) {
	c, ok := controls[text]
	return c, ok
}

func lookupCommand(text string) (Command, bool) {
	if k, ok := commands[text]; ok {
		return Command{Kind: k}, true
	}
	if name, ok := strings.CutPrefix(text, "open "); ok {
		if app, ok := apps[name]; ok {
			return Command{Kind: CmdOpenApp, Arg: app}, true
		}
		return Command{}, false
	}
	for _, p := range searchPrefixes {
		if q, ok := strings.CutPrefix(text, p); ok && q != "" {
			return Command{Kind: CmdSearch, Arg: q}, true
		}
	}
	return Command{}, false
}

// Phrases lists every fixed phrase the catalog understands, sorted, for the
// help screen.
func Phrases() []string {
	out := make([]string, 0, len(commands)+len(controls)+len(apps)+1)
	for p := range commands {
		out = append(out, p)
	}
	for p := range controls {
		out = append(out, p)
	}
	for name := range apps {
		out = append(out, "open "+name)
	}
	out = append(out, "search <query>")
	sort.Strings(out)
	return out
}
