package automation

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"blinkos/intent"
	"blinkos/log"
)

// Linux launcher names for the catalog's applications. Anything else is
// lowercased with dashes.
var linuxApps = map[string]string{
	"Google Chrome": "google-chrome",
	"Safari":        "firefox",
	"Terminal":      "x-terminal-emulator",
	"Mail":          "thunderbird",
	"Finder":        "xdg-open .",
	"Notes":         "gnome-text-editor",
	"Calendar":      "gnome-calendar",
	"Messages":      "xdg-open https://messages.google.com/web",
}

// openCommand returns the argv that launches o on goos.
func openCommand(goos string, o intent.Open) []string {
	if goos == "darwin" {
		if o.Target == intent.OpenApp {
			return []string{"open", "-a", o.Value}
		}
		return []string{"open", o.Value}
	}
	if o.Target == intent.OpenURL {
		return []string{"xdg-open", o.Value}
	}
	if cmd, ok := linuxApps[o.Value]; ok {
		return strings.Fields(cmd)
	}
	return []string{strings.ReplaceAll(strings.ToLower(o.Value), " ", "-")}
}

// launch starts the command without waiting for it; the child is reaped in
// the background.
func launch(ctx context.Context, o intent.Open) error {
	argv := openCommand(runtime.GOOS, o)
	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open %q: %w", o.Value, err)
	}
	go func() {
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			log.Warnf("open %q: %v", o.Value, err)
		}
	}()
	return nil
}
