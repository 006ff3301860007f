//go:build !windows

package log

import (
	"os"
	"path/filepath"
	"runtime"
)

// defaultDir is ~/Library/Logs/blinkos on macOS and
// $XDG_CONFIG_HOME/blinkos/logs elsewhere.
func defaultDir() (string, error) {
	if runtime.GOOS != "darwin" {
		cfg, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(cfg, "blinkos", "logs"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "Logs", "blinkos"), nil
}
