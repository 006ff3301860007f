//go:build windows

package log

import (
	"os"
	"path/filepath"
)

// defaultDir is %LOCALAPPDATA%\blinkos\logs so logs stay off roaming profiles.
func defaultDir() (string, error) {
	base := os.Getenv("LOCALAPPDATA")
	if base != "" {
		return filepath.Join(base, "blinkos", "logs"), nil
	}
	cfg, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "blinkos", "logs"), nil
}
