//go:build !linux && !darwin

package automation

import (
	"fmt"
	"runtime"
)

func newPlatform(cfg Config) (Sink, error) {
	return nil, fmt.Errorf("no desktop automation on %s, use backend none", runtime.GOOS)
}
