//go:build !linux

package main

import (
	"os"
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

// The hotkey backend needs the OS main thread, so the CLI runs inside it.
func main() {
	code := 0
	mainthread.Init(func() {
		code = execute(os.Args[1:], os.Stdout, os.Stderr)
	})
	os.Exit(code)
}
