// Package doctor runs diagnostic checks against the local desktop: the
// profile store, hotkey, keystroke delivery and the clipboard.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	cb "github.com/atotto/clipboard"
	"golang.org/x/term"

	"blinkos/automation"
	"blinkos/calibration"
	"blinkos/config"
	"blinkos/hotkey"
	"blinkos/store"
	"blinkos/voice"
)

// Options select which checks run.
type Options struct {
	// Interactive waits for a hotkey press. Requires a terminal.
	Interactive bool
	// Deliver sends a harmless key through the automation backend.
	Deliver bool
}

type check struct {
	name string
	run  func(ctx context.Context, w io.Writer) error
}

// Run executes the checks in order and returns an exit code (0=all pass,
// 1=any fail). Later checks still run after a failure.
func Run(ctx context.Context, w io.Writer, cfg *config.Config, opts Options) int {
	checks := []check{
		{"Profile store", func(ctx context.Context, w io.Writer) error { return checkStore(ctx, w, cfg) }},
		{"Hotkey", func(ctx context.Context, w io.Writer) error { return checkHotkey(ctx, w, cfg, opts.Interactive) }},
		{"Keystroke output", func(_ context.Context, w io.Writer) error { return checkAutomation(w, cfg, opts.Deliver) }},
		{"Clipboard", func(context.Context, io.Writer) error { return checkClipboard() }},
		{"Speech recognizer", func(_ context.Context, w io.Writer) error { return checkRecognizer(w, cfg) }},
	}

	fmt.Fprintln(w, "blinkos doctor - system diagnostics")
	fmt.Fprintln(w, "===================================")

	failed := 0
	for i, c := range checks {
		if ctx.Err() != nil {
			fmt.Fprintln(w, "\nInterrupted")
			return 1
		}
		fmt.Fprintf(w, "\n[%d/%d] %s\n", i+1, len(checks), c.name)
		err := c.run(ctx, w)
		switch {
		case errors.Is(err, errSkipped):
			fmt.Fprintf(w, "  SKIP: %v\n", err)
		case err != nil:
			fmt.Fprintf(w, "  FAIL: %v\n", err)
			failed++
		default:
			fmt.Fprintln(w, "  PASS")
		}
	}

	fmt.Fprintln(w)
	if failed == 0 {
		fmt.Fprintln(w, "All checks passed!")
		return 0
	}
	fmt.Fprintf(w, "%d check(s) failed. See details above.\n", failed)
	return 1
}

var errSkipped = errors.New("skipped")

func checkStore(ctx context.Context, w io.Writer, cfg *config.Config) error {
	dir, err := cfg.StoreDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	kv, err := store.Open(store.Options{Dir: dir})
	if err != nil {
		return fmt.Errorf("cannot open %s: %w (is another blinkos running?)", dir, err)
	}
	defer kv.Close()

	repo := calibration.NewRepository(kv)
	profiles, listErr := repo.List(ctx)
	active, err := repo.ActiveID(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		active = "none"
	case err != nil:
		return err
	}
	fmt.Fprintf(w, "  %s: %d profile(s), active %s\n", dir, len(profiles), active)
	return listErr
}

func checkHotkey(ctx context.Context, w io.Writer, cfg *config.Config, interactive bool) error {
	msg, err := hotkey.Diagnose()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  %s\n", msg)
	if !interactive {
		return nil
	}

	combo, err := hotkey.ParseCombo(cfg.Hotkey.Combo)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  Press %s...\n", combo)

	// The evdev listener leaves the keystrokes echoed into the terminal
	// in an odd state; put it back afterwards.
	if st, err := term.GetState(int(os.Stdin.Fd())); err == nil {
		defer term.Restore(int(os.Stdin.Fd()), st)
	}

	hk := hotkey.New(combo)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("could not register hotkey: %w", err)
	}
	defer hk.Unregister()

	select {
	case <-hk.Keydown():
		// Wait for keyup so the release does not leak into the next check.
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		}
		return nil
	case <-time.After(10 * time.Second):
		return errors.New("timeout waiting for hotkey")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func checkAutomation(w io.Writer, cfg *config.Config, deliver bool) error {
	sink, err := automation.New(cfg.AutomationConfig())
	if err != nil {
		return fmt.Errorf("%w\n  Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput", err)
	}
	defer sink.Close()
	fmt.Fprintf(w, "  backend %s ready\n", sink.Name())
	if !deliver {
		return nil
	}
	msg, err := automation.Verify(sink)
	if errors.Is(err, automation.ErrUnsupported) {
		return fmt.Errorf("%w: %v", errSkipped, err)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  %s\n", msg)
	return nil
}

// checkClipboard writes a marker, reads it back and restores the previous
// content. Clipboard helpers can hang when no compositor is reachable, so
// the round trip is bounded.
func checkClipboard() error {
	if cb.Unsupported {
		return fmt.Errorf("%w: no clipboard tool found (install wl-clipboard, xclip or xsel)", errSkipped)
	}
	marker := fmt.Sprintf("blinkos-doctor-%d", time.Now().UnixNano())

	ch := make(chan error, 1)
	go func() {
		prev, _ := cb.ReadAll()
		if err := cb.WriteAll(marker); err != nil {
			ch <- fmt.Errorf("clipboard write failed: %w", err)
			return
		}
		got, err := cb.ReadAll()
		cb.WriteAll(prev)
		switch {
		case err != nil:
			ch <- fmt.Errorf("clipboard read failed: %w", err)
		case got != marker:
			ch <- fmt.Errorf("clipboard mismatch: wrote %q, got %q", marker, got)
		default:
			ch <- nil
		}
	}()

	select {
	case err := <-ch:
		return err
	case <-time.After(3 * time.Second):
		return errors.New("clipboard timed out (clipboard tool hung - compositor not accessible?)")
	}
}

func checkRecognizer(w io.Writer, cfg *config.Config) error {
	if cfg.Voice.RecognizerCmd == "" {
		return fmt.Errorf("%w: no recognizer_cmd; only recognized text is accepted on the voice stream", errSkipped)
	}
	r, err := voice.NewExecRecognizer(cfg.Voice.RecognizerCmd)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  %s found\n", r.Name())
	return nil
}
