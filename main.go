package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"

	"blinkos/config"
	"blinkos/log"
)

var version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	config  string
	logPath string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "blinkos",
		Short: "Hands-free desktop control by gaze, blinks and voice",
		Long: `blinkos drives the pointer from eye landmarks, turns intentional blinks
into clicks and runs voice commands and dictation, under one switchable
operation mode (eye, voice or hybrid).

Landmarks come from an extractor sidecar (MediaPipe face mesh with iris
refinement) as msgpack or JSON lines. Voice comes from a sidecar as JSON
lines of recognized text or raw speech segments.

Examples:
  # Pipe landmarks from the extractor and voice from a FIFO
  extractor | blinkos run --landmarks - --voice /tmp/voice.jsonl

  # Start in voice-only mode without the status screen
  blinkos run --voice /tmp/voice.jsonl --mode voice --no-tui

  # Inspect stored calibration profiles
  blinkos profile list`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogDir(g.logPath)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.config, "config", "", "config file (default: OS config dir)/blinkos/config.yaml")
	pf.StringVar(&g.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")

	root.AddCommand(
		newRunCmd(g),
		newProfileCmd(g),
		newConfigCmd(g),
		newDoctorCmd(g),
		newSynthCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "blinkos %s (%s/%s, %s)\n", version, runtime.GOOS, runtime.GOARCH, runtime.Version())
		},
	}
}

// execute runs the CLI and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// setupLogDir resolves the log directory and routes runtime crash output
// into it before any device code runs.
func setupLogDir(flagPath string) error {
	logPath, err := log.ResolveDir(flagPath)
	if err != nil {
		return fmt.Errorf("failed to resolve log directory: %w", err)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
		return nil
	}
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}
	return nil
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(path, mode, screen string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if mode != "" {
		cfg.Mode.Startup = mode
	}
	if screen != "" {
		s, err := config.ParseScreen(screen)
		if err != nil {
			return nil, err
		}
		cfg.Screen = s
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
