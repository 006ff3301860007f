package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Two files live in the log directory: diagnostics_log.txt carries
// structured zerolog records, events_log.txt one tab separated line per
// user-visible event (mode changes, faults, committed profiles, typed text).
const (
	diagName   = "diagnostics_log.txt"
	eventsName = "events_log.txt"
)

var (
	diagLog    zerolog.Logger
	diagFile   *os.File
	eventsFile *os.File
	mu         sync.Mutex
	ready      atomic.Bool
	pid        int
	dir        string
)

// SessionCounts summarises one run for the session_end record.
type SessionCounts struct {
	Frames     int64
	Cursor     int64
	Clicks     int64
	Voice      int64
	Suppressed int64
	Dropped    int64
	Faults     int64
}

// ResolveDir picks the log directory: the --logpath flag, then
// BLINKOS_LOG_PATH, then the platform default. Relative paths are made
// absolute against the working directory.
func ResolveDir(flagPath string) (string, error) {
	p := flagPath
	if p == "" {
		p = os.Getenv("BLINKOS_LOG_PATH")
	}
	if p == "" {
		return defaultDir()
	}
	return filepath.Abs(p)
}

func SetDir(d string) { dir = d }

func Dir() string { return dir }

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	return nil
}

func openAppend(name string) (*os.File, error) {
	return os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

// Init opens both log files in Dir. Until it succeeds every call in this
// package is a no-op.
func Init() error {
	mu.Lock()
	defer mu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}
	df, err := openAppend(diagName)
	if err != nil {
		return err
	}
	ef, err := openAppend(eventsName)
	if err != nil {
		df.Close()
		return err
	}
	diagFile, eventsFile = df, ef
	pid = os.Getpid()
	diagLog = zerolog.New(zerolog.ConsoleWriter{
		Out:        df,
		TimeFormat: "2006-01-02 15:04:05.000",
		NoColor:    true,
	}).With().Timestamp().Int("pid", pid).Logger()
	ready.Store(true)
	return nil
}

func Close() {
	mu.Lock()
	defer mu.Unlock()
	ready.Store(false)
	for _, f := range []**os.File{&diagFile, &eventsFile} {
		if *f != nil {
			(*f).Close()
			*f = nil
		}
	}
}

// diag starts a record, or returns nil (which zerolog treats as a no-op
// event) before Init.
func diag(lvl zerolog.Level) *zerolog.Event {
	if !ready.Load() {
		return nil
	}
	return diagLog.WithLevel(lvl)
}

func Info(msg string)                   { diag(zerolog.InfoLevel).Msg(msg) }
func Infof(format string, args ...any)  { diag(zerolog.InfoLevel).Msgf(format, args...) }
func Warn(msg string)                   { diag(zerolog.WarnLevel).Msg(msg) }
func Warnf(format string, args ...any)  { diag(zerolog.WarnLevel).Msgf(format, args...) }
func Error(msg string)                  { diag(zerolog.ErrorLevel).Msg(msg) }
func Errorf(format string, args ...any) { diag(zerolog.ErrorLevel).Msgf(format, args...) }

func event(kind, text string) {
	mu.Lock()
	defer mu.Unlock()
	if eventsFile == nil {
		return
	}
	fmt.Fprintf(eventsFile, "%s\t[%d]\t%s\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, kind, text)
}

func ModeChange(from, to, reason string) {
	diag(zerolog.InfoLevel).Str("from", from).Str("to", to).Str("reason", reason).Msg("mode_change")
	event("mode", fmt.Sprintf("%s -> %s (%s)", from, to, reason))
}

func Fault(kind, pipeline string, at time.Time, err error) {
	diag(zerolog.WarnLevel).Str("kind", kind).Str("pipeline", pipeline).Time("at", at).AnErr("error", err).Msg("fault")
	event("fault", kind+" "+pipeline)
}

func CalibrationCommitted(id string, points int, rmsPx float64) {
	diag(zerolog.InfoLevel).
		Str("profile", id).
		Int("points", points).
		Float64("rms_px", rmsPx).
		Msg("calibration_committed")
	event("calibration", fmt.Sprintf("%s rms=%.1fpx", id, rmsPx))
}

func CalibrationFailed(err error) {
	diag(zerolog.WarnLevel).Err(err).Msg("calibration_failed")
}

// Typed records dictated text in the events log only.
func Typed(text string) { event("typed", text) }

func Command(name string) {
	diag(zerolog.InfoLevel).Str("command", name).Msg("voice_command")
}

func SessionStart(id, mode string, screenW, screenH int) {
	diag(zerolog.InfoLevel).
		Str("session", id).
		Str("mode", mode).
		Int("screen_w", screenW).
		Int("screen_h", screenH).
		Msg("session_start")
}

func SessionEnd(id string, c SessionCounts) {
	diag(zerolog.InfoLevel).
		Str("session", id).
		Int64("frames", c.Frames).
		Int64("cursor", c.Cursor).
		Int64("clicks", c.Clicks).
		Int64("voice", c.Voice).
		Int64("suppressed", c.Suppressed).
		Int64("dropped", c.Dropped).
		Int64("faults", c.Faults).
		Msg("session_end")
}
