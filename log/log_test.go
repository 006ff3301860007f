package log

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDir(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name, flag, env, want string
	}{
		{"flag", "/tmp/mylog", "/tmp/ignored", "/tmp/mylog"},
		{"relative flag", "logs", "", filepath.Join(wd, "logs")},
		{"env", "", "/tmp/blinkos-env-log", "/tmp/blinkos-env-log"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BLINKOS_LOG_PATH", tt.env)
			got, err := ResolveDir(tt.flag)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("BLINKOS_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "blinkos") || !filepath.IsAbs(got) {
		t.Errorf("default dir %q should be absolute and mention blinkos", got)
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{diagName, eventsName} {
		path := filepath.Join(tmp, name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestTypedGoesToEventsLog(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	Typed("hello, world.")

	data, err := os.ReadFile(filepath.Join(tmp, "events_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, "typed\thello, world.") {
		t.Errorf("events_log.txt missing text, got: %q", line)
	}

	diag, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(diag), "hello, world.") {
		t.Error("dictated text leaked into diagnostics log")
	}
}

func TestModeChangeAndFault(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	ModeChange("hybrid", "voice", "capture_fault")
	Fault("capture_fault", "eye", time.Now(), errors.New("camera gone"))
	Close()

	diag, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"mode_change", "from=hybrid", "to=voice", "fault", "camera gone"} {
		if !strings.Contains(string(diag), want) {
			t.Errorf("diagnostics log missing %q:\n%s", want, diag)
		}
	}

	events, err := os.ReadFile(filepath.Join(tmp, "events_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(events), "hybrid -> voice (capture_fault)") {
		t.Errorf("events log missing mode change, got: %q", events)
	}
}

func TestLoggingBeforeInitIsNoop(t *testing.T) {
	Close()
	Info("ignored")
	Typed("ignored")
	SessionEnd("x", SessionCounts{})
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Close()
	Close()
	Warnf("after close %d", 1)
}
