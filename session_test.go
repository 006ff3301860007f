package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"blinkos/automation"
	"blinkos/config"
	"blinkos/coordinator"
	"blinkos/intent"
	"blinkos/store"
	"blinkos/voice"
)

type recordedEvents struct {
	mu    sync.Mutex
	notes []coordinator.Notification
	cal   []string
	probs []string
}

func (r *recordedEvents) Notify(n coordinator.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recordedEvents) Calibration(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cal = append(r.cal, text)
}

func (r *recordedEvents) Problem(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probs = append(r.probs, text)
}

func (r *recordedEvents) lastCalibration() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.cal) == 0 {
		return ""
	}
	return r.cal[len(r.cal)-1]
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for %s", what)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func sessionConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Dir = filepath.Join(t.TempDir(), "store")
	cfg.Automation.Backend = "none"
	return cfg
}

func writeScript(t *testing.T, script string) string {
	t.Helper()
	var buf bytes.Buffer
	s := newSynthesizer(&buf, time.Now(), 100, nil)
	if err := s.run(strings.NewReader(script)); err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(t.TempDir(), "landmarks.msgpack")
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// startSession runs s in the background and returns a stop function that
// waits for run to return.
func startSession(t *testing.T, s *session) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.run(ctx, false) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("run: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("session did not stop")
		}
	}
}

func TestSessionEndToEnd(t *testing.T) {
	cfg := sessionConfig(t)
	lm := writeScript(t, "HOLD 100\nBLINK 300\nHOLD 100\n")
	vp := filepath.Join(t.TempDir(), "voice.jsonl")
	line := `{"text":"scroll down","confidence":0.9}` + "\n"
	if err := os.WriteFile(vp, []byte(line), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := newSession(cfg, runOptions{landmarks: lm, landmarkFormat: "msgpack", voice: vp, noHotkey: true})
	if err != nil {
		t.Fatal(err)
	}
	defer s.close()
	ev := &recordedEvents{}
	s.events = ev
	rec := s.sink.(*automation.Recorder)

	stop := startSession(t, s)
	waitUntil(t, "both streams to end", func() bool {
		down := s.coord.State().Down
		return down[coordinator.PipelineEye] && down[coordinator.PipelineVoice]
	})
	waitUntil(t, "intents to reach the sink", func() bool { return rec.Total() >= 2 })
	stop()

	var clicks int
	var chord string
	for _, in := range rec.Intents() {
		switch v := in.(type) {
		case intent.Click:
			clicks++
		case intent.KeyChord:
			chord = v.Name
		}
	}
	if clicks != 1 {
		t.Errorf("clicks = %d, want 1", clicks)
	}
	if chord != "scroll_down" {
		t.Errorf("chord = %q, want scroll_down", chord)
	}
	if got := s.trk.Frames(); got < 40 {
		t.Errorf("frames = %d", got)
	}

	// degraded switches are not remembered
	if _, err := s.kv.Get(context.Background(), prefsModeKey); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("degraded mode persisted: %v", err)
	}
}

func TestSessionSkipsMalformedVoiceRecords(t *testing.T) {
	s, err := newSession(sessionConfig(t), runOptions{noHotkey: true})
	if err != nil {
		t.Fatal(err)
	}
	defer s.close()
	ev := &recordedEvents{}
	s.events = ev
	pr, pw := io.Pipe()
	s.vs = voice.NewStreamSource(pr)
	rec := s.sink.(*automation.Recorder)

	stop := startSession(t, s)
	go func() {
		io.WriteString(pw, "{\"text\": \n")
		io.WriteString(pw, `{"text":"scroll down","confidence":0.9}`+"\n")
	}()
	waitUntil(t, "the command after the bad line", func() bool { return rec.Total() >= 1 })

	if s.coord.State().Down[coordinator.PipelineVoice] {
		t.Error("a malformed record took the voice pipeline down")
	}
	if got := s.Snapshot().BadVoice; got != 1 {
		t.Errorf("BadVoice = %d, want 1", got)
	}
	ev.mu.Lock()
	probs := strings.Join(ev.probs, "\n")
	ev.mu.Unlock()
	if !strings.Contains(probs, "malformed") {
		t.Errorf("problems = %q, want the malformed record reported", probs)
	}
	pw.Close()
	stop()
}

func TestSessionRemembersChosenMode(t *testing.T) {
	cfg := sessionConfig(t)
	s, err := newSession(cfg, runOptions{noHotkey: true})
	if err != nil {
		t.Fatal(err)
	}
	s.events = &recordedEvents{}
	stop := startSession(t, s)

	// without streams both pipelines fault and the mode degrades first
	waitUntil(t, "both pipelines down", func() bool {
		down := s.coord.State().Down
		return down[0] && down[1]
	})
	s.SetMode(coordinator.EyeOnly)
	waitUntil(t, "mode to be saved", func() bool {
		v, err := s.kv.Get(context.Background(), prefsModeKey)
		return err == nil && string(v) == "eye"
	})
	stop()
	s.close()

	s, err = newSession(cfg, runOptions{noHotkey: true})
	if err != nil {
		t.Fatal(err)
	}
	defer s.close()
	if got := s.coord.Mode(); got != coordinator.EyeOnly {
		t.Errorf("restored mode = %v, want eye", got)
	}
}

func TestSessionFlagModeBeatsStoredMode(t *testing.T) {
	cfg := sessionConfig(t)
	kv, err := openStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := kv.Set(context.Background(), prefsModeKey, []byte("voice")); err != nil {
		t.Fatal(err)
	}
	kv.Close()

	cfg.Mode.Startup = "eye"
	s, err := newSession(cfg, runOptions{mode: "eye", noHotkey: true})
	if err != nil {
		t.Fatal(err)
	}
	defer s.close()
	if got := s.coord.Mode(); got != coordinator.EyeOnly {
		t.Errorf("mode = %v, want eye", got)
	}
}

func TestSessionMissingStreamsAreFaults(t *testing.T) {
	s, err := newSession(sessionConfig(t), runOptions{noHotkey: true})
	if err != nil {
		t.Fatal(err)
	}
	defer s.close()
	s.events = &recordedEvents{}
	stop := startSession(t, s)
	waitUntil(t, "both pipelines down", func() bool {
		down := s.coord.State().Down
		return down[0] && down[1]
	})
	stop()
	if st := s.coord.Stats(); st.Faults < 2 {
		t.Errorf("faults = %d, want 2", st.Faults)
	}
}

func TestSessionCalibrationFlow(t *testing.T) {
	cfg := sessionConfig(t)
	cfg.Calibration.SamplesPerPoint = 3
	s, err := newSession(cfg, runOptions{noHotkey: true})
	if err != nil {
		t.Fatal(err)
	}
	defer s.close()
	ev := &recordedEvents{}
	s.events = ev

	s.BeginCalibration()
	if !s.trk.Calibrating() {
		t.Fatal("calibration did not start")
	}
	if !strings.Contains(ev.lastCalibration(), "point 1 of 9") {
		t.Errorf("begin message = %q", ev.lastCalibration())
	}

	// no frames yet
	s.CaptureCalibration()
	if !strings.Contains(ev.lastCalibration(), "hold still") {
		t.Errorf("capture without samples = %q", ev.lastCalibration())
	}

	s.AbortCalibration()
	if s.trk.Calibrating() {
		t.Error("still calibrating after abort")
	}
	if snap := s.Snapshot(); snap.Calibrating || snap.CalPoint != 0 {
		t.Errorf("snapshot after abort: calibrating=%v point=%d", snap.Calibrating, snap.CalPoint)
	}
}

func TestSessionUncalibratedUsesIdentity(t *testing.T) {
	s, err := newSession(sessionConfig(t), runOptions{noHotkey: true, uncalibrated: true})
	if err != nil {
		t.Fatal(err)
	}
	defer s.close()
	if snap := s.Snapshot(); snap.Profile != "identity" {
		t.Errorf("profile = %q, want identity", snap.Profile)
	}
}

func TestSessionToggles(t *testing.T) {
	s, err := newSession(sessionConfig(t), runOptions{noHotkey: true})
	if err != nil {
		t.Fatal(err)
	}
	defer s.close()
	s.ToggleCursor()
	s.ToggleClicks()
	st := s.coord.State()
	if !st.CursorPaused || !st.ClicksPaused {
		t.Errorf("toggles not applied: %+v", st)
	}
	s.ToggleCursor()
	if s.coord.State().CursorPaused {
		t.Error("cursor still paused")
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortID = %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("shortID = %q", got)
	}
}
