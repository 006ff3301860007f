package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"blinkos/automation"
	"blinkos/beep"
	"blinkos/calibration"
	"blinkos/config"
	"blinkos/coordinator"
	"blinkos/hotkey"
	"blinkos/intent"
	"blinkos/landmark"
	"blinkos/log"
	"blinkos/shutdown"
	"blinkos/store"
	"blinkos/tracker"
	"blinkos/voice"
)

var prefsModeKey = store.Key{"prefs", "mode"}

type runOptions struct {
	landmarks      string
	landmarkFormat string
	voice          string
	mode           string
	screen         string
	noTUI          bool
	noHotkey       bool
	uncalibrated   bool
}

func newRunCmd(g *globalFlags) *cobra.Command {
	var o runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the gaze and voice pipelines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.landmarks == "-" && o.voice == "-" {
				return errors.New("only one of --landmarks and --voice can read stdin")
			}
			if _, err := landmark.ParseFormat(o.landmarkFormat); err != nil {
				return err
			}
			cfg, err := loadConfig(g.config, o.mode, o.screen)
			if err != nil {
				return err
			}
			useTUI := !o.noTUI && term.IsTerminal(int(os.Stdout.Fd()))
			return runSession(cmd.Context(), cfg, o, useTUI)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.landmarks, "landmarks", "", "landmark stream from the extractor (file, FIFO or - for stdin)")
	f.StringVar(&o.landmarkFormat, "landmark-format", "msgpack", "landmark stream encoding: msgpack or jsonl")
	f.StringVar(&o.voice, "voice", "", "voice sidecar stream of JSON lines (file, FIFO or - for stdin)")
	f.StringVar(&o.mode, "mode", "", "startup mode: eye, voice or hybrid (default: last used, then config)")
	f.StringVar(&o.screen, "screen", "", "screen size as WIDTHxHEIGHT (default: config)")
	f.BoolVar(&o.noTUI, "no-tui", false, "print events as lines instead of the status screen")
	f.BoolVar(&o.noHotkey, "no-hotkey", false, "do not watch the global hotkey")
	f.BoolVar(&o.uncalibrated, "uncalibrated", false, "drive the cursor with a fixed 2x linear map until a profile exists")
	return cmd
}

func runSession(parent context.Context, cfg *config.Config, o runOptions, useTUI bool) error {
	if parent == nil {
		parent = context.Background()
	}
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	s, err := newSession(cfg, o)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := shutdown.Context(parent)
	defer cancel()
	return s.run(ctx, useTUI)
}

// session owns every pipeline of one run.
type session struct {
	id   string
	cfg  *config.Config
	opts runOptions

	kv    *store.Store
	repo  *calibration.Repository
	cal   *calibration.Engine
	coord *coordinator.Coordinator
	trk   *tracker.Tracker
	sink  automation.Sink
	lm    landmark.Source
	vs    *voice.StreamSource
	rec   voice.Recognizer
	pipe  *voice.Pipeline

	events EventSink

	mu       sync.Mutex
	calPoint int

	voiceDown   atomic.Bool
	voiceBad    atomic.Int64
	sinkErrs    atomic.Int64
	unsupported atomic.Bool
}

func newSession(cfg *config.Config, o runOptions) (_ *session, err error) {
	ctx := context.Background()
	s := &session{id: uuid.NewString(), cfg: cfg, opts: o}
	defer func() {
		if err != nil {
			s.close()
		}
	}()

	s.kv, err = openStore(cfg)
	if err != nil {
		return nil, err
	}
	s.repo = calibration.NewRepository(s.kv)

	if o.mode == "" {
		if data, err := s.kv.Get(ctx, prefsModeKey); err == nil {
			if m, err := coordinator.ParseMode(string(data)); err == nil {
				cfg.Mode.Startup = m.String()
			}
		}
	}

	s.cal = calibration.NewEngine(cfg.CalibrationConfig())
	s.loadProfile(ctx)

	s.coord, err = coordinator.New(cfg.CoordinatorConfig())
	if err != nil {
		return nil, err
	}

	if o.landmarks != "" {
		rc, err := openInput(o.landmarks)
		if err != nil {
			return nil, fmt.Errorf("landmark stream: %w", err)
		}
		format, _ := landmark.ParseFormat(o.landmarkFormat)
		s.lm = landmark.NewStreamSource(rc, format)
	}
	s.trk = tracker.New(cfg.TrackerConfig(), s.lm, s.cal, s.coord)

	if o.voice != "" {
		rc, err := openInput(o.voice)
		if err != nil {
			return nil, fmt.Errorf("voice stream: %w", err)
		}
		s.vs = voice.NewStreamSource(rc)
	}
	if cmd := cfg.Voice.RecognizerCmd; cmd != "" {
		rec, err := voice.NewExecRecognizer(cmd)
		if err != nil {
			log.Warnf("recognizer unavailable: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: recognizer unavailable: %v\n", err)
		} else {
			s.rec = rec
		}
	}

	s.sink, err = automation.New(cfg.AutomationConfig())
	if err != nil {
		return nil, fmt.Errorf("%w\nFix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput, or set automation.backend", err)
	}
	if cfg.Feedback.Sounds {
		beep.Enable()
		s.sink = cueSink{s.sink}
	}
	return s, nil
}

// cueSink sounds a click cue for every click the desktop accepted.
type cueSink struct {
	automation.Sink
}

func (c cueSink) Apply(ctx context.Context, in intent.Intent) error {
	err := c.Sink.Apply(ctx, in)
	if err == nil && in.Kind() == intent.KindClick {
		beep.Play(beep.Click)
	}
	return err
}

func (s *session) loadProfile(ctx context.Context) {
	p, err := s.repo.Active(ctx)
	switch {
	case err == nil:
		if err := s.cal.Load(p); err != nil {
			log.Warnf("active profile %s rejected: %v", p.ID, err)
			break
		}
		if p.ScreenW != s.cfg.Screen.Width || p.ScreenH != s.cfg.Screen.Height {
			log.Warnf("profile %s was calibrated on %dx%d, screen is %dx%d",
				p.ID, p.ScreenW, p.ScreenH, s.cfg.Screen.Width, s.cfg.Screen.Height)
		}
		log.Infof("profile %s loaded", p.ID)
	case errors.Is(err, store.ErrNotFound):
	default:
		log.Warnf("loading active profile: %v", err)
	}
	if !s.cal.Calibrated() && s.opts.uncalibrated {
		if err := s.cal.Load(calibration.Identity(2)); err != nil {
			log.Warnf("identity profile: %v", err)
		}
	}
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func (s *session) run(ctx context.Context, useTUI bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var prog *tea.Program
	switch {
	case useTUI:
		prog = newTUIProgram(s)
		s.events = newTUIEvents(prog)
	case s.events == nil:
		s.events = newConsoleEvents(os.Stderr)
	}
	log.SessionStart(s.id, s.coord.Mode().String(), s.cfg.Screen.Width, s.cfg.Screen.Height)

	var wg sync.WaitGroup
	start := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	start(func() { s.forwardNotes(ctx) })
	start(func() { automation.Run(ctx, s.sink, s.coord.Intents(), s.sinkFailed) })

	if s.lm != nil {
		start(func() {
			if err := s.trk.Run(ctx); err != nil && ctx.Err() == nil {
				log.Errorf("landmark pipeline stopped: %v", err)
			}
		})
	} else {
		s.coord.ReportFault(coordinator.Fault{
			Kind:     coordinator.FaultCapture,
			Pipeline: coordinator.PipelineEye,
			Err:      fmt.Errorf("%w: no landmark stream (--landmarks)", landmark.ErrCaptureFault),
		})
	}

	if s.rec != nil {
		s.pipe = voice.NewPipeline(s.rec, s.cfg.PipelineConfig(),
			func(u voice.Utterance) { s.utterance(ctx, u) },
			s.voiceFault)
		start(func() { s.pipe.Run(ctx) })
	}
	if s.vs != nil {
		start(func() { s.readVoice(ctx) })
	} else {
		s.voiceFault(fmt.Errorf("%w: no voice stream (--voice)", voice.ErrMicrophoneFault))
	}

	if hk := s.registerHotkey(); hk != nil {
		defer hk.Unregister()
		g := hotkey.NewGestures(hk, s.cfg.Hotkey.LongPress.D())
		start(func() { s.handleGestures(ctx, g.Actions()) })
	}

	if prog != nil {
		go func() {
			<-ctx.Done()
			prog.Quit()
		}()
		if _, err := prog.Run(); err != nil {
			log.Errorf("TUI error: %v", err)
		}
		cancel()
	} else {
		<-ctx.Done()
	}
	wg.Wait()
	s.end()
	return nil
}

func (s *session) registerHotkey() hotkey.Hotkey {
	if s.opts.noHotkey {
		return nil
	}
	combo, err := hotkey.ParseCombo(s.cfg.Hotkey.Combo)
	if err != nil {
		return nil
	}
	hk := hotkey.New(combo)
	if err := hk.Register(); err != nil {
		log.Warnf("hotkey %s unavailable: %v", combo, err)
		s.events.Problem(fmt.Sprintf("hotkey %s unavailable: %v", combo, err))
		return nil
	}
	return hk
}

// handleGestures maps hotkey gestures: a tap cycles the mode, or captures
// the current point while calibrating; a hold begins or aborts calibration.
func (s *session) handleGestures(ctx context.Context, actions <-chan hotkey.Action) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-actions:
			switch a {
			case hotkey.Tap:
				if s.trk.Calibrating() {
					s.CaptureCalibration()
				} else {
					s.coord.CycleMode("hotkey")
				}
			case hotkey.Hold:
				if s.trk.Calibrating() {
					s.AbortCalibration()
				} else {
					s.BeginCalibration()
				}
			}
		}
	}
}

// forwardNotes hands coordinator notifications to the display and
// remembers modes the user picked.
func (s *session) forwardNotes(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-s.coord.Notifications():
			switch n.Kind {
			case coordinator.NoteMode:
				beep.Play(beep.Mode)
				if !n.Degraded {
					if err := s.kv.Set(ctx, prefsModeKey, []byte(n.To.String())); err != nil {
						log.Warnf("saving mode: %v", err)
					}
				}
			case coordinator.NoteFault:
				beep.Play(beep.Error)
			}
			s.events.Notify(n)
		}
	}
}

func (s *session) readVoice(ctx context.Context) {
	warned := false
	for {
		it, err := s.vs.Next(ctx)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, voice.ErrBadRecord) {
			if s.voiceBad.Add(1) == 1 {
				s.events.Problem("voice sidecar sent a malformed record")
			}
			log.Warnf("voice stream: %v", err)
			continue
		}
		if err != nil {
			s.voiceFault(err)
			if errors.Is(err, voice.ErrStreamEnded) {
				return
			}
			continue
		}
		switch {
		case it.Utterance != nil:
			s.utterance(ctx, *it.Utterance)
		case it.Segment != nil:
			if s.pipe == nil {
				if !warned {
					log.Warn("speech segment received but voice.recognizer_cmd is not set")
					s.events.Problem("speech segments need voice.recognizer_cmd")
					warned = true
				}
				continue
			}
			s.voiceRecovered()
			s.pipe.Submit(*it.Segment)
		}
	}
}

func (s *session) utterance(ctx context.Context, u voice.Utterance) {
	s.voiceRecovered()
	s.coord.HandleUtterance(ctx, u)
}

func (s *session) voiceFault(err error) {
	if !errors.Is(err, voice.ErrMicrophoneFault) {
		err = fmt.Errorf("%w: %v", voice.ErrMicrophoneFault, err)
	}
	s.voiceDown.Store(true)
	s.coord.ReportFault(coordinator.Fault{
		Kind:     coordinator.FaultMicrophone,
		Pipeline: coordinator.PipelineVoice,
		At:       time.Now(),
		Err:      err,
	})
}

func (s *session) voiceRecovered() {
	if s.voiceDown.CompareAndSwap(true, false) {
		s.coord.Recovered(coordinator.PipelineVoice)
		log.Info("voice pipeline recovered")
	}
}

func (s *session) sinkFailed(in intent.Intent, err error) {
	s.sinkErrs.Add(1)
	if errors.Is(err, automation.ErrUnsupported) {
		if s.unsupported.CompareAndSwap(false, true) {
			log.Warnf("%s backend: %v", s.sink.Name(), err)
			s.events.Problem(fmt.Sprintf("%s: %v", in.Kind(), err))
		}
		return
	}
	log.Warnf("apply %s: %v", in.Kind(), err)
	s.events.Problem(fmt.Sprintf("%s: %v", in.Kind(), err))
}

// BeginCalibration opens a calibration session at the first grid point.
func (s *session) BeginCalibration() {
	if err := s.trk.BeginCalibration(); err != nil {
		s.events.Calibration(err.Error())
		return
	}
	s.mu.Lock()
	s.calPoint = 0
	s.mu.Unlock()
	s.events.Calibration(fmt.Sprintf("look at point 1 of %d and press space", calibration.NumPoints))
}

// CaptureCalibration records the current point and commits after the last.
func (s *session) CaptureCalibration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.trk.Calibrating() {
		return
	}
	idx := s.calPoint
	n, err := s.trk.CapturePoint(idx)
	if errors.Is(err, calibration.ErrInsufficientData) {
		s.events.Calibration("no steady gaze yet, hold still and press space again")
		return
	}
	if err != nil {
		s.events.Calibration(err.Error())
		return
	}
	beep.Play(beep.Click)
	s.calPoint++
	if s.calPoint < calibration.NumPoints {
		s.events.Calibration(fmt.Sprintf("point %d captured (%d samples), look at point %d", idx+1, n, s.calPoint+1))
		return
	}
	p, err := s.trk.CommitCalibration()
	s.calPoint = 0
	if err != nil {
		s.events.Calibration("failed: " + err.Error())
		return
	}
	ctx := context.Background()
	if err := s.repo.Save(ctx, p); err != nil {
		log.Errorf("saving profile %s: %v", p.ID, err)
		s.events.Problem("profile not saved: " + err.Error())
	} else if err := s.repo.SetActive(ctx, p.ID); err != nil {
		log.Errorf("activating profile %s: %v", p.ID, err)
	}
	s.events.Calibration(fmt.Sprintf("profile %s active, fit error %.1f px", shortID(p.ID), p.RMSPixels))
}

func (s *session) AbortCalibration() {
	if !s.trk.Calibrating() {
		return
	}
	s.trk.AbortCalibration()
	s.mu.Lock()
	s.calPoint = 0
	s.mu.Unlock()
	s.events.Calibration("aborted, previous profile kept")
}

func (s *session) CycleMode() { s.coord.CycleMode("keyboard") }

func (s *session) SetMode(m coordinator.Mode) { s.coord.SetMode(m, "keyboard") }

func (s *session) ToggleCursor() {
	s.coord.SetCursorPaused(!s.coord.State().CursorPaused)
}

func (s *session) ToggleClicks() {
	s.coord.SetClicksPaused(!s.coord.State().ClicksPaused)
}

// sessionStatus is one snapshot for the status screen.
type sessionStatus struct {
	State       coordinator.State
	Stats       coordinator.Stats
	Tracker     tracker.Status
	CalCounts   [calibration.NumPoints]int
	CalPoint    int
	Calibrating bool
	Profile     string
	Screen      config.Screen
	Margin      float64
	Sink        string
	SinkErrors  int64
	BadVoice    int64
	Recognizer  string
	Backlog     int
	SegDropped  int64
	HasEye      bool
	HasVoice    bool
}

func (s *session) Snapshot() sessionStatus {
	st := sessionStatus{
		State:      s.coord.State(),
		Stats:      s.coord.Stats(),
		Tracker:    s.trk.Status(),
		Screen:     s.cfg.Screen,
		Margin:     s.cfg.Calibration.GridMargin,
		Sink:       s.sink.Name(),
		SinkErrors: s.sinkErrs.Load(),
		BadVoice:   s.voiceBad.Load(),
		HasEye:     s.lm != nil,
		HasVoice:   s.vs != nil,
	}
	st.CalCounts, st.Calibrating = s.cal.Progress()
	s.mu.Lock()
	st.CalPoint = s.calPoint
	s.mu.Unlock()
	if p, err := s.cal.Export(); err == nil {
		st.Profile = p.ID
	}
	if s.rec != nil {
		st.Recognizer = s.rec.Name()
	}
	if s.pipe != nil {
		st.Backlog = s.pipe.Backlog()
		st.SegDropped = s.pipe.Dropped()
	}
	return st
}

// end logs the session summary.
func (s *session) end() {
	st := s.coord.Stats()
	c := log.SessionCounts{
		Frames:     s.trk.Frames(),
		Cursor:     st.Cursor,
		Clicks:     st.Clicks,
		Voice:      st.Voice,
		Suppressed: st.Suppressed,
		Dropped:    st.Dropped,
		Faults:     st.Faults,
	}
	if s.pipe != nil {
		c.Dropped += s.pipe.Dropped()
	}
	log.SessionEnd(s.id, c)
}

func (s *session) close() {
	if s.lm != nil {
		s.lm.Close()
	}
	if s.vs != nil {
		s.vs.Close()
	}
	if s.sink != nil {
		if err := s.sink.Close(); err != nil {
			log.Warnf("closing %s: %v", s.sink.Name(), err)
		}
	}
	if s.kv != nil {
		if err := s.kv.Close(); err != nil {
			log.Warnf("closing store: %v", err)
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
