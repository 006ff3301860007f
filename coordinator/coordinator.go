// Package coordinator owns the operation mode and decides which pipeline's
// intents reach the automation sink.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"blinkos/intent"
	"blinkos/log"
	"blinkos/voice"
)

// State is an immutable snapshot. Writers publish a whole new value so
// readers never see a half applied transition.
type State struct {
	Mode      Mode
	Dictating bool
	// CursorPaused and ClicksPaused silence eye output without changing
	// the mode.
	CursorPaused bool
	ClicksPaused bool
	// Down marks pipelines taken out of service by a fatal fault.
	Down [2]bool
}

type Config struct {
	Mode Mode
	// MinConfidence drops utterances the recognizer is unsure about,
	// control phrases included.
	MinConfidence float64
	// Buffer is the capacity of the intent channel.
	Buffer   int
	Platform voice.Platform
}

func DefaultConfig() Config {
	return Config{
		Mode:          Hybrid,
		MinConfidence: 0.5,
		Buffer:        64,
		Platform:      voice.HostPlatform(),
	}
}

type Stats struct {
	Cursor     int64
	Clicks     int64
	Voice      int64
	Suppressed int64
	Dropped    int64
	Unknown    int64
	Faults     int64
}

type Coordinator struct {
	cfg Config

	// mu serialises writers; readers only load the pointer.
	mu    sync.Mutex
	state atomic.Pointer[State]

	// voiceMu keeps utterances in order and guards the transcriber.
	voiceMu     sync.Mutex
	transcriber *voice.Transcriber

	intents chan intent.Intent
	notes   chan Notification

	cursor     atomic.Int64
	clicks     atomic.Int64
	voiced     atomic.Int64
	suppressed atomic.Int64
	dropped    atomic.Int64
	unknown    atomic.Int64
	faults     atomic.Int64
}

func New(cfg Config) (*Coordinator, error) {
	if !cfg.Mode.Valid() {
		return nil, fmt.Errorf("invalid startup mode %d", int(cfg.Mode))
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return nil, fmt.Errorf("min confidence %v outside 0..1", cfg.MinConfidence)
	}
	if cfg.Buffer < 1 {
		cfg.Buffer = 1
	}
	c := &Coordinator{
		cfg:         cfg,
		transcriber: voice.NewTranscriber(cfg.Platform),
		intents:     make(chan intent.Intent, cfg.Buffer),
		notes:       make(chan Notification, 16),
	}
	c.state.Store(&State{Mode: cfg.Mode})
	return c, nil
}

// Intents is the ordered stream for the automation sink.
func (c *Coordinator) Intents() <-chan intent.Intent { return c.intents }

// Notifications carries faults, mode changes and help requests for the
// presentation layer. Slow readers miss notifications, never block the
// pipelines.
func (c *Coordinator) Notifications() <-chan Notification { return c.notes }

func (c *Coordinator) State() State { return *c.state.Load() }
func (c *Coordinator) Mode() Mode   { return c.state.Load().Mode }

// update is the only place state is written.
func (c *Coordinator) update(fn func(s *State)) (prev, next State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev = *c.state.Load()
	next = prev
	fn(&next)
	if next != prev {
		c.state.Store(&next)
	}
	return prev, next
}

// SetMode switches the operation mode. It takes effect for the next intent
// either pipeline emits.
func (c *Coordinator) SetMode(m Mode, reason string) error {
	if !m.Valid() {
		return fmt.Errorf("invalid mode %d", int(m))
	}
	prev, _ := c.update(func(s *State) { s.Mode = m })
	if prev.Mode != m {
		c.modeChanged(prev.Mode, m, reason, false)
	}
	return nil
}

// CycleMode advances to the next mode and returns it.
func (c *Coordinator) CycleMode(reason string) Mode {
	prev, next := c.update(func(s *State) { s.Mode = s.Mode.Next() })
	c.modeChanged(prev.Mode, next.Mode, reason, false)
	return next.Mode
}

func (c *Coordinator) modeChanged(from, to Mode, reason string, degraded bool) {
	log.ModeChange(from.String(), to.String(), reason)
	c.notify(Notification{Kind: NoteMode, At: time.Now(), From: from, To: to, Reason: reason, Degraded: degraded})
}

func (c *Coordinator) SetCursorPaused(paused bool) {
	c.update(func(s *State) { s.CursorPaused = paused })
}

func (c *Coordinator) SetClicksPaused(paused bool) {
	c.update(func(s *State) { s.ClicksPaused = paused })
}

func (c *Coordinator) notify(n Notification) {
	select {
	case c.notes <- n:
	default:
	}
}

// SubmitEye forwards a cursor or click intent when the mode allows it.
// Cursor intents never block: a full channel drops them since the next
// frame supersedes them. It reports whether the intent was forwarded.
func (c *Coordinator) SubmitEye(ctx context.Context, in intent.Intent) bool {
	st := c.state.Load()
	if !st.Mode.Eye() {
		c.suppressed.Add(1)
		return false
	}
	switch in.Kind() {
	case intent.KindCursor:
		if st.CursorPaused {
			c.suppressed.Add(1)
			return false
		}
		select {
		case c.intents <- in:
			c.cursor.Add(1)
			return true
		default:
			c.dropped.Add(1)
			return false
		}
	case intent.KindClick:
		if st.ClicksPaused {
			c.suppressed.Add(1)
			return false
		}
		if c.send(ctx, in) {
			c.clicks.Add(1)
			return true
		}
		return false
	}
	c.suppressed.Add(1)
	return false
}

func (c *Coordinator) send(ctx context.Context, in intent.Intent) bool {
	select {
	case c.intents <- in:
		return true
	case <-ctx.Done():
		return false
	}
}

// HandleUtterance classifies one recognized utterance and acts on it.
// Control phrases apply in every mode so voice can always switch back.
func (c *Coordinator) HandleUtterance(ctx context.Context, u voice.Utterance) {
	if u.Confidence < c.cfg.MinConfidence {
		c.suppressed.Add(1)
		return
	}
	c.voiceMu.Lock()
	defer c.voiceMu.Unlock()

	ev := voice.Classify(u, c.state.Load().Dictating)
	switch ev.Class {
	case voice.ClassControl:
		c.control(ev.Control, u.At)
	case voice.ClassCommand:
		if ev.Command.Kind == voice.CmdHelp {
			c.notify(Notification{Kind: NoteHelp, At: u.At, Phrases: voice.Phrases()})
			return
		}
		if !c.Mode().Voice() {
			c.suppressed.Add(1)
			return
		}
		log.Command(ev.Command.String())
		c.forwardVoice(ctx, ev.Command.Intents(u.At, c.cfg.Platform))
	case voice.ClassDictation:
		if c.Mode().Voice() {
			out := c.transcriber.Transcribe(ev.Text, u.At)
			for _, in := range out {
				if t, ok := in.(intent.Text); ok {
					log.Typed(t.Text)
				}
			}
			c.forwardVoice(ctx, out)
		} else {
			c.suppressed.Add(1)
		}
		if ev.Then != voice.ControlNone {
			c.control(ev.Then, u.At)
		}
	default:
		c.unknown.Add(1)
	}
}

// forwardVoice re-checks the mode before each intent so a mode switch in
// the middle of a multi-intent command stops the rest.
func (c *Coordinator) forwardVoice(ctx context.Context, out []intent.Intent) {
	for _, in := range out {
		if !c.Mode().Voice() {
			c.suppressed.Add(1)
			continue
		}
		if !c.send(ctx, in) {
			return
		}
		c.voiced.Add(1)
	}
}

func (c *Coordinator) control(ctl voice.Control, at time.Time) {
	switch ctl {
	case voice.ControlStartDictation, voice.ControlStopDictation:
		on := ctl == voice.ControlStartDictation
		prev, _ := c.update(func(s *State) { s.Dictating = on })
		if prev.Dictating == on {
			return
		}
		if on {
			c.transcriber.Reset()
		}
		c.notify(Notification{Kind: NoteDictation, At: at, Dictating: on})
	case voice.ControlEyeMode:
		c.SetMode(EyeOnly, "voice")
	case voice.ControlVoiceMode:
		c.SetMode(VoiceOnly, "voice")
	case voice.ControlHybridMode:
		c.SetMode(Hybrid, "voice")
	}
}

// ReportFault records a pipeline fault. A fatal fault in a pipeline the
// current mode uses moves to the other modality when that one is still in
// service; faults in an unused pipeline are only logged.
func (c *Coordinator) ReportFault(f Fault) {
	if f.At.IsZero() {
		f.At = time.Now()
	}
	c.faults.Add(1)
	log.Fault(f.Kind.String(), f.Pipeline.String(), f.At, f.Err)

	var active bool
	prev, next := c.update(func(s *State) {
		active = f.Pipeline.activeIn(s.Mode)
		if !f.Kind.fatal() {
			return
		}
		s.Down[f.Pipeline] = true
		other := PipelineVoice
		target := VoiceOnly
		if f.Pipeline == PipelineVoice {
			other, target = PipelineEye, EyeOnly
		}
		if active && !s.Down[other] {
			s.Mode = target
		}
	})
	if !active {
		return
	}
	c.notify(Notification{Kind: NoteFault, At: f.At, Fault: f})
	if prev.Mode != next.Mode {
		c.modeChanged(prev.Mode, next.Mode, "degraded: "+f.Kind.String(), true)
	}
}

// Recovered puts a pipeline back in service. The mode is left alone.
func (c *Coordinator) Recovered(p Pipeline) {
	c.update(func(s *State) { s.Down[p] = false })
}

func (c *Coordinator) Stats() Stats {
	return Stats{
		Cursor:     c.cursor.Load(),
		Clicks:     c.clicks.Load(),
		Voice:      c.voiced.Load(),
		Suppressed: c.suppressed.Load(),
		Dropped:    c.dropped.Load(),
		Unknown:    c.unknown.Load(),
		Faults:     c.faults.Load(),
	}
}
