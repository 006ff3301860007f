// Package blink tells deliberate blinks apart from natural blinking and
// turns them into click intents.
package blink

import (
	"fmt"
	"time"

	"blinkos/eyestate"
	"blinkos/intent"
)

type Phase int

const (
	Open Phase = iota
	Closing
	Closed
	Opening
)

func (p Phase) String() string {
	switch p {
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	case Opening:
		return "opening"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Config holds the classifier thresholds. Validation happens in the config
// package; the classifier uses the values as given.
type Config struct {
	// Threshold is the eye aspect ratio below which the eyes count as closing.
	Threshold float64
	// MinDwell is how long the ratio must stay below Threshold before the
	// eyes count as closed.
	MinDwell time.Duration
	// IntentionalMin and IntentionalMax bound the closure duration, both
	// inclusive, that produces a click.
	IntentionalMin time.Duration
	IntentionalMax time.Duration
	// Refractory is the minimum time between two clicks.
	Refractory time.Duration
}

func DefaultConfig() Config {
	return Config{
		Threshold:      0.2,
		MinDwell:       50 * time.Millisecond,
		IntentionalMin: 250 * time.Millisecond,
		IntentionalMax: time.Second,
		Refractory:     600 * time.Millisecond,
	}
}

// Outcome explains what a completed closure produced.
type Outcome int

const (
	NoOutcome Outcome = iota
	Clicked
	TooShort
	TooLong
	InRefractory
	Unobserved
)

func (o Outcome) String() string {
	return [...]string{"none", "clicked", "too_short", "too_long", "refractory", "unobserved"}[o]
}

// Classifier is the blink state machine for one tracked face. Only Update
// and Reset change its phase.
type Classifier struct {
	cfg   Config
	phase Phase

	closingAt time.Time
	openingAt time.Time
	observed  int

	lastClick time.Time
	clicked   bool
	last      Outcome
}

func New(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

func (c *Classifier) Phase() Phase { return c.phase }

// LastOutcome reports how the most recent closure was classified.
func (c *Classifier) LastOutcome() Outcome { return c.last }

// Update feeds one eye state. Low-confidence states only advance time: they
// can promote Closing to Closed once MinDwell has elapsed but never open the
// eyes.
func (c *Classifier) Update(st eyestate.State) (intent.Click, bool) {
	if st.TrackingLost {
		c.Reset()
		return intent.Click{}, false
	}
	now := st.At
	below := st.Confident && st.EAR < c.cfg.Threshold
	above := st.Confident && !below

	switch c.phase {
	case Open:
		if below {
			c.phase = Closing
			c.closingAt = now
			c.observed = 0
			c.checkDwell(now, true)
		}

	case Closing:
		switch {
		case above:
			c.phase = Open
			c.last = TooShort
		default:
			c.checkDwell(now, below)
		}

	case Closed:
		switch {
		case above:
			c.phase = Opening
			c.openingAt = now
		case below:
			c.observed++
		}

	case Opening:
		switch {
		case below:
			// lid flutter, still the same closure
			c.phase = Closed
			c.observed++
		case above:
			c.phase = Open
			return c.finish()
		}
	}
	return intent.Click{}, false
}

func (c *Classifier) checkDwell(now time.Time, confident bool) {
	if now.Sub(c.closingAt) >= c.cfg.MinDwell {
		c.phase = Closed
		if confident {
			c.observed++
		}
	}
}

func (c *Classifier) finish() (intent.Click, bool) {
	dwell := c.openingAt.Sub(c.closingAt)
	switch {
	case c.observed == 0:
		c.last = Unobserved
	case dwell < c.cfg.IntentionalMin:
		c.last = TooShort
	case dwell > c.cfg.IntentionalMax:
		c.last = TooLong
	case c.clicked && c.openingAt.Sub(c.lastClick) < c.cfg.Refractory:
		c.last = InRefractory
	default:
		c.last = Clicked
		c.clicked = true
		c.lastClick = c.openingAt
		return intent.Click{Type: intent.ClickSingle, At: c.openingAt, Source: intent.SourceBlink}, true
	}
	return intent.Click{}, false
}

// Reset returns to Open and forgets the closure in progress. The refractory
// clock survives so a reset cannot be used to double click.
func (c *Classifier) Reset() {
	c.phase = Open
	c.observed = 0
}
