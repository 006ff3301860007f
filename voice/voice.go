// Package voice classifies recognized speech into commands, control phrases
// and dictation, and bounds the work handed to a speech recognizer.
package voice

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

var (
	// ErrMicrophoneFault wraps recognizer device or transport failures.
	ErrMicrophoneFault = errors.New("voice: microphone fault")
	// ErrNoSpeech is returned by a recognizer for a segment without words.
	ErrNoSpeech = errors.New("voice: no speech in segment")
	// ErrStreamEnded marks the end of the sidecar stream. It always comes
	// wrapped with ErrMicrophoneFault.
	ErrStreamEnded = errors.New("voice: stream ended")
	// ErrBadRecord is a sidecar line that did not parse. It is not a
	// device fault; the stream continues with the next line.
	ErrBadRecord = errors.New("voice: bad stream record")
)

// Utterance is one recognized phrase.
type Utterance struct {
	Text       string
	Confidence float64
	At         time.Time
}

type Class int

const (
	ClassUnknown Class = iota
	ClassCommand
	ClassDictation
	ClassControl
)

func (c Class) String() string {
	switch c {
	case ClassCommand:
		return "command"
	case ClassDictation:
		return "dictation"
	case ClassControl:
		return "control"
	case ClassUnknown:
		return "unknown"
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// Event is a classified utterance. Exactly one of Command, Control or Text is
// meaningful, selected by Class.
type Event struct {
	Utterance
	Class   Class
	Command Command
	Control Control
	// Text is the dictated part, before punctuation words are resolved.
	Text string
	// Then is a control phrase that followed the dictated text in the same
	// utterance ("... stop typing").
	Then Control
}

// Normalize lowercases, drops punctuation and collapses whitespace so
// catalog phrases match regardless of how the recognizer formatted them.
func Normalize(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'':
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			space = true
		}
	}
	return b.String()
}

// cutTrailingPhrase removes the words of a normalized phrase from the end of
// raw, keeping the recognizer's formatting of everything before them.
func cutTrailingPhrase(raw, phrase string) (string, bool) {
	fields := strings.Fields(raw)
	for i := len(fields) - 1; i > 0; i-- {
		tail := Normalize(strings.Join(fields[i:], " "))
		if tail == phrase {
			return strings.Join(fields[:i], " "), true
		}
		if len(tail) > len(phrase) {
			break
		}
	}
	return "", false
}

// Classify turns an utterance into an event. While dictating, everything
// except the stop phrase is dictation.
func Classify(u Utterance, dictating bool) Event {
	ev := Event{Utterance: u}
	text := Normalize(u.Text)
	if text == "" {
		return ev
	}

	if dictating {
		if text == stopDictationPhrase {
			ev.Class = ClassControl
			ev.Control = ControlStopDictation
			return ev
		}
		ev.Class = ClassDictation
		ev.Text = u.Text
		if rest, ok := cutTrailingPhrase(u.Text, stopDictationPhrase); ok {
			ev.Text = rest
			ev.Then = ControlStopDictation
		} else if rest, ok := strings.CutSuffix(text, " "+stopDictationPhrase); ok {
			// phrase glued to a word by punctuation; only the normalized form splits
			ev.Text = rest
			ev.Then = ControlStopDictation
		}
		return ev
	}

	if ctl, ok := lookupControl(text); ok {
		ev.Class = ClassControl
		ev.Control = ctl
		return ev
	}
	if cmd, ok := lookupCommand(text); ok {
		ev.Class = ClassCommand
		ev.Command = cmd
		return ev
	}
	return ev
}
