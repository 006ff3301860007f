package coordinator

import (
	"fmt"
	"strings"
)

// Mode is the top-level operation mode. Every mode is reachable from every
// other one.
type Mode int

const (
	EyeOnly Mode = iota
	VoiceOnly
	Hybrid
)

func (m Mode) String() string {
	switch m {
	case EyeOnly:
		return "eye"
	case VoiceOnly:
		return "voice"
	case Hybrid:
		return "hybrid"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Label is the human readable name shown in the status line.
func (m Mode) Label() string {
	switch m {
	case EyeOnly:
		return "Eye only"
	case VoiceOnly:
		return "Voice only"
	case Hybrid:
		return "Hybrid"
	}
	return m.String()
}

func (m Mode) Valid() bool { return m >= EyeOnly && m <= Hybrid }

// Eye reports whether gaze and blink intents are forwarded in this mode.
func (m Mode) Eye() bool { return m == EyeOnly || m == Hybrid }

// Voice reports whether voice derived intents are forwarded in this mode.
func (m Mode) Voice() bool { return m == VoiceOnly || m == Hybrid }

// Next cycles hybrid -> eye -> voice -> hybrid, the order of the hotkey tap.
func (m Mode) Next() Mode {
	switch m {
	case Hybrid:
		return EyeOnly
	case EyeOnly:
		return VoiceOnly
	}
	return Hybrid
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "eye", "eyes", "eye_only", "eyeonly":
		return EyeOnly, nil
	case "voice", "voice_only", "voiceonly":
		return VoiceOnly, nil
	case "hybrid", "":
		return Hybrid, nil
	}
	return Hybrid, fmt.Errorf("unknown mode %q (want eye, voice or hybrid)", s)
}

// Pipeline names one of the two input pipelines.
type Pipeline int

const (
	PipelineEye Pipeline = iota
	PipelineVoice
)

func (p Pipeline) String() string {
	if p == PipelineVoice {
		return "voice"
	}
	return "eye"
}

func (p Pipeline) activeIn(m Mode) bool {
	if p == PipelineVoice {
		return m.Voice()
	}
	return m.Eye()
}
