package coordinator

import (
	"fmt"
	"time"
)

type FaultKind int

const (
	FaultTrackingLost FaultKind = iota
	FaultCapture
	FaultMicrophone
	FaultCalibration
)

func (k FaultKind) String() string {
	switch k {
	case FaultTrackingLost:
		return "tracking_lost"
	case FaultCapture:
		return "capture_fault"
	case FaultMicrophone:
		return "microphone_fault"
	case FaultCalibration:
		return "calibration_failed"
	}
	return fmt.Sprintf("fault(%d)", int(k))
}

// fatal faults take their pipeline out of service.
func (k FaultKind) fatal() bool {
	return k == FaultCapture || k == FaultMicrophone
}

// Fault is a structured error report from one of the pipelines.
type Fault struct {
	Kind     FaultKind
	Pipeline Pipeline
	At       time.Time
	Err      error
}

func (f Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s (%s): %v", f.Kind, f.Pipeline, f.Err)
	}
	return fmt.Sprintf("%s (%s)", f.Kind, f.Pipeline)
}

type NoteKind int

const (
	NoteFault NoteKind = iota
	NoteMode
	NoteDictation
	NoteHelp
)

// Notification is what the presentation layer renders. The coordinator
// never draws anything itself.
type Notification struct {
	Kind NoteKind
	At   time.Time

	Fault Fault // NoteFault

	From, To Mode   // NoteMode
	Reason   string // NoteMode
	Degraded bool   // NoteMode, forced by a fault

	Dictating bool // NoteDictation

	Phrases []string // NoteHelp
}
