package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"blinkos/coordinator"
)

// EventSink abstracts the display layer so both the status TUI and the
// headless console receive the same session events.
type EventSink interface {
	Notify(n coordinator.Notification)
	Calibration(text string)
	Problem(text string)
}

// describe renders a notification as one line.
func describe(n coordinator.Notification) string {
	switch n.Kind {
	case coordinator.NoteMode:
		if n.Degraded {
			return fmt.Sprintf("mode %s -> %s (%s)", n.From.Label(), n.To.Label(), n.Reason)
		}
		return fmt.Sprintf("mode %s (%s)", n.To.Label(), n.Reason)
	case coordinator.NoteFault:
		return "fault: " + n.Fault.Error()
	case coordinator.NoteDictation:
		if n.Dictating {
			return "dictation on, say \"stop typing\" to end"
		}
		return "dictation off"
	case coordinator.NoteHelp:
		return "commands: " + strings.Join(n.Phrases, ", ")
	}
	return ""
}

// consoleEvents prints one timestamped line per event.
type consoleEvents struct {
	mu sync.Mutex
	w  io.Writer
}

func newConsoleEvents(w io.Writer) *consoleEvents {
	return &consoleEvents{w: w}
}

func (c *consoleEvents) line(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "%s %s\n", time.Now().Format("15:04:05"), text)
}

func (c *consoleEvents) Notify(n coordinator.Notification) { c.line(describe(n)) }
func (c *consoleEvents) Calibration(text string)           { c.line("calibration: " + text) }
func (c *consoleEvents) Problem(text string)               { c.line("error: " + text) }

// tuiEvents forwards events into the Bubble Tea program. Program.Send
// blocks until the program reads, so a pump goroutine does the sending and
// callers only ever queue. A full queue drops the event.
type tuiEvents struct {
	ch chan tea.Msg
}

func newTUIEvents(p *tea.Program) *tuiEvents {
	t := &tuiEvents{ch: make(chan tea.Msg, 64)}
	go func() {
		for msg := range t.ch {
			p.Send(msg)
		}
	}()
	return t
}

func (t *tuiEvents) send(msg tea.Msg) {
	select {
	case t.ch <- msg:
	default:
	}
}

func (t *tuiEvents) Notify(n coordinator.Notification) { t.send(NoteMsg{Note: n}) }
func (t *tuiEvents) Calibration(text string)           { t.send(CalibrationMsg{Text: text}) }
func (t *tuiEvents) Problem(text string)               { t.send(ProblemMsg{Text: text}) }
