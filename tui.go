package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"blinkos/calibration"
	"blinkos/coordinator"
)

// TUI message types
type NoteMsg struct{ Note coordinator.Notification }
type CalibrationMsg struct{ Text string }
type ProblemMsg struct{ Text string }
type tickMsg time.Time

// controller is what the status screen can ask of the running session.
type controller interface {
	Snapshot() sessionStatus
	CycleMode()
	SetMode(m coordinator.Mode)
	ToggleCursor()
	ToggleClicks()
	BeginCalibration()
	CaptureCalibration()
	AbortCalibration()
}

const maxEventLines = 8

type eventLine struct {
	at   time.Time
	text string
	warn bool
}

type tuiModel struct {
	ctl           controller
	st            sessionStatus
	frame         int
	width, height int
	events        []eventLine
	calText       string
	help          []string
}

// Map cells: 0 empty, then the palette indices below.
const (
	cellBorder = iota + 1
	cellTarget
	cellActive
	cellDone
	cellGaze
	cellCursor
	numCells
)

var (
	cellColors = [numCells]string{"", "238", "241", "214", "42", "39", "196"}
	cellStyles [numCells]lipgloss.Style
	cellBg     [numCells][numCells]lipgloss.Style

	modeStyles = map[coordinator.Mode]lipgloss.Style{
		coordinator.EyeOnly:   lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		coordinator.VoiceOnly: lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Bold(true),
		coordinator.Hybrid:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
	}
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	textStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
)

func init() {
	for i, c := range cellColors {
		if c != "" {
			cellStyles[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(c))
		}
	}
	for i, fg := range cellColors {
		for j, bg := range cellColors {
			if fg != "" && bg != "" {
				cellBg[i][j] = lipgloss.NewStyle().Foreground(lipgloss.Color(fg)).Background(lipgloss.Color(bg))
			}
		}
	}
}

func newTUIModel(ctl controller) tuiModel {
	return tuiModel{ctl: ctl, st: ctl.Snapshot()}
}

func newTUIProgram(ctl controller) *tea.Program {
	return tea.NewProgram(newTUIModel(ctl), tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// do runs a session action off the UI goroutine.
func do(fn func()) tea.Cmd {
	return func() tea.Msg {
		fn()
		return nil
	}
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.frame++
		m.st = m.ctl.Snapshot()
		return m, tuiTick()

	case NoteMsg:
		n := msg.Note
		if n.Kind == coordinator.NoteHelp {
			m.help = n.Phrases
		}
		m.push(eventLine{at: n.At, text: describe(n), warn: n.Kind == coordinator.NoteFault})

	case CalibrationMsg:
		m.calText = msg.Text
		m.push(eventLine{at: time.Now(), text: "calibration: " + msg.Text})

	case ProblemMsg:
		m.push(eventLine{at: time.Now(), text: msg.Text, warn: true})
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "e":
		return m, do(func() { m.ctl.SetMode(coordinator.EyeOnly) })
	case "v":
		return m, do(func() { m.ctl.SetMode(coordinator.VoiceOnly) })
	case "h":
		return m, do(func() { m.ctl.SetMode(coordinator.Hybrid) })
	case "tab", "m":
		return m, do(m.ctl.CycleMode)
	case "c":
		return m, do(m.ctl.BeginCalibration)
	case " ":
		return m, do(m.ctl.CaptureCalibration)
	case "esc":
		if m.help != nil {
			m.help = nil
			return m, nil
		}
		return m, do(m.ctl.AbortCalibration)
	case "p":
		return m, do(m.ctl.ToggleCursor)
	case "k":
		return m, do(m.ctl.ToggleClicks)
	}
	return m, nil
}

func (m *tuiModel) push(l eventLine) {
	if l.at.IsZero() {
		l.at = time.Now()
	}
	m.events = append(m.events, l)
	if len(m.events) > maxEventLines {
		m.events = m.events[len(m.events)-maxEventLines:]
	}
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	const mapWidth = 45
	st := m.st
	screen := renderScreenMap(st, mapWidth-1, 15, m.frame)

	var info []string
	info = append(info, modeLine(st.State))
	info = append(info, trackingLine(st))
	info = append(info, dimStyle.Render(fmt.Sprintf("blink %s, last %s", st.Tracker.Blink, st.Tracker.LastBlink)))
	if st.Profile != "" {
		info = append(info, dimStyle.Render("profile "+shortID(st.Profile)))
	} else {
		info = append(info, warnStyle.Render("not calibrated (press c)"))
	}
	info = append(info, dimStyle.Render(fmt.Sprintf("output %s, errors %d", st.Sink, st.SinkErrors)))
	if st.Recognizer != "" {
		info = append(info, dimStyle.Render(fmt.Sprintf("recognizer %s, backlog %d, dropped %d", st.Recognizer, st.Backlog, st.SegDropped)))
	}
	if st.BadVoice > 0 {
		info = append(info, warnStyle.Render(fmt.Sprintf("voice sidecar: %d malformed records skipped", st.BadVoice)))
	}
	info = append(info, "")
	for _, line := range strings.Split(renderStatsTable(st.Stats, st.Tracker.Frames), "\n") {
		info = append(info, dimStyle.Render(line))
	}
	info = append(info, "")
	info = append(info,
		keyStyle.Render("e/v/h")+helpStyle.Render(" mode  ")+keyStyle.Render("c")+helpStyle.Render(" calibrate  ")+keyStyle.Render("p/k")+helpStyle.Render(" pause cursor/clicks"),
		keyStyle.Render("space")+helpStyle.Render(" capture  ")+keyStyle.Render("esc")+helpStyle.Render(" abort  ")+keyStyle.Render("q")+helpStyle.Render(" quit"),
		helpStyle.Render("blinkos "+version),
	)

	left := screen + strings.Join(info, "\n")
	leftLines := strings.Split(left, "\n")

	logWidth := m.width - mapWidth - 1
	if logWidth < 20 {
		logWidth = 20
	}
	wrapWidth := logWidth - 2
	if wrapWidth < 10 {
		wrapWidth = 10
	}

	var right strings.Builder
	if st.State.Dictating {
		right.WriteString(okStyle.Render("● DICTATING") + "\n\n")
	}
	if st.Calibrating {
		right.WriteString(titleStyle.Render("Calibration") + "\n")
		for _, line := range wrapText(m.calText, wrapWidth) {
			right.WriteString(textStyle.Render(line) + "\n")
		}
		right.WriteString("\n")
	}
	if m.help != nil {
		right.WriteString(titleStyle.Render("Voice commands (esc to close)") + "\n")
		for _, line := range wrapText(strings.Join(m.help, ", "), wrapWidth) {
			right.WriteString(textStyle.Render(line) + "\n")
		}
		right.WriteString("\n")
	}
	right.WriteString(titleStyle.Render("Events") + "\n")
	if len(m.events) == 0 {
		right.WriteString(dimStyle.Render("nothing yet") + "\n")
	}
	for _, e := range m.events {
		style := textStyle
		if e.warn {
			style = warnStyle
		}
		lines := wrapText(e.at.Format("15:04:05")+" "+e.text, wrapWidth)
		for _, line := range lines {
			right.WriteString(style.Render(line) + "\n")
		}
	}

	rightPanel := lipgloss.NewStyle().
		Width(logWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(right.String())

	padded := make([]string, m.height)
	for i := range padded {
		if i < len(leftLines) {
			padded[i] = leftLines[i]
		} else {
			padded[i] = strings.Repeat(" ", mapWidth-1)
		}
	}
	leftPanel := lipgloss.NewStyle().
		Width(mapWidth - 1).
		Height(m.height).
		Render(strings.Join(padded, "\n"))

	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)
}

func modeLine(s coordinator.State) string {
	line := modeStyles[s.Mode].Render("● " + strings.ToUpper(s.Mode.Label()))
	var flags []string
	if s.CursorPaused {
		flags = append(flags, "cursor paused")
	}
	if s.ClicksPaused {
		flags = append(flags, "clicks paused")
	}
	if s.Down[coordinator.PipelineEye] {
		flags = append(flags, "eye down")
	}
	if s.Down[coordinator.PipelineVoice] {
		flags = append(flags, "voice down")
	}
	if len(flags) > 0 {
		line += " " + warnStyle.Render(strings.Join(flags, ", "))
	}
	return line
}

func trackingLine(st sessionStatus) string {
	t := st.Tracker
	switch {
	case !st.HasEye:
		return dimStyle.Render("no landmark stream")
	case t.Frames == 0:
		return dimStyle.Render("waiting for frames")
	case t.TrackingLost:
		return errStyle.Render("tracking lost")
	case !t.Confident:
		return warnStyle.Render(fmt.Sprintf("low confidence, EAR %.2f", t.EAR))
	}
	return okStyle.Render("tracking") + dimStyle.Render(fmt.Sprintf(" EAR %.2f gaze %+.2f,%+.2f", t.EAR, t.Gaze.X, t.Gaze.Y))
}

// renderScreenMap draws the screen as a grid of half-block pixels: the
// border, the calibration targets, the raw gaze and the cursor.
func renderScreenMap(st sessionStatus, charsW, charsH, frame int) string {
	pixW, pixH := charsW, charsH*2
	pixels := make([][]int, pixH)
	for i := range pixels {
		pixels[i] = make([]int, pixW)
	}
	for x := 0; x < pixW; x++ {
		pixels[0][x] = cellBorder
		pixels[pixH-1][x] = cellBorder
	}
	for y := 0; y < pixH; y++ {
		pixels[y][0] = cellBorder
		pixels[y][pixW-1] = cellBorder
	}

	plot := func(nx, ny float64, cell int) {
		if math.IsNaN(nx) || math.IsNaN(ny) {
			return
		}
		x := int(math.Round(nx * float64(pixW-1)))
		y := int(math.Round(ny * float64(pixH-1)))
		if x < 0 || y < 0 || x >= pixW || y >= pixH {
			return
		}
		pixels[y][x] = cell
	}

	if st.Calibrating {
		for i := 0; i < calibration.NumPoints; i++ {
			n := calibration.GridNorm(i, st.Margin)
			cell := cellTarget
			switch {
			case i == st.CalPoint && frame%6 < 4:
				cell = cellActive
			case st.CalCounts[i] > 0:
				cell = cellDone
			}
			plot(n.X, n.Y, cell)
		}
	}
	if st.Tracker.Frames > 0 && st.Tracker.Confident {
		plot((st.Tracker.Gaze.X+1)/2, (st.Tracker.Gaze.Y+1)/2, cellGaze)
	}
	if st.Tracker.HasCursor && st.Screen.Width > 1 && st.Screen.Height > 1 {
		plot(st.Tracker.Cursor.X/float64(st.Screen.Width-1), st.Tracker.Cursor.Y/float64(st.Screen.Height-1), cellCursor)
	}

	var out strings.Builder
	for cy := 0; cy < charsH; cy++ {
		for cx := 0; cx < charsW; cx++ {
			top := pixels[cy*2][cx]
			bot := pixels[cy*2+1][cx]
			switch {
			case top == 0 && bot == 0:
				out.WriteString(" ")
			case top == bot:
				out.WriteString(cellStyles[top].Render("█"))
			case bot == 0:
				out.WriteString(cellStyles[top].Render("▀"))
			case top == 0:
				out.WriteString(cellStyles[bot].Render("▄"))
			default:
				out.WriteString(cellBg[top][bot].Render("▀"))
			}
		}
		out.WriteString("\n")
	}
	return out.String()
}

func renderStatsTable(s coordinator.Stats, frames int64) string {
	return fmt.Sprintf(
		"frames %8d   cursor %7d\n"+
			"clicks %8d   voice  %7d\n"+
			"muted  %8d   drops  %7d\n"+
			"faults %8d   unheard%7d",
		frames, s.Cursor,
		s.Clicks, s.Voice,
		s.Suppressed, s.Dropped,
		s.Faults, s.Unknown,
	)
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
