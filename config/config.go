// Package config loads the YAML configuration and rejects out-of-range
// values before anything reaches the pipelines.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"blinkos/automation"
	"blinkos/blink"
	"blinkos/calibration"
	"blinkos/coordinator"
	"blinkos/eyestate"
	"blinkos/hotkey"
	"blinkos/tracker"
	"blinkos/voice"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Duration reads and writes Go duration strings such as "250ms".
type Duration time.Duration

func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = Duration(v)
	return nil
}

type Config struct {
	Screen      Screen      `yaml:"screen"`
	Smoothing   Smoothing   `yaml:"smoothing"`
	Eye         Eye         `yaml:"eye"`
	Blink       Blink       `yaml:"blink"`
	Calibration Calibration `yaml:"calibration"`
	Voice       Voice       `yaml:"voice"`
	Mode        Mode        `yaml:"mode"`
	Automation  Automation  `yaml:"automation"`
	Hotkey      Hotkey      `yaml:"hotkey"`
	Feedback    Feedback    `yaml:"feedback"`
	Store       Store       `yaml:"store"`
}

type Screen struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type Smoothing struct {
	Window int `yaml:"window"`
}

type Eye struct {
	MinEyeWidth    float64  `yaml:"min_eye_width"`
	MinGazeEAR     float64  `yaml:"min_gaze_ear"`
	RecoveryWindow Duration `yaml:"recovery_window"`
}

type Blink struct {
	EARThreshold   float64  `yaml:"ear_threshold"`
	MinDwell       Duration `yaml:"min_dwell"`
	IntentionalMin Duration `yaml:"intentional_min"`
	IntentionalMax Duration `yaml:"intentional_max"`
	Refractory     Duration `yaml:"refractory"`
}

type Calibration struct {
	SamplesPerPoint int     `yaml:"samples_per_point"`
	GridMargin      float64 `yaml:"grid_margin"`
	MaxCondition    float64 `yaml:"max_condition"`
}

type Voice struct {
	ConfidenceThreshold float64  `yaml:"confidence_threshold"`
	PendingSegments     int      `yaml:"pending_segments"`
	RecognizeTimeout    Duration `yaml:"recognize_timeout"`
	// RecognizerCmd is a local speech-to-text command that reads a WAV
	// segment on stdin and prints the transcript.
	RecognizerCmd string `yaml:"recognizer_cmd"`
}

type Mode struct {
	Startup string `yaml:"startup"`
}

type Automation struct {
	Backend   string `yaml:"backend"`
	PasteText bool   `yaml:"paste_text"`
}

type Hotkey struct {
	Combo     string   `yaml:"combo"`
	LongPress Duration `yaml:"long_press"`
}

// Feedback controls the audible cues.
type Feedback struct {
	Sounds bool `yaml:"sounds"`
}

type Store struct {
	Dir string `yaml:"dir"`
}

func Default() *Config {
	eye := eyestate.DefaultConfig()
	bl := blink.DefaultConfig()
	cal := calibration.DefaultConfig()
	return &Config{
		Screen:    Screen{Width: cal.ScreenW, Height: cal.ScreenH},
		Smoothing: Smoothing{Window: 5},
		Eye: Eye{
			MinEyeWidth:    eye.MinEyeWidth,
			MinGazeEAR:     eye.MinGazeEAR,
			RecoveryWindow: Duration(eye.RecoveryWindow),
		},
		Blink: Blink{
			EARThreshold:   bl.Threshold,
			MinDwell:       Duration(bl.MinDwell),
			IntentionalMin: Duration(bl.IntentionalMin),
			IntentionalMax: Duration(bl.IntentionalMax),
			Refractory:     Duration(bl.Refractory),
		},
		Calibration: Calibration{
			SamplesPerPoint: cal.SamplesPerPoint,
			GridMargin:      cal.GridMargin,
			MaxCondition:    cal.MaxCondition,
		},
		Voice: Voice{
			ConfidenceThreshold: 0.5,
			PendingSegments:     1,
			RecognizeTimeout:    Duration(15 * time.Second),
		},
		Mode:       Mode{Startup: coordinator.Hybrid.String()},
		Automation: Automation{Backend: "auto", PasteText: true},
		Hotkey:     Hotkey{Combo: "ctrl+shift+space", LongPress: Duration(400 * time.Millisecond)},
	}
}

// Dir is the per-user configuration directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "blinkos"), nil
}

func DefaultPath() (string, error) {
	d, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "config.yaml"), nil
}

// Load reads path over the defaults and validates the result. With an empty
// path the default location is used and a missing file means defaults.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("locating config: %w", err)
		}
		path = p
	}
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Encode writes the configuration as YAML.
func (c *Config) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

// ParseScreen reads "WIDTHxHEIGHT".
func ParseScreen(s string) (Screen, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Screen{}, fmt.Errorf("%w: screen %q, want WIDTHxHEIGHT", ErrInvalid, s)
	}
	w, err1 := strconv.Atoi(ws)
	h, err2 := strconv.Atoi(hs)
	if err1 != nil || err2 != nil {
		return Screen{}, fmt.Errorf("%w: screen %q, want WIDTHxHEIGHT", ErrInvalid, s)
	}
	return Screen{Width: w, Height: h}, nil
}

type checker struct {
	errs []error
}

func (c *checker) fail(field, format string, args ...any) {
	c.errs = append(c.errs, fmt.Errorf("%w: %s %s", ErrInvalid, field, fmt.Sprintf(format, args...)))
}

func (c *checker) intRange(field string, v, lo, hi int) {
	if v < lo || v > hi {
		c.fail(field, "%d outside [%d, %d]", v, lo, hi)
	}
}

func (c *checker) floatRange(field string, v, lo, hi float64) {
	if !(v >= lo && v <= hi) {
		c.fail(field, "%v outside [%v, %v]", v, lo, hi)
	}
}

func (c *checker) durRange(field string, v Duration, lo, hi time.Duration) {
	if v.D() < lo || v.D() > hi {
		c.fail(field, "%v outside [%v, %v]", v.D(), lo, hi)
	}
}

// Validate reports every out-of-range field at once.
func (c *Config) Validate() error {
	var ck checker
	ck.intRange("screen.width", c.Screen.Width, 320, 16384)
	ck.intRange("screen.height", c.Screen.Height, 240, 16384)
	ck.intRange("smoothing.window", c.Smoothing.Window, 1, 30)

	ck.floatRange("eye.min_eye_width", c.Eye.MinEyeWidth, 0.001, 0.2)
	ck.floatRange("eye.min_gaze_ear", c.Eye.MinGazeEAR, 0, 0.3)
	ck.durRange("eye.recovery_window", c.Eye.RecoveryWindow, 100*time.Millisecond, 10*time.Second)

	ck.floatRange("blink.ear_threshold", c.Blink.EARThreshold, 0.05, 0.45)
	ck.durRange("blink.min_dwell", c.Blink.MinDwell, 0, 200*time.Millisecond)
	ck.durRange("blink.intentional_min", c.Blink.IntentionalMin, 50*time.Millisecond, 2*time.Second)
	ck.durRange("blink.intentional_max", c.Blink.IntentionalMax, 50*time.Millisecond, 5*time.Second)
	if c.Blink.MinDwell >= c.Blink.IntentionalMin {
		ck.fail("blink.min_dwell", "%v must be below intentional_min %v",
			c.Blink.MinDwell.D(), c.Blink.IntentionalMin.D())
	}
	if c.Blink.IntentionalMax <= c.Blink.IntentionalMin {
		ck.fail("blink.intentional_max", "%v must exceed intentional_min %v",
			c.Blink.IntentionalMax.D(), c.Blink.IntentionalMin.D())
	}
	ck.durRange("blink.refractory", c.Blink.Refractory, 0, 5*time.Second)

	ck.intRange("calibration.samples_per_point", c.Calibration.SamplesPerPoint, 1, 30)
	ck.floatRange("calibration.grid_margin", c.Calibration.GridMargin, 0, 0.25)
	ck.floatRange("calibration.max_condition", c.Calibration.MaxCondition, 1e2, 1e12)

	ck.floatRange("voice.confidence_threshold", c.Voice.ConfidenceThreshold, 0, 1)
	ck.intRange("voice.pending_segments", c.Voice.PendingSegments, 0, 8)
	ck.durRange("voice.recognize_timeout", c.Voice.RecognizeTimeout, 0, time.Minute)

	if _, err := coordinator.ParseMode(c.Mode.Startup); err != nil || c.Mode.Startup == "" {
		ck.fail("mode.startup", "%q, want eye, voice or hybrid", c.Mode.Startup)
	}
	switch c.Automation.Backend {
	case "auto", "uinput", "keybd", "none":
	default:
		ck.fail("automation.backend", "%q, want auto, uinput, keybd or none", c.Automation.Backend)
	}
	if _, err := hotkey.ParseCombo(c.Hotkey.Combo); err != nil {
		ck.fail("hotkey.combo", "%v", err)
	}
	ck.durRange("hotkey.long_press", c.Hotkey.LongPress, 100*time.Millisecond, 3*time.Second)
	return errors.Join(ck.errs...)
}

func (c *Config) EyeState() eyestate.Config {
	return eyestate.Config{
		MinEyeWidth:    c.Eye.MinEyeWidth,
		MinGazeEAR:     c.Eye.MinGazeEAR,
		RecoveryWindow: c.Eye.RecoveryWindow.D(),
	}
}

func (c *Config) BlinkConfig() blink.Config {
	return blink.Config{
		Threshold:      c.Blink.EARThreshold,
		MinDwell:       c.Blink.MinDwell.D(),
		IntentionalMin: c.Blink.IntentionalMin.D(),
		IntentionalMax: c.Blink.IntentionalMax.D(),
		Refractory:     c.Blink.Refractory.D(),
	}
}

func (c *Config) TrackerConfig() tracker.Config {
	return tracker.Config{
		Eye:            c.EyeState(),
		Blink:          c.BlinkConfig(),
		Window:         c.Smoothing.Window,
		CaptureSamples: c.Calibration.SamplesPerPoint,
	}
}

func (c *Config) CalibrationConfig() calibration.Config {
	return calibration.Config{
		ScreenW:         c.Screen.Width,
		ScreenH:         c.Screen.Height,
		SamplesPerPoint: c.Calibration.SamplesPerPoint,
		GridMargin:      c.Calibration.GridMargin,
		MaxCondition:    c.Calibration.MaxCondition,
	}
}

func (c *Config) CoordinatorConfig() coordinator.Config {
	m, _ := coordinator.ParseMode(c.Mode.Startup)
	cc := coordinator.DefaultConfig()
	cc.Mode = m
	cc.MinConfidence = c.Voice.ConfidenceThreshold
	return cc
}

func (c *Config) PipelineConfig() voice.PipelineConfig {
	return voice.PipelineConfig{
		Pending: c.Voice.PendingSegments,
		Timeout: c.Voice.RecognizeTimeout.D(),
	}
}

func (c *Config) AutomationConfig() automation.Config {
	return automation.Config{
		Backend:   c.Automation.Backend,
		PasteText: c.Automation.PasteText,
		ScreenW:   c.Screen.Width,
		ScreenH:   c.Screen.Height,
	}
}

// StoreDir is the configured store directory or the default under the
// user config dir.
func (c *Config) StoreDir() (string, error) {
	if c.Store.Dir != "" {
		return c.Store.Dir, nil
	}
	d, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "store"), nil
}
