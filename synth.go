package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"

	"blinkos/landmark"
)

const (
	synthOpenEAR   = 0.3
	synthClosedEAR = 0.08
)

// synthesizer turns a line script into a msgpack landmark stream. Commands:
//
//	GAZE x y   move the irises, both axes in [-1, 1]
//	EAR v      set the open-eye aspect ratio
//	HOLD ms    emit open-eye frames
//	BLINK ms   emit closed-eye frames, then one open frame
//	GAP        emit a "no face" marker
//	SLEEP ms   advance the clock without emitting
//	QUIT       stop
type synthesizer struct {
	enc   *msgpack.Encoder
	now   time.Time
	step  time.Duration
	pace  func(time.Duration)
	gx    float64
	gy    float64
	ear   float64
	count int
}

func newSynthesizer(w io.Writer, start time.Time, fps int, pace func(time.Duration)) *synthesizer {
	if pace == nil {
		pace = func(time.Duration) {}
	}
	return &synthesizer{
		enc:  msgpack.NewEncoder(w),
		now:  start,
		step: time.Second / time.Duration(fps),
		pace: pace,
		ear:  synthOpenEAR,
	}
}

func (s *synthesizer) frames(d time.Duration, ear float64) error {
	n := max(int(d/s.step), 1)
	for range n {
		if err := landmark.EncodeFrame(s.enc, landmark.SyntheticFace(s.now, ear, s.gx, s.gy)); err != nil {
			return err
		}
		s.count++
		s.now = s.now.Add(s.step)
		s.pace(s.step)
	}
	return nil
}

func millis(args []string) (time.Duration, error) {
	if len(args) != 1 {
		return 0, errors.New("want one duration in ms")
	}
	ms, err := strconv.Atoi(args[0])
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("bad duration %q", args[0])
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func floats(args []string, n int) ([]float64, error) {
	if len(args) != n {
		return nil, fmt.Errorf("want %d numbers", n)
	}
	out := make([]float64, n)
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", a)
		}
		out[i] = v
	}
	return out, nil
}

// exec runs one script line. It reports done on QUIT.
func (s *synthesizer) exec(line string) (done bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return false, nil
	}
	cmd, args := strings.ToUpper(fields[0]), fields[1:]
	switch cmd {
	case "GAZE":
		v, err := floats(args, 2)
		if err != nil {
			return false, err
		}
		s.gx, s.gy = clampUnit(v[0]), clampUnit(v[1])
	case "EAR":
		v, err := floats(args, 1)
		if err != nil {
			return false, err
		}
		s.ear = v[0]
	case "HOLD":
		d, err := millis(args)
		if err != nil {
			return false, err
		}
		return false, s.frames(d, s.ear)
	case "BLINK":
		d, err := millis(args)
		if err != nil {
			return false, err
		}
		if err := s.frames(d, synthClosedEAR); err != nil {
			return false, err
		}
		return false, s.frames(s.step, s.ear)
	case "GAP":
		if err := landmark.EncodeGap(s.enc, s.now); err != nil {
			return false, err
		}
		s.now = s.now.Add(s.step)
		s.pace(s.step)
	case "SLEEP":
		d, err := millis(args)
		if err != nil {
			return false, err
		}
		s.now = s.now.Add(d)
		s.pace(d)
	case "QUIT":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q", fields[0])
	}
	return false, nil
}

// run executes a whole script. Errors carry the script line number.
func (s *synthesizer) run(r io.Reader) error {
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		done, err := s.exec(sc.Text())
		if err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		if done {
			return nil
		}
	}
	return sc.Err()
}

func clampUnit(v float64) float64 {
	return min(max(v, -1), 1)
}

func newSynthCmd() *cobra.Command {
	var fps int
	var fast bool
	cmd := &cobra.Command{
		Use:   "synth [script|-]",
		Short: "Generate a synthetic msgpack landmark stream from a gaze/blink script",
		Long: `synth writes landmark frames to stdout for exercising 'blinkos run'
without a camera. The script (default stdin) holds one command per line:

  GAZE x y   BLINK ms   HOLD ms   EAR v   GAP   SLEEP ms   QUIT

Example:
  printf 'GAZE 0.5 -0.2\nHOLD 500\nBLINK 400\nHOLD 1000\n' | blinkos synth | blinkos run --landmarks -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if fps < 1 || fps > 240 {
				return fmt.Errorf("--fps must be in 1..240")
			}
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			w := bufio.NewWriter(cmd.OutOrStdout())
			var pace func(time.Duration)
			if !fast {
				pace = func(d time.Duration) {
					w.Flush()
					time.Sleep(d)
				}
			}
			s := newSynthesizer(w, time.Now(), fps, pace)
			if err := s.run(in); err != nil {
				return err
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&fps, "fps", 30, "frame rate")
	cmd.Flags().BoolVar(&fast, "fast", false, "emit frames without waiting in real time")
	return cmd
}
