package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ExecRecognizer runs a local speech-to-text command per segment, writing
// the WAV segment to its stdin and reading the transcript from stdout.
type ExecRecognizer struct {
	argv []string
}

func NewExecRecognizer(command string) (*ExecRecognizer, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, errors.New("recognizer command is empty")
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMicrophoneFault, err)
	}
	return &ExecRecognizer{argv: argv}, nil
}

func (r *ExecRecognizer) Name() string { return r.argv[0] }

func (r *ExecRecognizer) Recognize(ctx context.Context, seg Segment) (Utterance, error) {
	cmd := exec.CommandContext(ctx, r.argv[0], r.argv[1:]...)
	cmd.Stdin = bytes.NewReader(seg.Audio)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return Utterance{}, fmt.Errorf("%s: %w: %s", r.argv[0], err, msg)
		}
		return Utterance{}, fmt.Errorf("%s: %w", r.argv[0], err)
	}
	text := strings.TrimSpace(string(out))
	if text == "" {
		return Utterance{}, ErrNoSpeech
	}
	return Utterance{Text: text, Confidence: 1, At: seg.At}, nil
}
