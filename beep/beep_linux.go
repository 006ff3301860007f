//go:build linux

package beep

import (
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"blinkos/log"
)

// One PulseAudio connection is shared by all cues; mu keeps cues from
// overlapping on it.
var (
	rendered [len(tones)][]int16
	mu       sync.Mutex
	client   *pulse.Client
	initOnce sync.Once
	initErr  error
)

func setup() {
	for i, t := range tones {
		// the tail keeps the server from clipping the end of a short cue
		rendered[i] = t.samples(0.15)
	}
	client, initErr = pulse.NewClient(pulse.ClientApplicationName("blinkos"))
	if initErr != nil {
		log.Warnf("sound cues disabled: %v", initErr)
	}
}

func play(c Cue) {
	initOnce.Do(setup)
	if initErr != nil {
		return
	}
	go func() {
		mu.Lock()
		defer mu.Unlock()
		if err := playMono(rendered[c]); err != nil {
			log.Warnf("sound cue: %v", err)
		}
	}()
}

func playMono(samples []int16) error {
	off := 0
	src := pulse.Int16Reader(func(buf []int16) (int, error) {
		if off == len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[off:])
		off += n
		return n, nil
	})
	stream, err := client.NewPlayback(src,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		return err
	}
	defer stream.Close()
	stream.Start()
	stream.Drain()
	stream.Stop()
	return stream.Error()
}
