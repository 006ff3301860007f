//go:build darwin

package beep

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

var (
	malgoCtx  *malgo.AllocatedContext
	device    *malgo.Device
	pcm       [len(tones)][]byte
	soundOnce sync.Once

	// read from the device callback
	playing atomic.Pointer[[]byte]
	playPos atomic.Uint32
	playMu  sync.Mutex
)

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, malgo.DeviceCallbacks{Data: dataCallback})
	return err
}

func initSound() {
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}
	for i, t := range tones {
		mono := t.samples(0)
		b := make([]byte, 2*len(mono))
		for j, v := range mono {
			b[j*2] = byte(v)
			b[j*2+1] = byte(v >> 8)
		}
		pcm[i] = b
	}
	if err := initDevice(); err != nil {
		malgoCtx.Uninit()
		malgoCtx = nil
	}
}

func dataCallback(out, _ []byte, frameCount uint32) {
	want := frameCount * 2
	samples := playing.Load()
	var n uint32
	if samples != nil {
		pos := playPos.Load()
		n = min(want, uint32(len(*samples))-pos)
		copy(out[:n], (*samples)[pos:pos+n])
		playPos.Store(pos + n)
		if n == 0 {
			playing.Store(nil)
		}
	}
	clear(out[n:want])
}

func play(c Cue) {
	soundOnce.Do(initSound)
	go playBytes(pcm[c])
}

func playBytes(samples []byte) {
	if malgoCtx == nil || len(samples) == 0 {
		return
	}
	playMu.Lock()
	defer playMu.Unlock()
	if device == nil {
		return
	}

	device.Stop()
	playPos.Store(0)
	playing.Store(&samples)

	if err := device.Start(); err != nil {
		// recreate after sleep/wake
		device.Uninit()
		if err := initDevice(); err != nil {
			playing.Store(nil)
			return
		}
		if err := device.Start(); err != nil {
			playing.Store(nil)
		}
	}
}
