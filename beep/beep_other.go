//go:build !linux

package beep

import (
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

var playMu sync.Mutex

func playTone(t Tone) {
	playMu.Lock()
	defer playMu.Unlock()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}
	defer func() {
		ctx.Uninit()
		ctx.Free()
	}()

	samples := Samples(t, sampleRate, 1)
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		pcm[i*2] = byte(s)
		pcm[i*2+1] = byte(s >> 8)
	}

	var mu sync.Mutex
	pos := 0
	done := make(chan struct{})
	var once sync.Once

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	device, err := malgo.InitDevice(ctx.Context, config, malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frameCount uint32) {
			mu.Lock()
			defer mu.Unlock()
			n := copy(out, pcm[pos:])
			pos += n
			clear(out[n:])
			if pos >= len(pcm) {
				once.Do(func() { close(done) })
			}
		},
	})
	if err != nil {
		return
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return
	}
	select {
	case <-done:
		// let the device drain its last period
		time.Sleep(50 * time.Millisecond)
	case <-time.After(2 * time.Second):
	}
	device.Stop()
}
