//go:build !linux

package beep

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

var playMu sync.Mutex

// play opens a playback device for the length of one cue.
func play(samples []int16) {
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

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = sampleRate

	done := make(chan struct{})
	var once sync.Once
	pos := 0
	onData := func(out, _ []byte, frames uint32) {
		for i := 0; i < int(frames); i++ {
			var s int16
			if pos < len(samples) {
				s = samples[pos]
				pos++
			}
			binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
		}
		if pos >= len(samples) {
			once.Do(func() { close(done) })
		}
	}

	dev, err := malgo.InitDevice(ctx.Context, cfg, malgo.DeviceCallbacks{Data: onData})
	if err != nil {
		return
	}
	defer dev.Uninit()
	if err := dev.Start(); err != nil {
		return
	}

	timeout := time.Duration(len(samples))*time.Second/sampleRate + 500*time.Millisecond
	select {
	case <-done:
	case <-time.After(timeout):
	}
	dev.Stop()
}
