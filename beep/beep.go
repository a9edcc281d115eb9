// Package beep plays short audible cues when a session starts, ends or fails.
package beep

import (
	"math"
	"sync/atomic"
)

type Cue int

const (
	Start Cue = iota
	End
	Error
)

const sampleRate = 44100

type tone struct {
	freq     float64
	duration float64 // seconds per pulse
	volume   float64
	decay    float64
	pulses   int
	gap      float64
}

var tones = map[Cue]tone{
	Start: {freq: 1200, duration: 0.06, volume: 0.5, decay: 60, pulses: 1},
	End:   {freq: 900, duration: 0.08, volume: 0.5, decay: 40, pulses: 1},
	Error: {freq: 350, duration: 0.08, volume: 0.6, decay: 30, pulses: 2, gap: 0.05},
}

var disabled atomic.Bool

func Disable() { disabled.Store(true) }

// Play renders c and plays it without blocking. Playback failures are
// silent.
func Play(c Cue) {
	if disabled.Load() {
		return
	}
	samples := render(c)
	if len(samples) == 0 {
		return
	}
	go play(samples)
}

// render produces mono S16 samples for c.
func render(c Cue) []int16 {
	t, ok := tones[c]
	if !ok {
		return nil
	}
	n := int(sampleRate * t.duration)
	pulse := make([]int16, n)
	for i := range pulse {
		at := float64(i) / sampleRate
		env := math.Exp(-at * t.decay)
		pulse[i] = int16(math.Sin(2*math.Pi*t.freq*at) * 32767 * t.volume * env)
	}

	gap := make([]int16, int(sampleRate*t.gap))
	var out []int16
	for p := range t.pulses {
		if p > 0 {
			out = append(out, gap...)
		}
		out = append(out, pulse...)
	}
	return out
}
