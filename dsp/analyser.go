// Package dsp implements the per-tick signal measurements of the voice
// engine: an analyser node modelled on the Web Audio AnalyserNode, bounded
// autocorrelation pitch estimation, energy and volume.
package dsp

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/cmplx"
	"sync"
)

const (
	DefaultFFTSize   = 2048
	MinDecibels      = -100.0
	MaxDecibels      = -30.0
	DefaultSmoothing = 0.8
)

// Analyser keeps the most recent FFTSize samples and exposes them as
// time-domain floats and smoothed byte-scaled frequency magnitudes.
type Analyser struct {
	fftSize   int
	smoothing float64
	window    []float64

	mu       sync.Mutex
	ring     []float64
	pos      int
	smoothed []float64
	scratch  []complex128
}

func NewAnalyser(fftSize int) (*Analyser, error) {
	if fftSize < 32 || fftSize > 32768 || !isPowerOfTwo(fftSize) {
		return nil, fmt.Errorf("fft size %d: must be a power of two in [32, 32768]", fftSize)
	}
	return &Analyser{
		fftSize:   fftSize,
		smoothing: DefaultSmoothing,
		window:    blackman(fftSize),
		ring:      make([]float64, fftSize),
		smoothed:  make([]float64, fftSize/2),
		scratch:   make([]complex128, fftSize),
	}, nil
}

func (a *Analyser) FFTSize() int { return a.fftSize }

func (a *Analyser) FrequencyBinCount() int { return a.fftSize / 2 }

// Write appends samples in [-1, 1].
func (a *Analyser) Write(samples []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range samples {
		a.ring[a.pos] = s
		a.pos = (a.pos + 1) % a.fftSize
	}
}

// block copies the current FFTSize window, oldest first. Caller holds mu.
func (a *Analyser) block(dst []float64) {
	n := copy(dst, a.ring[a.pos:])
	copy(dst[n:], a.ring[:a.pos])
}

// FloatTimeDomainData fills dst with the start of the current block.
func (a *Analyser) FloatTimeDomainData(dst []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf := make([]float64, a.fftSize)
	a.block(buf)
	copy(dst, buf)
}

// ByteFrequencyData fills dst with magnitudes mapped from
// [MinDecibels, MaxDecibels] to [0, 255], smoothed across calls.
func (a *Analyser) ByteFrequencyData(dst []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf := make([]float64, a.fftSize)
	a.block(buf)
	for i, s := range buf {
		a.scratch[i] = complex(s*a.window[i], 0)
	}
	fft(a.scratch)

	bins := min(len(dst), len(a.smoothed))
	for k := 0; k < len(a.smoothed); k++ {
		mag := cmplx.Abs(a.scratch[k]) / float64(a.fftSize)
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag
	}
	for k := 0; k < bins; k++ {
		dst[k] = toByte(a.smoothed[k])
	}
}

func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.ring)
	clear(a.smoothed)
	a.pos = 0
}

func toByte(mag float64) byte {
	if mag <= 0 {
		return 0
	}
	db := 20 * math.Log10(mag)
	scaled := 255 * (db - MinDecibels) / (MaxDecibels - MinDecibels)
	switch {
	case scaled <= 0:
		return 0
	case scaled >= 255:
		return 255
	}
	return byte(scaled)
}

// FromS16LE converts little-endian 16-bit PCM to floats in [-1, 1).
func FromS16LE(data []byte) []float64 {
	out := make([]float64, len(data)/2)
	for i := range out {
		out[i] = float64(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768.0
	}
	return out
}
