package dsp

import "math"

const (
	DefaultMinPitchHz = 50.0
	DefaultMaxPitchHz = 500.0
	DefaultNoiseFloor = 0.1
)

// PitchDetector estimates the fundamental by autocorrelation. The lag search
// is bounded to [SampleRate/MaxHz, SampleRate/MinHz], so cost is
// O(len(buf) * lags) rather than O(len(buf)^2).
type PitchDetector struct {
	SampleRate float64
	MinHz      float64
	MaxHz      float64
	NoiseFloor float64
}

func NewPitchDetector(sampleRate float64) PitchDetector {
	return PitchDetector{
		SampleRate: sampleRate,
		MinHz:      DefaultMinPitchHz,
		MaxHz:      DefaultMaxPitchHz,
		NoiseFloor: DefaultNoiseFloor,
	}
}

// Detect returns the pitch in Hz, or 0 when no lag correlates above the
// noise floor.
func (p PitchDetector) Detect(buf []float64) float64 {
	if p.SampleRate <= 0 || p.MaxHz <= 0 || p.MinHz <= 0 || len(buf) < 2 {
		return 0
	}
	minLag := max(1, int(math.Ceil(p.SampleRate/p.MaxHz)))
	maxLag := min(len(buf)-1, int(math.Floor(p.SampleRate/p.MinHz)))

	bestLag, bestCorr := 0, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var corr float64
		for i := 0; i < len(buf)-lag; i++ {
			corr += buf[i] * buf[i+lag]
		}
		if corr > bestCorr {
			bestLag, bestCorr = lag, corr
		}
	}
	if bestLag == 0 || bestCorr <= p.NoiseFloor {
		return 0
	}
	return p.SampleRate / float64(bestLag)
}

// Energy is the mean squared amplitude.
func Energy(buf []float64) float64 {
	if len(buf) == 0 {
		return 0
	}
	var sum float64
	for _, s := range buf {
		sum += s * s
	}
	return sum / float64(len(buf))
}

// Volume is the mean byte frequency magnitude scaled to [0, 1].
func Volume(bins []byte) float64 {
	if len(bins) == 0 {
		return 0
	}
	var sum float64
	for _, b := range bins {
		sum += float64(b)
	}
	return sum / float64(len(bins)) / 255
}

// RMS of the buffer, used for level meters.
func RMS(buf []float64) float64 { return math.Sqrt(Energy(buf)) }
