package dsp

import (
	"encoding/binary"
	"math"
	"math/cmplx"
	"testing"
)

const testRate = 44100

func sine(freq, amp float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/testRate)
	}
	return out
}

func TestPitchDetectsSine(t *testing.T) {
	pd := NewPitchDetector(testRate)
	for _, freq := range []float64{120, 200, 330} {
		got := pd.Detect(sine(freq, 0.5, 1024))
		if math.Abs(got-freq) > freq*0.03 {
			t.Errorf("pitch(%v Hz) = %.1f", freq, got)
		}
	}
}

func TestPitchBelowNoiseFloor(t *testing.T) {
	pd := NewPitchDetector(testRate)
	if got := pd.Detect(make([]float64, 1024)); got != 0 {
		t.Errorf("silence pitch = %v, want 0", got)
	}
	if got := pd.Detect(sine(200, 0.001, 1024)); got != 0 {
		t.Errorf("faint tone pitch = %v, want 0 below noise floor", got)
	}
}

func TestPitchLagWindowClampedToBuffer(t *testing.T) {
	pd := PitchDetector{SampleRate: testRate, MinHz: 1, MaxHz: 500, NoiseFloor: 0.1}
	// Max lag would be 44100; it must clamp to len(buf)-1 instead of panicking.
	_ = pd.Detect(sine(200, 0.5, 256))
}

func TestEnergyAndVolume(t *testing.T) {
	if got := Energy([]float64{1, -1, 1, -1}); got != 1 {
		t.Errorf("energy = %v, want 1", got)
	}
	if got := Energy(nil); got != 0 {
		t.Errorf("energy(nil) = %v", got)
	}
	if got := Volume([]byte{255, 255, 0, 0}); got != 0.5 {
		t.Errorf("volume = %v, want 0.5", got)
	}
	e := Energy(sine(200, 0.5, 44100))
	if math.Abs(e-0.125) > 1e-3 {
		t.Errorf("sine energy = %v, want ~0.125", e)
	}
}

func TestNewAnalyserRejectsBadSizes(t *testing.T) {
	for _, n := range []int{0, 16, 1000, 65536} {
		if _, err := NewAnalyser(n); err == nil {
			t.Errorf("NewAnalyser(%d) should fail", n)
		}
	}
	a, err := NewAnalyser(DefaultFFTSize)
	if err != nil {
		t.Fatal(err)
	}
	if a.FrequencyBinCount() != 1024 {
		t.Errorf("bins = %d, want 1024", a.FrequencyBinCount())
	}
}

func TestAnalyserTimeDomainIsLatestWindow(t *testing.T) {
	a, _ := NewAnalyser(2048)
	ramp := make([]float64, 3000)
	for i := range ramp {
		ramp[i] = float64(i)
	}
	a.Write(ramp[:1000])
	a.Write(ramp[1000:])

	buf := make([]float64, 1024)
	a.FloatTimeDomainData(buf)
	if buf[0] != 952 || buf[1023] != 1975 {
		t.Errorf("window = [%v..%v], want [952..1975]", buf[0], buf[1023])
	}
}

func TestAnalyserFrequencyData(t *testing.T) {
	a, _ := NewAnalyser(2048)
	bins := make([]byte, a.FrequencyBinCount())

	a.ByteFrequencyData(bins)
	if v := Volume(bins); v != 0 {
		t.Errorf("silent volume = %v, want 0", v)
	}

	a.Write(sine(1000, 0.5, 2048))
	a.ByteFrequencyData(bins)
	peak := int(math.Round(1000.0 * 2048 / testRate))
	if bins[peak] == 0 {
		t.Errorf("no energy at bin %d", peak)
	}
	if v := Volume(bins); v <= 0 {
		t.Errorf("tone volume = %v, want > 0", v)
	}

	a.Reset()
	a.ByteFrequencyData(bins)
	if v := Volume(bins); v != 0 {
		t.Errorf("volume after reset = %v", v)
	}
}

func TestFFTMatchesDFT(t *testing.T) {
	in := []float64{1, 2, 0, -1, 3, 0.5, -2, 1}
	x := make([]complex128, len(in))
	for i, v := range in {
		x[i] = complex(v, 0)
	}
	fft(x)
	for k := range in {
		var want complex128
		for n, v := range in {
			angle := -2 * math.Pi * float64(k*n) / float64(len(in))
			want += complex(v, 0) * cmplx.Exp(complex(0, angle))
		}
		if cmplx.Abs(x[k]-want) > 1e-9 {
			t.Errorf("bin %d = %v, want %v", k, x[k], want)
		}
	}
}

func TestFromS16LE(t *testing.T) {
	data := make([]byte, 6)
	binary.LittleEndian.PutUint16(data[0:], uint16(0))
	binary.LittleEndian.PutUint16(data[2:], uint16(16384))
	v := int16(-32768)
	binary.LittleEndian.PutUint16(data[4:], uint16(v))
	got := FromS16LE(data)
	want := []float64{0, 0.5, -1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}
