package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const fakeFrameSize = 1024

// FakeContext replays fixed PCM as if it came from a microphone. It backs
// the -wav flag and the engine tests.
type FakeContext struct {
	pcm      []byte
	realtime bool
	loop     bool
	err      error

	mu       sync.Mutex
	captures []*FakeCapture
}

// NewFakeContext loads 16-bit mono PCM from a WAV file.
func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	if len(data) > WAVHeaderSize {
		data = data[WAVHeaderSize:]
	}
	return &FakeContext{pcm: data, realtime: realtime}, nil
}

// NewToneContext synthesises a looping sine at freq Hz.
func NewToneContext(freq, amplitude float64, sampleRate int, realtime bool) *FakeContext {
	return &FakeContext{pcm: Tone(freq, amplitude, sampleRate, sampleRate), realtime: realtime, loop: true}
}

// NewDeniedContext refuses every capture with err, or ErrDenied when nil.
func NewDeniedContext(err error) *FakeContext {
	if err == nil {
		err = ErrDenied
	}
	return &FakeContext{err: err}
}

// Tone renders n samples of a sine as S16LE PCM.
func Tone(freq, amplitude float64, sampleRate, n int) []byte {
	out := make([]byte, n*BytesPerSample)
	for i := 0; i < n; i++ {
		v := amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v*32767)))
	}
	return out
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	if f.err != nil {
		return nil, fmt.Errorf("fake capture: %w", f.err)
	}
	rate := config.SampleRate
	if rate == 0 {
		rate = DefaultRate
	}
	c := &FakeCapture{
		pcm:       f.pcm,
		realtime:  f.realtime,
		loop:      f.loop,
		rate:      rate,
		audioDone: make(chan struct{}),
	}
	f.mu.Lock()
	f.captures = append(f.captures, c)
	f.mu.Unlock()
	return c, nil
}

// Captures returns every device handed out so far.
func (f *FakeContext) Captures() []*FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeCapture(nil), f.captures...)
}

type FakeCapture struct {
	pcm       []byte
	realtime  bool
	loop      bool
	rate      uint32
	audioDone chan struct{}
	doneOnce  sync.Once

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}

	starts atomic.Int32
	closed atomic.Bool
}

// AudioDone closes once the PCM has been fed through (never when looping).
func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

// Closed reports whether Close was called.
func (f *FakeCapture) Closed() bool { return f.closed.Load() }

// Starts counts Start calls that actually began feeding.
func (f *FakeCapture) Starts() int { return int(f.starts.Load()) }

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed.Load() {
		return fmt.Errorf("fake capture: closed")
	}
	if f.stopCh != nil {
		select {
		case <-f.stopCh:
		default:
			return nil
		}
	}
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	f.starts.Add(1)

	interval := time.Millisecond
	if f.realtime {
		interval = time.Duration(fakeFrameSize) * time.Second / time.Duration(f.rate)
	}
	go f.feed(f.stopCh, f.feedDone, interval)
	return nil
}

func (f *FakeCapture) feed(stop <-chan struct{}, done chan<- struct{}, interval time.Duration) {
	defer close(done)
	chunkBytes := fakeFrameSize * BytesPerSample
	silence := make([]byte, chunkBytes)
	pos := 0
	for {
		select {
		case <-stop:
			return
		case <-time.After(interval):
		}
		cb := f.callback()
		if cb == nil {
			continue
		}
		if pos >= len(f.pcm) {
			if f.loop && len(f.pcm) > 0 {
				pos = 0
			} else {
				f.doneOnce.Do(func() { close(f.audioDone) })
				cb(silence, fakeFrameSize)
				continue
			}
		}
		end := min(pos+chunkBytes, len(f.pcm))
		chunk := make([]byte, end-pos)
		copy(chunk, f.pcm[pos:end])
		cb(chunk, uint32(len(chunk)/BytesPerSample))
		pos = end
	}
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	if f.stopCh == nil {
		f.mu.Unlock()
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	done := f.feedDone
	f.mu.Unlock()
	<-done
}

func (f *FakeCapture) Close() {
	f.Stop()
	f.closed.Store(true)
}
