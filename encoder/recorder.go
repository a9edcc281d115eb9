package encoder

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
)

// Recorder accumulates raw S16LE PCM and encodes it in BlockSize blocks.
// Write is safe to call from a capture callback.
type Recorder struct {
	mu      sync.Mutex
	enc     Encoder
	pending []int16
	odd     []byte
	err     error
	closed  bool
}

func NewRecorder(sampleRate uint32) (*Recorder, error) {
	enc, err := NewFlac(sampleRate)
	if err != nil {
		return nil, err
	}
	return &Recorder{enc: enc}, nil
}

// Write appends little-endian 16-bit PCM. The first encode error sticks and
// is reported by Close.
func (r *Recorder) Write(pcm []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.err != nil {
		return
	}
	if len(r.odd) > 0 {
		pcm = append(r.odd, pcm...)
		r.odd = nil
	}
	n := len(pcm) / 2
	for i := 0; i < n; i++ {
		r.pending = append(r.pending, int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	if len(pcm)%2 == 1 {
		r.odd = []byte{pcm[len(pcm)-1]}
	}
	for len(r.pending) >= BlockSize {
		if err := r.enc.EncodeBlock(r.pending[:BlockSize]); err != nil {
			r.err = err
			return
		}
		r.pending = r.pending[BlockSize:]
	}
}

// Close flushes the tail block and finalizes the stream. It is idempotent.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.err
	}
	r.closed = true
	if r.err == nil && len(r.pending) > 0 {
		r.err = r.enc.EncodeBlock(r.pending)
		r.pending = nil
	}
	if err := r.enc.Close(); err != nil && r.err == nil {
		r.err = err
	}
	return r.err
}

func (r *Recorder) Bytes() []byte { return r.enc.Bytes() }

func (r *Recorder) Frames() uint64 { return r.enc.TotalFrames() }

// Save closes the recorder and writes the FLAC stream to path.
func (r *Recorder) Save(path string) error {
	if err := r.Close(); err != nil {
		return fmt.Errorf("finalizing recording: %w", err)
	}
	return os.WriteFile(path, r.Bytes(), 0o644)
}
