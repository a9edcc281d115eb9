package camera

import (
	"fmt"
	"image"
	"image/color"
	"sync"
)

// FakeContext serves synthetic frames, or refuses every stream when built
// with NewDeniedContext.
type FakeContext struct {
	err    error
	frames []image.Image

	mu      sync.Mutex
	streams []*FakeStream
}

// NewFakeContext serves frames in a loop. With no frames it serves a single
// gray 64x48 image.
func NewFakeContext(frames ...image.Image) *FakeContext {
	if len(frames) == 0 {
		frames = []image.Image{Blank(64, 48)}
	}
	return &FakeContext{frames: frames}
}

func NewDeniedContext(err error) *FakeContext {
	if err == nil {
		err = ErrDenied
	}
	return &FakeContext{err: err}
}

// Blank returns a uniform gray image.
func Blank(w, h int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	return img
}

// Solid returns a w x h image filled with c.
func Solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func (f *FakeContext) NewStream(Config) (Stream, error) {
	if f.err != nil {
		return nil, fmt.Errorf("fake camera: %w", f.err)
	}
	s := &FakeStream{sliceStream: sliceStream{name: "fake", frames: f.frames}}
	f.mu.Lock()
	f.streams = append(f.streams, s)
	f.mu.Unlock()
	return s, nil
}

func (f *FakeContext) Close() {}

// Streams returns every stream handed out so far.
func (f *FakeContext) Streams() []*FakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeStream(nil), f.streams...)
}

type FakeStream struct {
	sliceStream
}

func (s *FakeStream) Closed() bool { return s.closed.Load() }
