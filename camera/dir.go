package camera

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DirContext replays still images from a directory as a looping camera.
// Files are read once, sorted by name.
type DirContext struct {
	dir    string
	frames []image.Image
}

func NewDirContext(dir string) (*DirContext, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("frames dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	c := &DirContext{dir: dir}
	for _, name := range names {
		img, err := decodeFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("frame %s: %w", name, err)
		}
		c.frames = append(c.frames, img)
	}
	if len(c.frames) == 0 {
		return nil, fmt.Errorf("frames dir %s: no png or jpeg images", dir)
	}
	return c, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

func (c *DirContext) NewStream(Config) (Stream, error) {
	return &sliceStream{name: c.dir, frames: c.frames}, nil
}

func (c *DirContext) Close() {}

// sliceStream advances one frame per call and wraps around.
type sliceStream struct {
	name   string
	frames []image.Image

	mu     sync.Mutex
	next   int
	seq    uint64
	closed atomic.Bool
}

func (s *sliceStream) Frame() (Frame, error) {
	if s.closed.Load() {
		return Frame{}, ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return Frame{}, ErrNoFrame
	}
	img := s.frames[s.next]
	s.next = (s.next + 1) % len(s.frames)
	s.seq++
	return Frame{Image: img, Seq: s.seq, At: time.Now()}, nil
}

func (s *sliceStream) Name() string { return s.name }

func (s *sliceStream) Close() { s.closed.Store(true) }
