// Package camera provides video frame capture for the face engine.
package camera

import (
	"errors"
	"image"
	"time"
)

var (
	ErrDenied  = errors.New("camera access denied")
	ErrClosed  = errors.New("camera stream closed")
	ErrNoFrame = errors.New("no frame available")
)

// Config is the requested stream shape. Backends treat Width and Height as
// ideal values and may deliver other sizes.
type Config struct {
	Width  int
	Height int
	Facing string // "user" or "environment"
}

func DefaultConfig() Config {
	return Config{Width: 640, Height: 480, Facing: "user"}
}

type Frame struct {
	Image image.Image
	Seq   uint64
	At    time.Time
}

type Context interface {
	NewStream(cfg Config) (Stream, error)
	Close()
}

// Stream hands out the most recent frame on demand. Frame never blocks.
type Stream interface {
	Frame() (Frame, error)
	Name() string
	Close()
}
