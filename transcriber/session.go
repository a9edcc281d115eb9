package transcriber

import "runtime"

type SessionConfig struct {
	Language   string
	SampleRate int
	Channels   int
	Interim    bool
}

type StreamStats struct {
	ConnectMs    float64
	SentChunks   int
	SentKB       float64
	RecvMessages int
	RecvFinal    int
	RecvInterim  int
	TotalMs      float64
	AudioS       float64
}

type SessionResult struct {
	Text          string
	HasText       bool
	NoSpeech      bool
	MemoryAllocMB float64
	Stream        *StreamStats
	Metrics       []string // pre-formatted lines for the TUI
}

func (r *SessionResult) captureMemStats() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	r.MemoryAllocMB = float64(m.Alloc) / 1024 / 1024
}

// Session is one continuous recognition run. Updates is closed when the
// session ends, either through Close or on its own; Err then reports why
// it ended (nil for a natural end, ErrNoSpeech, or a transport error).
type Session interface {
	Feed(pcm []byte)
	Updates() <-chan Update
	Err() error
	Close() (SessionResult, error)
}
