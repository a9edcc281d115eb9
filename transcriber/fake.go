package transcriber

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// FakeScript drives one fake session. Updates are emitted Delay apart. When
// Hold is set the session stays open until Close; otherwise it ends on its
// own with Err (nil is a natural end).
type FakeScript struct {
	Updates []Update
	Delay   time.Duration
	Err     error
	Hold    bool
}

// FakeTranscriber hands out scripted sessions in order. Once the scripts
// run out every further session holds silently until closed.
type FakeTranscriber struct {
	mu       sync.Mutex
	lang     string
	scripts  []FakeScript
	dialErr  error
	sessions atomic.Int32
}

func NewFake(scripts ...FakeScript) *FakeTranscriber {
	return &FakeTranscriber{scripts: scripts, lang: "es-ES"}
}

// NewFakeText returns a transcriber whose first session finalizes each of
// phrases and then stays open.
func NewFakeText(phrases ...string) *FakeTranscriber {
	updates := make([]Update, 0, len(phrases))
	for _, p := range phrases {
		updates = append(updates, Final(p))
	}
	return NewFake(FakeScript{Updates: updates, Delay: 5 * time.Millisecond, Hold: true})
}

// Final builds an update with a single final segment.
func Final(text string) Update {
	return Update{Segments: []Segment{{Text: text, IsFinal: true}}}
}

// Interim builds an update with a single interim segment.
func Interim(text string) Update {
	return Update{Segments: []Segment{{Text: text}}}
}

// FailDial makes every NewSession fail with err.
func (f *FakeTranscriber) FailDial(err error) {
	f.mu.Lock()
	f.dialErr = err
	f.mu.Unlock()
}

func (f *FakeTranscriber) Name() string { return "fake" }

func (f *FakeTranscriber) SetLanguage(lang string) {
	f.mu.Lock()
	f.lang = lang
	f.mu.Unlock()
}

func (f *FakeTranscriber) GetLanguage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lang
}

// Sessions counts NewSession calls that succeeded.
func (f *FakeTranscriber) Sessions() int { return int(f.sessions.Load()) }

func (f *FakeTranscriber) NewSession(_ context.Context, cfg SessionConfig) (Session, error) {
	f.mu.Lock()
	if f.dialErr != nil {
		err := f.dialErr
		f.mu.Unlock()
		return nil, err
	}
	script := FakeScript{Hold: true}
	if len(f.scripts) > 0 {
		script = f.scripts[0]
		f.scripts = f.scripts[1:]
	}
	lang := cfg.Language
	if lang == "" {
		lang = f.lang
	}
	f.mu.Unlock()
	f.sessions.Add(1)

	s := &fakeSession{
		updates: make(chan Update, len(script.Updates)+1),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.run(script, lang)
	return s, nil
}

type fakeSession struct {
	updates   chan Update
	closeCh   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	fed       atomic.Int64

	mu   sync.Mutex
	err  error
	text []string
}

func (s *fakeSession) run(script FakeScript, lang string) {
	defer close(s.done)
	defer close(s.updates)
	for _, u := range script.Updates {
		select {
		case <-s.closeCh:
			return
		case <-time.After(script.Delay):
		}
		u.Language = lang
		if f := u.Final(); f != "" {
			s.mu.Lock()
			s.text = append(s.text, f)
			s.mu.Unlock()
		}
		s.updates <- u
	}
	if script.Hold {
		<-s.closeCh
		return
	}
	s.mu.Lock()
	s.err = script.Err
	s.mu.Unlock()
}

func (s *fakeSession) Feed(pcm []byte) { s.fed.Add(int64(len(pcm))) }

func (s *fakeSession) Updates() <-chan Update { return s.updates }

func (s *fakeSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeSession) Close() (SessionResult, error) {
	s.closeOnce.Do(func() { close(s.closeCh) })
	<-s.done
	s.mu.Lock()
	text := strings.Join(s.text, " ")
	s.mu.Unlock()
	r := SessionResult{
		Text:     text,
		HasText:  text != "",
		NoSpeech: text == "",
		Stream:   &StreamStats{SentKB: float64(s.fed.Load()) / 1024},
		Metrics:  []string{"total: fake"},
	}
	r.captureMemStats()
	return r, nil
}
