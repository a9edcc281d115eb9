package voice

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"moodscan/audio"
	"moodscan/config"
	"moodscan/session"
	"moodscan/transcriber"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingSink struct {
	session.NopSink

	mu          sync.Mutex
	states      []session.State
	notices     []error
	cleared     int
	transcripts []string
	features    int
}

func (s *recordingSink) StateChanged(_ session.Modality, st session.State) {
	s.mu.Lock()
	s.states = append(s.states, st)
	s.mu.Unlock()
}

func (s *recordingSink) AudioFeatures(session.AudioFeatures) {
	s.mu.Lock()
	s.features++
	s.mu.Unlock()
}

func (s *recordingSink) Transcript(text string) {
	s.mu.Lock()
	s.transcripts = append(s.transcripts, text)
	s.mu.Unlock()
}

func (s *recordingSink) Notice(_ session.Modality, err error) {
	s.mu.Lock()
	s.notices = append(s.notices, err)
	s.mu.Unlock()
}

func (s *recordingSink) NoticeCleared(session.Modality) {
	s.mu.Lock()
	s.cleared++
	s.mu.Unlock()
}

func (s *recordingSink) noticed(target error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, err := range s.notices {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *recordingSink) featureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.features
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func testConfig() config.Voice {
	cfg := config.Default().Voice
	cfg.FrameInterval = 5 * time.Millisecond
	cfg.NoSpeechRetry = 10 * time.Millisecond
	return cfg
}

func newTestEngine(t *testing.T, ac audio.Context, tr transcriber.Transcriber, clock *fakeClock) (*Engine, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	opts := Options{Config: testConfig(), Audio: ac, Sink: sink}
	if tr != nil {
		opts.Transcriber = tr
	}
	if clock != nil {
		opts.Now = clock.Now
	}
	e, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(e.Close)
	return e, sink
}

func TestEngineSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	ac := audio.NewToneContext(200, 0.5, 44100, false)
	tr := transcriber.NewFakeText("estoy tranquilo", "y relajado")
	clock := newFakeClock()
	e, sink := newTestEngine(t, ac, tr, clock)

	if err := e.StartRecording(ctx); err != nil {
		t.Fatal(err)
	}
	if err := e.StartRecording(ctx); err != nil {
		t.Fatalf("second StartRecording: %v", err)
	}
	if n := len(ac.Captures()); n != 1 {
		t.Fatalf("captures = %d, want 1", n)
	}
	if e.State() != session.Recording {
		t.Fatalf("state = %v", e.State())
	}

	waitFor(t, "transcript", func() bool { return strings.Contains(e.Transcript(), "relajado") })
	waitFor(t, "features", func() bool { return sink.featureCount() > 3 })
	if f, ok := e.Features(); !ok || f.Pitch <= 0 {
		t.Errorf("Features() = %+v, %v", f, ok)
	}

	clock.Advance(time.Minute)
	res, err := e.StopRecording(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res == nil {
		t.Fatal("nil result")
	}
	if res.Transcript != "estoy tranquilo y relajado" {
		t.Errorf("Transcript = %q", res.Transcript)
	}
	if res.PrimaryEmotion != "Calma" {
		t.Errorf("PrimaryEmotion = %q", res.PrimaryEmotion)
	}
	if res.Duration != time.Minute {
		t.Errorf("Duration = %v", res.Duration)
	}
	if res.ID == "" || res.Modality != session.Voice {
		t.Errorf("result = %+v", res)
	}

	if !ac.Captures()[0].Closed() {
		t.Error("microphone not released after stop")
	}
	if e.State() != session.Idle {
		t.Errorf("state after stop = %v", e.State())
	}

	again, err := e.StopRecording(ctx)
	if again != nil || err != nil {
		t.Errorf("second StopRecording = %v, %v", again, err)
	}
}

func TestEngineNewSessionRequestsMicrophoneAgain(t *testing.T) {
	ctx := context.Background()
	ac := audio.NewToneContext(150, 0.3, 44100, false)
	e, _ := newTestEngine(t, ac, nil, nil)

	for i := range 2 {
		if err := e.StartRecording(ctx); err != nil {
			t.Fatalf("round %d: %v", i, err)
		}
		if _, err := e.StopRecording(ctx); err != nil {
			t.Fatalf("round %d: %v", i, err)
		}
	}
	caps := ac.Captures()
	if len(caps) != 2 {
		t.Fatalf("captures = %d, want 2", len(caps))
	}
	for i, c := range caps {
		if !c.Closed() {
			t.Errorf("capture %d still open", i)
		}
	}
}

func TestEnginePermissionDenied(t *testing.T) {
	ctx := context.Background()
	e, sink := newTestEngine(t, audio.NewDeniedContext(nil), nil, nil)

	if e.RequestPermission(ctx) {
		t.Fatal("RequestPermission should fail")
	}
	if e.State() != session.PermissionDenied {
		t.Errorf("state = %v", e.State())
	}
	if !session.IsKind(e.Err(), session.KindPermission) {
		t.Errorf("Err() = %v", e.Err())
	}
	if !sink.noticed(audio.ErrDenied) {
		t.Error("no permission notice")
	}

	err := e.StartRecording(ctx)
	if !session.IsKind(err, session.KindPermission) {
		t.Errorf("StartRecording = %v", err)
	}
	if res, err := e.StopRecording(ctx); res != nil || err != nil {
		t.Errorf("StopRecording = %v, %v", res, err)
	}
}

func TestEngineListenerRestarts(t *testing.T) {
	ctx := context.Background()
	tr := transcriber.NewFake(
		transcriber.FakeScript{Updates: []transcriber.Update{transcriber.Final("hola")}, Err: transcriber.ErrNoSpeech},
		transcriber.FakeScript{Updates: []transcriber.Update{transcriber.Interim("bi"), transcriber.Final("bien")}},
	)
	e, _ := newTestEngine(t, audio.NewToneContext(180, 0.4, 44100, false), tr, nil)

	if err := e.StartRecording(ctx); err != nil {
		t.Fatal(err)
	}
	// no-speech end, natural end, then a third session that holds
	waitFor(t, "third recognizer session", func() bool { return tr.Sessions() >= 3 })

	res, err := e.StopRecording(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Transcript != "hola bien" {
		t.Errorf("Transcript = %q", res.Transcript)
	}
	if e.Err() != nil {
		t.Errorf("Err() = %v", e.Err())
	}
}

func TestEngineRecognizerFailureKeepsRecording(t *testing.T) {
	ctx := context.Background()
	netErr := errors.New("connection reset")
	tr := transcriber.NewFake(transcriber.FakeScript{Err: netErr})
	e, sink := newTestEngine(t, audio.NewToneContext(180, 0.4, 44100, false), tr, nil)

	if err := e.StartRecording(ctx); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "recognizer notice", func() bool { return sink.noticed(netErr) })
	if !session.IsKind(e.Err(), session.KindRecognitionTransient) {
		t.Errorf("Err() = %v", e.Err())
	}
	if e.State() != session.Recording {
		t.Errorf("state = %v", e.State())
	}

	time.Sleep(30 * time.Millisecond)
	if n := tr.Sessions(); n != 1 {
		t.Errorf("sessions = %d, want 1 after a fatal error", n)
	}
	res, err := e.StopRecording(ctx)
	if err != nil || res == nil {
		t.Fatalf("StopRecording = %v, %v", res, err)
	}
}

func TestEngineSilenceNotice(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.SilenceWindow = 50 * time.Millisecond
	sink := &recordingSink{}
	e, err := New(Options{Config: cfg, Audio: audio.NewToneContext(200, 0, 44100, false), Sink: sink})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if err := e.StartRecording(ctx); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "silence notice", func() bool { return sink.noticed(ErrNoVoice) })
	e.StopRecording(ctx)
}

func TestEngineCloseReleasesMicrophone(t *testing.T) {
	ctx := context.Background()
	ac := audio.NewToneContext(200, 0.5, 44100, false)
	e, _ := newTestEngine(t, ac, transcriber.NewFakeText(), nil)

	if err := e.StartRecording(ctx); err != nil {
		t.Fatal(err)
	}
	e.Close()
	e.Close()
	if !ac.Captures()[0].Closed() {
		t.Error("capture not closed")
	}
	if e.State() != session.Idle {
		t.Errorf("state = %v", e.State())
	}
}

func TestEngineRecordsFlac(t *testing.T) {
	ctx := context.Background()
	e, err := New(Options{Config: testConfig(), Audio: audio.NewToneContext(200, 0.5, 44100, false), Record: true})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if err := e.StartRecording(ctx); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "audio", func() bool { _, ok := e.Features(); return ok })
	time.Sleep(20 * time.Millisecond)
	if _, err := e.StopRecording(ctx); err != nil {
		t.Fatal(err)
	}
	rec := e.Recording()
	if rec == nil || rec.Frames() == 0 {
		t.Fatal("nothing recorded")
	}
}

func TestNewRejectsBadFFTSize(t *testing.T) {
	cfg := testConfig()
	cfg.FFTSize = 1000
	if _, err := New(Options{Config: cfg, Audio: audio.NewToneContext(200, 0.5, 44100, false)}); err == nil {
		t.Error("expected error for fft size 1000")
	}
}
