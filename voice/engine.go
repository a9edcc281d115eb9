// Package voice is the audio session engine: it owns the microphone stream,
// extracts pitch, volume and energy every frame, keeps a recognizer running
// for the transcript and reduces the session into a session.Result on stop.
//
// Stop releases the microphone. A new session requests it again.
package voice

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"moodscan/audio"
	"moodscan/config"
	"moodscan/dsp"
	"moodscan/encoder"
	"moodscan/history"
	"moodscan/log"
	"moodscan/metrics"
	"moodscan/session"
	"moodscan/transcriber"
)

type Options struct {
	Config      config.Voice
	Audio       audio.Context
	Device      *audio.DeviceInfo
	Transcriber transcriber.Transcriber // nil disables the transcript
	Sink        session.Sink
	Record      bool             // keep a FLAC copy of the session
	Now         func() time.Time // injectable clock for the speaking rate
}

type Engine struct {
	cfg   config.Voice
	audio audio.Context
	dev   *audio.DeviceInfo
	tr    transcriber.Transcriber
	sink  session.Sink
	now   func() time.Time
	rec   bool
	pitch dsp.PitchDetector

	mu       sync.Mutex // serializes lifecycle operations
	capture  audio.CaptureDevice
	analyser *dsp.Analyser
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	active atomic.Bool

	stateMu   sync.Mutex
	state     session.State
	err       error
	id        string
	startedAt time.Time
	recorder  *encoder.Recorder

	featMu    sync.Mutex
	pitchHist *history.Ring[float64]
	volHist   *history.Ring[float64]
	features  session.AudioFeatures
	published bool
	silence   *silenceMonitor

	textMu   sync.Mutex
	final    strings.Builder
	interim  string
	segments int

	recogMu sync.Mutex
	recog   transcriber.Session
}

func New(opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg.SampleRate == 0 {
		cfg = config.Default().Voice
	}
	if opts.Audio == nil {
		return nil, fmt.Errorf("voice: no audio context")
	}
	analyser, err := dsp.NewAnalyser(cfg.FFTSize)
	if err != nil {
		return nil, fmt.Errorf("voice: %w", err)
	}
	sink := opts.Sink
	if sink == nil {
		sink = session.NopSink{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.Transcriber != nil && cfg.Language != "" {
		opts.Transcriber.SetLanguage(cfg.Language)
	}
	return &Engine{
		cfg:       cfg,
		audio:     opts.Audio,
		dev:       opts.Device,
		tr:        opts.Transcriber,
		sink:      sink,
		now:       now,
		rec:       opts.Record,
		pitch:     dsp.NewPitchDetector(float64(cfg.SampleRate)),
		analyser:  analyser,
		pitchHist: history.NewRing[float64](cfg.History),
		volHist:   history.NewRing[float64](cfg.History),
		silence:   newSilenceMonitor(cfg.SilenceWindow, cfg.FrameInterval),
	}, nil
}

func (e *Engine) State() session.State {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

// Err returns the last error recorded by a lifecycle operation or by the
// transcription listener.
func (e *Engine) Err() error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.err
}

// Features returns the latest published snapshot.
func (e *Engine) Features() (session.AudioFeatures, bool) {
	e.featMu.Lock()
	defer e.featMu.Unlock()
	return e.features, e.published
}

// Transcript is the permanent text followed by the current interim text.
func (e *Engine) Transcript() string {
	e.textMu.Lock()
	defer e.textMu.Unlock()
	return e.final.String() + e.interim
}

// Recording returns the FLAC recorder of the last session, or nil.
func (e *Engine) Recording() *encoder.Recorder {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.recorder
}

func (e *Engine) setState(s session.State) {
	e.stateMu.Lock()
	e.state = s
	e.stateMu.Unlock()
	e.sink.StateChanged(session.Voice, s)
}

func (e *Engine) setErr(err error) {
	e.stateMu.Lock()
	e.err = err
	e.stateMu.Unlock()
}

func (e *Engine) captureConfig() audio.CaptureConfig {
	return audio.CaptureConfig{
		SampleRate:       uint32(e.cfg.SampleRate),
		Channels:         audio.DefaultChannels,
		EchoCancellation: e.cfg.EchoCancellation,
		NoiseSuppression: e.cfg.NoiseSuppression,
		AutoGainControl:  e.cfg.AutoGainControl,
	}
}

// RequestPermission acquires and starts the microphone stream. Denial is
// reported as false with the cause available from Err.
func (e *Engine) RequestPermission(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requestPermission(ctx)
}

func (e *Engine) requestPermission(ctx context.Context) bool {
	if e.capture != nil {
		return true
	}
	if err := ctx.Err(); err != nil {
		e.setErr(session.E(session.KindPermission, "voice.RequestPermission", err))
		return false
	}
	e.setState(session.RequestingPermission)

	dev, err := e.audio.NewCapture(e.dev, e.captureConfig())
	if err != nil {
		err = session.E(session.KindPermission, "voice.RequestPermission", err)
		e.setErr(err)
		e.setState(session.PermissionDenied)
		log.PermissionDenied(string(session.Voice), err)
		metrics.PermissionDenials.WithLabelValues(string(session.Voice)).Inc()
		e.sink.Notice(session.Voice, err)
		return false
	}
	if err := dev.Start(); err != nil {
		dev.Close()
		err = session.E(session.KindCaptureUnavailable, "voice.RequestPermission", err)
		e.setErr(err)
		e.setState(session.Idle)
		log.Errorf("microphone start failed: %v", err)
		e.sink.Notice(session.Voice, err)
		return false
	}

	e.capture = dev
	e.setErr(nil)
	e.setState(session.Ready)
	return true
}

// StartRecording begins a fresh session. It is a no-op while already
// recording.
func (e *Engine) StartRecording(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.State() == session.Recording {
		return nil
	}
	if !e.requestPermission(ctx) {
		return e.Err()
	}

	e.resetSession()
	if e.rec {
		rec, err := encoder.NewRecorder(uint32(e.cfg.SampleRate))
		if err != nil {
			log.Warnf("recording disabled: %v", err)
		}
		e.stateMu.Lock()
		e.recorder = rec
		e.stateMu.Unlock()
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel
	e.active.Store(true)
	e.capture.SetCallback(e.onAudio)

	e.wg.Add(1)
	go e.extractLoop(loopCtx)
	if e.tr != nil {
		e.wg.Add(1)
		go e.listen(loopCtx)
	}

	e.setState(session.Recording)
	log.SessionStart(e.id, string(session.Voice), e.capture.DeviceName())
	metrics.ActiveSessions.WithLabelValues(string(session.Voice)).Inc()
	return nil
}

func (e *Engine) resetSession() {
	e.analyser.Reset()

	e.featMu.Lock()
	e.pitchHist.Reset()
	e.volHist.Reset()
	e.features = session.AudioFeatures{}
	e.published = false
	e.silence.Reset()
	e.featMu.Unlock()

	e.textMu.Lock()
	e.final.Reset()
	e.interim = ""
	e.segments = 0
	e.textMu.Unlock()

	e.stateMu.Lock()
	e.id = uuid.NewString()
	e.startedAt = e.now()
	e.recorder = nil
	e.err = nil
	e.stateMu.Unlock()
}

// StopRecording ends the session, releases the microphone and returns the
// reduced result. It returns nil, nil when no session is recording.
func (e *Engine) StopRecording(_ context.Context) (*session.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.State() != session.Recording {
		return nil, nil
	}
	e.setState(session.Finalizing)
	e.halt()

	snap := e.snapshot()
	e.release()

	if rec := e.Recording(); rec != nil {
		if err := rec.Close(); err != nil {
			log.Warnf("recording: %v", err)
		}
	}

	res, err := reduce(snap)
	e.setState(session.Idle)
	metrics.ActiveSessions.WithLabelValues(string(session.Voice)).Dec()
	if err != nil {
		e.setErr(err)
		log.Errorf("voice reduction: %v", err)
		return nil, err
	}
	log.SessionEnd(res.ID, string(session.Voice), res.PrimaryEmotion, res.Confidence, res.Duration)
	metrics.Sessions.WithLabelValues(string(session.Voice), res.PrimaryEmotion).Inc()
	return res, nil
}

// halt stops both loops and waits for them. The active flag flips first so
// an in-flight tick sees the stop before doing any work.
func (e *Engine) halt() {
	e.active.Store(false)
	if e.capture != nil {
		e.capture.ClearCallback()
	}
	if e.cancel != nil {
		e.cancel()
	}
	e.recogMu.Lock()
	recog := e.recog
	e.recogMu.Unlock()
	if recog != nil {
		recog.Close()
	}
	e.wg.Wait()
}

func (e *Engine) release() {
	if e.capture == nil {
		return
	}
	e.capture.Stop()
	e.capture.Close()
	e.capture = nil
}

func (e *Engine) snapshot() snapshot {
	now := e.now()
	e.stateMu.Lock()
	id, startedAt := e.id, e.startedAt
	e.stateMu.Unlock()

	e.featMu.Lock()
	pitchAvg, _ := history.Mean(e.pitchHist)
	volumeAvg, _ := history.Mean(e.volHist)
	features, published := e.features, e.published
	e.featMu.Unlock()

	e.textMu.Lock()
	text, segments := e.final.String(), e.segments
	e.interim = ""
	e.textMu.Unlock()

	return snapshot{
		id:           id,
		transcript:   text,
		features:     features,
		published:    published,
		pitchAvg:     pitchAvg,
		volumeAvg:    volumeAvg,
		speakingRate: speakingRate(segments, now.Sub(startedAt)),
		confidence:   e.cfg.Confidence,
		duration:     now.Sub(startedAt),
	}
}

// Close tears the engine down: any running session is discarded and the
// microphone released. It is safe to call more than once.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.State() == session.Recording {
		e.halt()
		metrics.ActiveSessions.WithLabelValues(string(session.Voice)).Dec()
		if rec := e.Recording(); rec != nil {
			rec.Close()
		}
	}
	e.release()
	if e.State() != session.Idle {
		e.setState(session.Idle)
	}
}

func (e *Engine) onAudio(data []byte, _ uint32) {
	if !e.active.Load() {
		return
	}
	e.analyser.Write(dsp.FromS16LE(data))

	e.recogMu.Lock()
	recog := e.recog
	e.recogMu.Unlock()
	if recog != nil {
		recog.Feed(data)
	}
	if rec := e.Recording(); rec != nil {
		rec.Write(data)
	}
}

// speakingRate counts finalized recognizer segments per minute. A segment
// is usually a phrase, not a word.
func speakingRate(segments int, elapsed time.Duration) float64 {
	minutes := elapsed.Minutes()
	if minutes <= 0 {
		return 0
	}
	return float64(segments) / minutes
}
