package face

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"moodscan/camera"
	"moodscan/config"
	"moodscan/history"
	"moodscan/log"
	"moodscan/metrics"
	"moodscan/session"
)

type Options struct {
	Config config.Face
	Camera camera.Context
	Models *ModelCache // nil uses DefaultCache
	Sink   session.Sink
	Now    func() time.Time
}

type Engine struct {
	cfg    config.Face
	cams   camera.Context
	models *ModelCache
	sink   session.Sink
	now    func() time.Time

	mu     sync.Mutex // serializes lifecycle operations
	stream camera.Stream
	cancel context.CancelFunc
	wg     sync.WaitGroup

	active atomic.Bool

	stateMu   sync.Mutex
	state     session.State
	err       error
	id        string
	startedAt time.Time

	liveMu   sync.Mutex
	frames   *history.Ring[frame]
	current  []session.EmotionScore
	features *session.FaceFeatures
}

func New(opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg.Interval <= 0 {
		cfg = config.Default().Face
	}
	if opts.Camera == nil {
		return nil, fmt.Errorf("face: no camera context")
	}
	models := opts.Models
	if models == nil {
		models = DefaultCache(cfg)
	}
	sink := opts.Sink
	if sink == nil {
		sink = session.NopSink{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		cfg:    cfg,
		cams:   opts.Camera,
		models: models,
		sink:   sink,
		now:    now,
		frames: history.NewRing[frame](cfg.History),
	}, nil
}

func (e *Engine) State() session.State {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

func (e *Engine) Err() error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.err
}

// CurrentEmotions is the ranked expression list of the latest tick, empty
// when that tick found no face.
func (e *Engine) CurrentEmotions() []session.EmotionScore {
	e.liveMu.Lock()
	defer e.liveMu.Unlock()
	return append([]session.EmotionScore(nil), e.current...)
}

// FaceFeatures is the latest feature snapshot. After a tick without a face
// it keeps the previous geometry with FaceDetected cleared.
func (e *Engine) FaceFeatures() (session.FaceFeatures, bool) {
	e.liveMu.Lock()
	defer e.liveMu.Unlock()
	if e.features == nil {
		return session.FaceFeatures{}, false
	}
	return *e.features, true
}

func (e *Engine) setState(s session.State) {
	e.stateMu.Lock()
	e.state = s
	e.stateMu.Unlock()
	e.sink.StateChanged(session.Face, s)
}

func (e *Engine) setErr(err error) {
	e.stateMu.Lock()
	e.err = err
	e.stateMu.Unlock()
}

// RequestCameraPermission opens the camera stream. An already open stream
// is reused.
func (e *Engine) RequestCameraPermission(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requestCamera(ctx)
}

func (e *Engine) requestCamera(ctx context.Context) bool {
	if e.stream != nil {
		return true
	}
	if err := ctx.Err(); err != nil {
		e.setErr(session.E(session.KindPermission, "face.RequestCameraPermission", err))
		return false
	}
	e.setState(session.RequestingPermission)

	stream, err := e.cams.NewStream(camera.Config{Width: e.cfg.Width, Height: e.cfg.Height, Facing: e.cfg.Facing})
	if err != nil {
		err = session.E(session.KindPermission, "face.RequestCameraPermission", err)
		e.setErr(err)
		e.setState(session.PermissionDenied)
		log.PermissionDenied(string(session.Face), err)
		metrics.PermissionDenials.WithLabelValues(string(session.Face)).Inc()
		e.sink.Notice(session.Face, err)
		return false
	}
	e.stream = stream
	e.setErr(nil)
	e.setState(session.Ready)
	return true
}

// StartAnalysis loads the detector if needed, makes sure the camera is open
// and starts polling. It is a no-op while already analyzing.
func (e *Engine) StartAnalysis(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.State() == session.Recording {
		return nil
	}

	det, err := e.models.EnsureLoaded(ctx)
	if err != nil {
		e.setErr(err)
		log.Errorf("face model: %v", err)
		e.sink.Notice(session.Face, err)
		if e.stream == nil && e.State() != session.Idle {
			e.setState(session.Idle)
		}
		return err
	}
	if !e.requestCamera(ctx) {
		return e.Err()
	}

	e.liveMu.Lock()
	e.frames.Reset()
	e.current = nil
	e.features = nil
	e.liveMu.Unlock()

	e.stateMu.Lock()
	e.id = uuid.NewString()
	e.startedAt = e.now()
	e.err = nil
	e.stateMu.Unlock()

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel
	e.active.Store(true)
	e.wg.Add(1)
	go e.pollLoop(loopCtx, det, e.stream)

	e.setState(session.Recording)
	log.SessionStart(e.id, string(session.Face), e.stream.Name())
	metrics.ActiveSessions.WithLabelValues(string(session.Face)).Inc()
	return nil
}

// StopAnalysis stops polling and reduces the recorded ticks. The camera
// stays open. It returns nil, nil when no analysis is running.
func (e *Engine) StopAnalysis(_ context.Context) (*session.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.State() != session.Recording {
		return nil, nil
	}
	e.setState(session.Finalizing)
	e.halt()

	e.stateMu.Lock()
	id, startedAt := e.id, e.startedAt
	e.stateMu.Unlock()
	e.liveMu.Lock()
	snap := snapshot{id: id, frames: e.frames.Items(), duration: e.now().Sub(startedAt)}
	e.liveMu.Unlock()

	res, err := reduce(snap)
	e.setState(session.Ready)
	metrics.ActiveSessions.WithLabelValues(string(session.Face)).Dec()
	if err != nil {
		e.setErr(err)
		log.Errorf("face reduction: %v", err)
		return nil, err
	}
	log.SessionEnd(res.ID, string(session.Face), res.PrimaryEmotion, res.Confidence, res.Duration)
	metrics.Sessions.WithLabelValues(string(session.Face), res.PrimaryEmotion).Inc()
	return res, nil
}

func (e *Engine) halt() {
	e.active.Store(false)
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// Close stops any running analysis and releases the camera. It is safe to
// call more than once.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.State() == session.Recording {
		e.halt()
		metrics.ActiveSessions.WithLabelValues(string(session.Face)).Dec()
	}
	if e.stream != nil {
		e.stream.Close()
		e.stream = nil
	}
	if e.State() != session.Idle {
		e.setState(session.Idle)
	}
}

func (e *Engine) pollLoop(ctx context.Context, det Detector, stream camera.Stream) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !e.active.Load() {
				return
			}
			e.tick(ctx, det, stream)
		}
	}
}

func (e *Engine) tick(ctx context.Context, det Detector, stream camera.Stream) {
	fr, err := stream.Frame()
	if err != nil {
		e.detectFailed(err)
		return
	}

	dctx := ctx
	if e.cfg.DetectTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, e.cfg.DetectTimeout)
		defer cancel()
	}
	start := time.Now()
	dets, err := det.Detect(dctx, fr.Image)
	metrics.DetectLatency.Observe(time.Since(start).Seconds())
	metrics.Ticks.WithLabelValues(string(session.Face)).Inc()

	// a stop that landed mid-detect wins
	if !e.active.Load() {
		return
	}
	if err != nil {
		e.detectFailed(err)
		return
	}

	if len(dets) == 0 {
		e.liveMu.Lock()
		e.current = nil
		var stale *session.FaceFeatures
		if e.features != nil {
			f := *e.features
			f.FaceDetected = false
			e.features = &f
			stale = &f
		}
		e.liveMu.Unlock()
		e.sink.Emotions(nil)
		if stale != nil {
			e.sink.FaceFeatures(*stale)
		}
		return
	}

	d := best(dets)
	ranked := d.Ranked()
	var feat *session.FaceFeatures
	if f, ok := Analyze(d.Landmarks, e.cfg.TickConfidence); ok {
		feat = &f
	}

	e.liveMu.Lock()
	e.current = ranked
	if feat != nil {
		e.features = feat
	}
	e.frames.Push(frame{emotions: ranked, features: feat})
	e.liveMu.Unlock()

	e.sink.Emotions(append([]session.EmotionScore(nil), ranked...))
	if feat != nil {
		e.sink.FaceFeatures(*feat)
	}
}

func (e *Engine) detectFailed(err error) {
	metrics.DetectFailures.Inc()
	log.DetectError(err)
}
