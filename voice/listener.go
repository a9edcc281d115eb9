package voice

import (
	"context"
	"errors"
	"strings"
	"time"

	"moodscan/audio"
	"moodscan/dsp"
	"moodscan/history"
	"moodscan/log"
	"moodscan/metrics"
	"moodscan/session"
	"moodscan/transcriber"
)

func (e *Engine) extractLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.FrameInterval)
	defer ticker.Stop()

	bins := make([]byte, e.analyser.FrequencyBinCount())
	buf := make([]float64, e.analyser.FFTSize()/2)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !e.active.Load() {
				return
			}
			e.tick(bins, buf)
		}
	}
}

func (e *Engine) tick(bins []byte, buf []float64) {
	e.analyser.ByteFrequencyData(bins)
	e.analyser.FloatTimeDomainData(buf)

	volume := dsp.Volume(bins)
	pitch := e.pitch.Detect(buf)
	energy := dsp.Energy(buf)

	e.stateMu.Lock()
	elapsed := e.now().Sub(e.startedAt)
	e.stateMu.Unlock()
	e.textMu.Lock()
	segments := e.segments
	e.textMu.Unlock()

	e.featMu.Lock()
	e.pitchHist.Push(pitch)
	e.volHist.Push(volume)
	pitchAvg, _ := history.Mean(e.pitchHist)
	volumeAvg, _ := history.Mean(e.volHist)
	f := session.AudioFeatures{
		Pitch:        pitchAvg,
		Volume:       volumeAvg,
		SpeakingRate: speakingRate(segments, elapsed),
		Energy:       energy,
	}
	e.features = f
	e.published = true
	event := e.silence.Tick(volume >= e.cfg.SilenceLevel)
	e.featMu.Unlock()

	metrics.Ticks.WithLabelValues(string(session.Voice)).Inc()
	e.sink.AudioFeatures(f)

	switch event {
	case SilenceWarn, SilenceRepeat:
		e.sink.Notice(session.Voice, ErrNoVoice)
	case SilenceWarnClear:
		e.sink.NoticeCleared(session.Voice)
	}
}

// listen keeps one recognizer session open for as long as the engine is
// active. Sessions that end because nobody spoke are retried after a pause,
// sessions that time out naturally are reopened at once, anything else
// turns transcription off until the next recording.
func (e *Engine) listen(ctx context.Context) {
	defer e.wg.Done()

	attempt := 0
	for e.active.Load() {
		recog, err := e.tr.NewSession(ctx, transcriber.SessionConfig{
			Language:   e.tr.GetLanguage(),
			SampleRate: e.cfg.SampleRate,
			Channels:   audio.DefaultChannels,
			Interim:    true,
		})
		if err != nil {
			if e.active.Load() {
				e.transcriptionFailed(err)
			}
			return
		}

		e.recogMu.Lock()
		if !e.active.Load() {
			e.recogMu.Unlock()
			recog.Close()
			return
		}
		e.recog = recog
		e.recogMu.Unlock()

		for u := range recog.Updates() {
			e.applyUpdate(u)
		}
		endErr := recog.Err()

		e.recogMu.Lock()
		e.recog = nil
		e.recogMu.Unlock()
		e.closeRecognizer(recog)

		if !e.active.Load() {
			return
		}
		attempt++
		switch {
		case errors.Is(endErr, transcriber.ErrNoSpeech):
			e.restarted("no_speech", attempt)
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.cfg.NoSpeechRetry):
			}
		case endErr == nil:
			e.restarted("ended", attempt)
		default:
			e.transcriptionFailed(endErr)
			return
		}
	}
}

func (e *Engine) restarted(reason string, attempt int) {
	log.RecognizerRestart(reason, attempt)
	metrics.RecognizerRestarts.WithLabelValues(reason).Inc()
}

func (e *Engine) transcriptionFailed(err error) {
	err = session.E(session.KindRecognitionTransient, "voice.listen", err)
	e.setErr(err)
	log.Errorf("transcription disabled for this session: %v", err)
	e.sink.Notice(session.Voice, err)
}

func (e *Engine) closeRecognizer(recog transcriber.Session) {
	res, _ := recog.Close()
	if s := res.Stream; s != nil {
		log.StreamMetrics(log.StreamMetricsData{
			ConnectMs:    s.ConnectMs,
			TotalMs:      s.TotalMs,
			AudioS:       s.AudioS,
			SentChunks:   s.SentChunks,
			SentKB:       s.SentKB,
			RecvMessages: s.RecvMessages,
			RecvFinal:    s.RecvFinal,
		})
	}
}

// applyUpdate appends finalized segments to the permanent transcript and
// replaces the interim tail. Each final segment counts as one word.
func (e *Engine) applyUpdate(u transcriber.Update) {
	e.textMu.Lock()
	for _, seg := range u.Segments {
		text := strings.TrimSpace(seg.Text)
		if seg.IsFinal && text != "" {
			e.final.WriteString(text)
			e.final.WriteString(" ")
			e.segments++
		}
	}
	e.interim = u.Interim()
	text := e.final.String() + e.interim
	e.textMu.Unlock()

	e.sink.Transcript(text)
}
