package transcriber

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"moodscan/log"
)

const (
	streamChunkMs      = 100
	streamFinalizeIdle = 200 * time.Millisecond
	streamFinalizeMax  = 1000 * time.Millisecond
	streamDrainMax     = 2 * time.Second
)

type rawStreamSession interface {
	Send(pcm []byte) error
	CloseSend() error
	// Recv returns io.EOF when the server ends the stream cleanly.
	Recv() (streamUpdate, error)
	Close() error
}

type streamUpdate struct {
	Transcript   string
	IsFinal      bool
	SpeechFinal  bool
	FromFinalize bool
}

type streamSession struct {
	ws         rawStreamSession
	lang       string
	sampleRate int
	chunkBytes int
	startedAt  time.Time

	audioCh   chan []byte
	updates   chan Update
	quit      chan struct{}
	connected chan struct{} // closed when the socket is ready (or failed)
	sendDone  chan struct{}
	recvDone  chan struct{}
	finalized chan struct{}

	finalizedOnce sync.Once
	closeOnce     sync.Once
	result        SessionResult
	resultErr     error

	feedMu     sync.Mutex
	feedBuf    []byte
	feedClosed bool

	mu      sync.Mutex
	err     error
	errOnce sync.Once
	closing bool
	text    string
	stats   streamStats
}

type streamStats struct {
	ConnectDur   time.Duration
	SentChunks   int
	SentBytes    uint64
	RecvMessages int
	RecvFinal    int
	RecvInterim  int
	SessionDur   time.Duration
}

func newStreamSession(cfg SessionConfig, dial func() (rawStreamSession, error)) *streamSession {
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	ss := &streamSession{
		lang:       cfg.Language,
		sampleRate: rate,
		chunkBytes: rate * 2 * streamChunkMs / 1000,
		startedAt:  time.Now(),
		audioCh:    make(chan []byte, 128),
		updates:    make(chan Update, 16),
		quit:       make(chan struct{}),
		connected:  make(chan struct{}),
		sendDone:   make(chan struct{}),
		recvDone:   make(chan struct{}),
		finalized:  make(chan struct{}),
	}

	go func() {
		connectStart := time.Now()
		ws, err := dial()
		ss.mu.Lock()
		ss.stats.ConnectDur = time.Since(connectStart)
		ss.mu.Unlock()

		if err != nil {
			ss.setErr(err)
			close(ss.sendDone)
			close(ss.recvDone)
			close(ss.updates)
			close(ss.connected)
			return
		}

		ss.ws = ws
		close(ss.connected)
		go ss.runSender()
		go ss.runReceiver()
	}()

	return ss
}

func (s *streamSession) Feed(pcm []byte) {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()
	if s.feedClosed {
		return
	}
	s.feedBuf = append(s.feedBuf, pcm...)
	for len(s.feedBuf) >= s.chunkBytes {
		chunk := make([]byte, s.chunkBytes)
		copy(chunk, s.feedBuf[:s.chunkBytes])
		s.feedBuf = s.feedBuf[s.chunkBytes:]
		select {
		case s.audioCh <- chunk:
		case <-s.sendDone:
			s.feedBuf = nil
			return
		}
	}
}

func (s *streamSession) Updates() <-chan Update { return s.updates }

func (s *streamSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *streamSession) Close() (SessionResult, error) {
	s.closeOnce.Do(func() { s.result, s.resultErr = s.shutdown() })
	return s.result, s.resultErr
}

func (s *streamSession) shutdown() (SessionResult, error) {
	<-s.connected

	s.feedMu.Lock()
	s.feedClosed = true
	if len(s.feedBuf) > 0 {
		select {
		case s.audioCh <- s.feedBuf:
		case <-s.sendDone:
		}
		s.feedBuf = nil
	}
	close(s.audioCh)
	s.feedMu.Unlock()

	if s.ws != nil {
		<-s.sendDone

		// Wait for the finalize acknowledgment, then a brief quiet period.
		select {
		case <-s.finalized:
			time.Sleep(streamFinalizeIdle)
		case <-s.recvDone:
		case <-time.After(streamFinalizeMax):
		}

		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()
		s.ws.Close()
		select {
		case <-s.recvDone:
		case <-time.After(streamDrainMax):
			log.Warn("stream receiver drain timeout")
			close(s.quit)
			<-s.recvDone
		}
	}

	s.mu.Lock()
	text := strings.TrimSpace(s.text)
	stats := s.stats
	stats.SessionDur = time.Since(s.startedAt)
	err := s.err
	s.mu.Unlock()
	if errors.Is(err, ErrNoSpeech) {
		err = nil
	}

	sr := SessionResult{
		Text:     text,
		HasText:  text != "",
		NoSpeech: text == "",
		Metrics:  s.formatMetrics(stats),
		Stream: &StreamStats{
			ConnectMs:    float64(stats.ConnectDur.Milliseconds()),
			SentChunks:   stats.SentChunks,
			SentKB:       float64(stats.SentBytes) / 1024,
			RecvMessages: stats.RecvMessages,
			RecvFinal:    stats.RecvFinal,
			RecvInterim:  stats.RecvInterim,
			TotalMs:      float64(stats.SessionDur.Milliseconds()),
			AudioS:       s.audioDuration(stats),
		},
	}
	sr.captureMemStats()
	return sr, err
}

func (s *streamSession) runSender() {
	defer close(s.sendDone)
	for chunk := range s.audioCh {
		if err := s.ws.Send(chunk); err != nil {
			s.setErr(err)
			return
		}
		s.mu.Lock()
		s.stats.SentChunks++
		s.stats.SentBytes += uint64(len(chunk))
		s.mu.Unlock()
	}
	if err := s.ws.CloseSend(); err != nil {
		s.setErr(err)
	}
}

func (s *streamSession) runReceiver() {
	defer close(s.recvDone)
	defer close(s.updates)
	for {
		update, err := s.ws.Recv()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			heard := s.text != ""
			s.mu.Unlock()
			switch {
			case closing:
			case errors.Is(err, io.EOF) && !heard:
				s.setErr(ErrNoSpeech)
			case errors.Is(err, io.EOF):
			default:
				s.setErr(err)
			}
			return
		}

		if update.FromFinalize {
			s.finalizedOnce.Do(func() { close(s.finalized) })
		}

		isFinal := update.IsFinal || update.FromFinalize
		transcript := strings.TrimSpace(update.Transcript)

		s.mu.Lock()
		s.stats.RecvMessages++
		if isFinal {
			s.stats.RecvFinal++
		} else {
			s.stats.RecvInterim++
		}
		if isFinal && transcript != "" {
			s.text += transcript + " "
		}
		s.mu.Unlock()

		if transcript == "" {
			continue
		}
		u := Update{
			Segments: []Segment{{Text: transcript, IsFinal: isFinal}},
			Language: s.lang,
		}
		select {
		case s.updates <- u:
		case <-s.quit:
			return
		}
	}
}

func (s *streamSession) setErr(err error) {
	if err == nil {
		return
	}
	s.errOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		if s.ws != nil {
			s.ws.Close()
		}
	})
}

func (s *streamSession) audioDuration(stats streamStats) float64 {
	return float64(stats.SentBytes) / float64(s.sampleRate*2)
}

func (s *streamSession) formatMetrics(stats streamStats) []string {
	return []string{
		fmt.Sprintf("audio:      %.1fs | %.1f KB PCM sent", s.audioDuration(stats), float64(stats.SentBytes)/1024),
		fmt.Sprintf("stream:     PCM16 %dHz mono | %dms chunks | %s", s.sampleRate, streamChunkMs, s.lang),
		fmt.Sprintf("connect:    %dms", stats.ConnectDur.Milliseconds()),
		fmt.Sprintf("recv:       %d msgs (%d final, %d interim)", stats.RecvMessages, stats.RecvFinal, stats.RecvInterim),
		fmt.Sprintf("total:      %dms", stats.SessionDur.Milliseconds()),
	}
}
