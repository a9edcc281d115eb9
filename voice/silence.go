package voice

import (
	"errors"
	"time"

	"moodscan/history"
)

// ErrNoVoice is the live notice raised while the microphone hears nothing.
var ErrNoVoice = errors.New("no se detecta voz, acércate al micrófono")

const (
	speechMinRatio   = 0.10
	speechClearRatio = 0.25 // higher threshold to clear the warning (hysteresis)
)

type SilenceEvent int

const (
	SilenceNone      SilenceEvent = iota
	SilenceWarn                   // no voice over the window
	SilenceWarnClear              // speech resumed after a warning
	SilenceRepeat                 // still silent, re-raise the notice
)

// silenceMonitor watches per-tick speech flags over a sliding window.
type silenceMonitor struct {
	warnAt int
	window *history.Ring[bool]

	ticks    int
	warned   bool
	lastWarn int
}

func newSilenceMonitor(window, tick time.Duration) *silenceMonitor {
	n := max(1, int(window/tick))
	return &silenceMonitor{warnAt: n, window: history.NewRing[bool](n)}
}

func (m *silenceMonitor) ratio() float64 {
	items := m.window.Items()
	if len(items) == 0 {
		return 1.0
	}
	count := 0
	for _, speech := range items {
		if speech {
			count++
		}
	}
	return float64(count) / float64(len(items))
}

func (m *silenceMonitor) Tick(hasSpeech bool) SilenceEvent {
	m.window.Push(hasSpeech)
	m.ticks++
	r := m.ratio()

	if m.ticks >= m.warnAt && r < speechMinRatio && !m.warned {
		m.warned = true
		m.lastWarn = m.ticks
		return SilenceWarn
	}
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return SilenceWarnClear
	}
	if m.warned && m.ticks-m.lastWarn >= m.warnAt {
		m.lastWarn = m.ticks
		return SilenceRepeat
	}
	return SilenceNone
}

func (m *silenceMonitor) Reset() {
	m.window.Reset()
	m.ticks = 0
	m.warned = false
	m.lastWarn = 0
}
