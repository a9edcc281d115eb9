package main

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"moodscan/log"
	"moodscan/session"
)

// TUI message types
type stateMsg struct {
	Modality session.Modality
	State    session.State
}
type featuresMsg session.AudioFeatures
type transcriptMsg string
type emotionsMsg []session.EmotionScore
type faceMsg session.FaceFeatures
type noticeMsg struct {
	Modality session.Modality
	Err      error
}
type noticeClearedMsg struct{ Modality session.Modality }
type startedMsg struct{ Err error }
type resultMsg struct {
	Result *session.Result
	Err    error
}

type sender interface {
	Send(msg tea.Msg)
}

// programSink forwards engine updates into the bubbletea event loop.
type programSink struct {
	p sender
}

func (s programSink) StateChanged(m session.Modality, st session.State) {
	s.p.Send(stateMsg{Modality: m, State: st})
}

func (s programSink) AudioFeatures(f session.AudioFeatures) { s.p.Send(featuresMsg(f)) }

func (s programSink) Transcript(text string) { s.p.Send(transcriptMsg(text)) }

func (s programSink) Emotions(scores []session.EmotionScore) { s.p.Send(emotionsMsg(scores)) }

func (s programSink) FaceFeatures(f session.FaceFeatures) { s.p.Send(faceMsg(f)) }

func (s programSink) Notice(m session.Modality, err error) {
	s.p.Send(noticeMsg{Modality: m, Err: err})
}

func (s programSink) NoticeCleared(m session.Modality) { s.p.Send(noticeClearedMsg{Modality: m}) }

// textSink prints state changes and notices for headless runs.
type textSink struct {
	session.NopSink
	w io.Writer
}

func (s textSink) StateChanged(m session.Modality, st session.State) {
	fmt.Fprintf(s.w, "[%s] %s\n", m, st)
}

func (s textSink) Notice(m session.Modality, err error) {
	fmt.Fprintf(s.w, "[%s] warning: %v\n", m, err)
	log.Warnf("%s notice: %v", m, err)
}

func (s textSink) NoticeCleared(m session.Modality) {
	fmt.Fprintf(s.w, "[%s] notice cleared\n", m)
}
