package main

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"moodscan/beep"
	"moodscan/scoring"
	"moodscan/session"
)

func TestMain(m *testing.M) {
	beep.Disable()
	os.Exit(m.Run())
}

type stubAnalyzer struct {
	starts, stops int
	state         session.State
}

func (s *stubAnalyzer) Modality() session.Modality              { return session.Voice }
func (s *stubAnalyzer) RequestPermission(context.Context) bool { return true }
func (s *stubAnalyzer) Start(context.Context) error            { s.starts++; return nil }
func (s *stubAnalyzer) Stop(context.Context) (*session.Result, error) {
	s.stops++
	return &session.Result{PrimaryEmotion: "Calma"}, nil
}
func (s *stubAnalyzer) State() session.State { return s.state }
func (s *stubAnalyzer) Err() error           { return nil }
func (s *stubAnalyzer) Close()               {}

func update(m tuiModel, msg tea.Msg) (tuiModel, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(tuiModel), cmd
}

func TestTUISpaceTogglesSession(t *testing.T) {
	a := &stubAnalyzer{}
	m := newTUIModel(context.Background(), a, "")

	m, cmd := update(m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if cmd == nil || !m.busy {
		t.Fatal("space did not issue a start")
	}
	if _, ok := cmd().(startedMsg); !ok || a.starts != 1 {
		t.Fatalf("start command ran %d starts", a.starts)
	}

	// a second press while the start is in flight is ignored
	if _, cmd := update(m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}); cmd != nil {
		t.Error("space while busy issued a command")
	}

	m, _ = update(m, startedMsg{})
	m, _ = update(m, stateMsg{Modality: session.Voice, State: session.Recording})
	if !m.analyzing() {
		t.Fatal("model not analyzing after Recording state")
	}

	m, cmd = update(m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter did not issue a stop")
	}
	res := cmd()
	m, _ = update(m, res)
	m, _ = update(m, stateMsg{Modality: session.Voice, State: session.Idle})
	if a.stops != 1 || m.result == nil || m.result.PrimaryEmotion != "Calma" || m.busy {
		t.Errorf("after stop: stops=%d result=%+v busy=%v", a.stops, m.result, m.busy)
	}
}

func TestTUIRecordingResetsLiveState(t *testing.T) {
	m := newTUIModel(context.Background(), &stubAnalyzer{}, "")
	m, _ = update(m, transcriptMsg("viejo"))
	m, _ = update(m, emotionsMsg{{Emotion: "happy", Confidence: 0.9}})
	m, _ = update(m, stateMsg{State: session.Recording})
	if m.transcript != "" || m.emotions != nil {
		t.Errorf("live state kept across sessions: %q %v", m.transcript, m.emotions)
	}
}

func TestTUINotices(t *testing.T) {
	m := newTUIModel(context.Background(), &stubAnalyzer{}, "")
	m, _ = update(m, noticeMsg{Modality: session.Voice, Err: errors.New("silencio")})
	if m.notice == nil {
		t.Fatal("notice not shown")
	}
	m, _ = update(m, noticeClearedMsg{Modality: session.Voice})
	if m.notice != nil {
		t.Error("notice not cleared")
	}
	m, _ = update(m, noticeMsg{Err: errors.New("again")})
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.notice != nil {
		t.Error("esc did not dismiss the notice")
	}
}

func TestTUIRetryOnlyWhenDenied(t *testing.T) {
	m := newTUIModel(context.Background(), &stubAnalyzer{}, "")
	r := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}}
	if _, cmd := update(m, r); cmd != nil {
		t.Error("retry offered while idle")
	}
	m, _ = update(m, stateMsg{State: session.PermissionDenied})
	if _, cmd := update(m, r); cmd == nil {
		t.Error("retry not offered after denial")
	}
}

func TestTUIViewRendersResult(t *testing.T) {
	m := newTUIModel(context.Background(), &stubAnalyzer{}, "mic: test")
	m, _ = update(m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m, _ = update(m, resultMsg{Result: &session.Result{
		Modality:       session.Voice,
		PrimaryEmotion: "Calma",
		Emotions:       []scoring.Share{{Name: "Calma", Value: 100, Color: "bg-purple-500"}},
		Insights:       []string{"Tu tono refleja tranquility y balance emocional"},
	}})
	view := m.View()
	for _, want := range []string{"Calma", "Insights", "mic: test"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestWrapTextKeepsRunesWhole(t *testing.T) {
	lines := wrapText("Tu expresión facial refleja sorpresa", 12)
	for _, l := range lines {
		if !utf8.ValidString(l) {
			t.Errorf("line %q split a rune", l)
		}
		if utf8.RuneCountInString(l) > 12 {
			t.Errorf("line %q longer than 12 runes", l)
		}
	}
	if got := strings.Join(lines, " "); got != "Tu expresión facial refleja sorpresa" {
		t.Errorf("rejoined = %q", got)
	}
	if got := wrapText("", 10); len(got) != 1 || got[0] != "" {
		t.Errorf("wrapText(\"\") = %q", got)
	}
}
