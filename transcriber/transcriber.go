// Package transcriber is the continuous speech recognition capability. A
// Session takes raw PCM and emits batches of segments, each either interim
// (replaced by the next batch) or final.
package transcriber

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoSpeech ends a session that heard nothing. Callers restart after a
// short pause.
var ErrNoSpeech = errors.New("no speech detected")

type Segment struct {
	Text    string
	IsFinal bool
}

type Update struct {
	Segments []Segment
	Language string
}

// Final joins the final segments of u.
func (u Update) Final() string {
	var parts []string
	for _, s := range u.Segments {
		if s.IsFinal && strings.TrimSpace(s.Text) != "" {
			parts = append(parts, strings.TrimSpace(s.Text))
		}
	}
	return strings.Join(parts, " ")
}

// Interim joins the non-final segments of u.
func (u Update) Interim() string {
	var parts []string
	for _, s := range u.Segments {
		if !s.IsFinal && strings.TrimSpace(s.Text) != "" {
			parts = append(parts, strings.TrimSpace(s.Text))
		}
	}
	return strings.Join(parts, " ")
}

type Transcriber interface {
	Name() string
	SetLanguage(lang string)
	GetLanguage() string
	NewSession(ctx context.Context, cfg SessionConfig) (Session, error)
}

type baseTranscriber struct {
	lang string
}

func (b *baseTranscriber) SetLanguage(lang string) { b.lang = lang }

func (b *baseTranscriber) GetLanguage() string { return b.lang }

// New picks the recognizer configured in the environment.
func New() (Transcriber, error) {
	if key := os.Getenv("DEEPGRAM_API_KEY"); key != "" {
		return NewDeepgram(key), nil
	}
	return nil, fmt.Errorf("set DEEPGRAM_API_KEY environment variable")
}
