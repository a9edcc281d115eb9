// Package session defines the values shared by the voice and face engines:
// lifecycle states, live feature snapshots, the terminal Result and the
// observer interface the front-end implements.
package session

import (
	"time"

	"moodscan/scoring"
)

type State int

const (
	Idle State = iota
	RequestingPermission
	PermissionDenied
	Ready
	Recording // "analyzing" for the face engine
	Finalizing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RequestingPermission:
		return "requesting_permission"
	case PermissionDenied:
		return "permission_denied"
	case Ready:
		return "ready"
	case Recording:
		return "recording"
	case Finalizing:
		return "finalizing"
	}
	return "unknown"
}

// HoldsStream reports whether a capture stream must be held in state s.
func (s State) HoldsStream() bool {
	return s == Ready || s == Recording || s == Finalizing
}

type Modality string

const (
	Voice Modality = "voice"
	Face  Modality = "face"
)

// AudioFeatures is republished every extraction tick. Pitch and Volume are
// rolling averages, Energy is the live tick value, SpeakingRate is
// cumulative since the session started.
type AudioFeatures struct {
	Pitch        float64 `json:"pitch"`
	Volume       float64 `json:"volume"`
	SpeakingRate float64 `json:"speakingRate"`
	Energy       float64 `json:"energy"`
}

// FaceFeatures is the geometric snapshot derived from one detection.
type FaceFeatures struct {
	FaceDetected  bool    `json:"faceDetected"`
	SymmetryScore float64 `json:"symmetryScore"`
	EyeOpenness   float64 `json:"eyeOpenness"`
	MouthOpenness float64 `json:"mouthOpenness"`
	Confidence    float64 `json:"confidence"`
}

// EmotionScore is one expression label with its detector confidence.
type EmotionScore struct {
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

// Result is produced once per session at stop and is not mutated afterwards.
type Result struct {
	ID             string          `json:"id"`
	Modality       Modality        `json:"modality"`
	Emotions       []scoring.Share `json:"emotions"`
	PrimaryEmotion string          `json:"mainEmotion"`
	Insights       []string        `json:"insights"`
	Confidence     float64         `json:"confidence"`
	Audio          *AudioFeatures  `json:"audioFeatures,omitempty"`
	Face           *FaceFeatures   `json:"faceFeatures,omitempty"`
	Transcript     string          `json:"transcript,omitempty"`
	Duration       time.Duration   `json:"duration"`
}

// Sink receives live updates while a session runs. Implementations must not
// block; engines call them from their tick goroutines.
type Sink interface {
	StateChanged(m Modality, s State)
	AudioFeatures(f AudioFeatures)
	Transcript(text string)
	Emotions(scores []EmotionScore)
	FaceFeatures(f FaceFeatures)
	Notice(m Modality, err error)
	NoticeCleared(m Modality)
}

// NopSink discards every update.
type NopSink struct{}

func (NopSink) StateChanged(Modality, State) {}
func (NopSink) AudioFeatures(AudioFeatures)   {}
func (NopSink) Transcript(string)             {}
func (NopSink) Emotions([]EmotionScore)       {}
func (NopSink) FaceFeatures(FaceFeatures)     {}
func (NopSink) Notice(Modality, error)        {}
func (NopSink) NoticeCleared(Modality)        {}
