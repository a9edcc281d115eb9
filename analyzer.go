package main

import (
	"context"

	"moodscan/face"
	"moodscan/session"
	"moodscan/voice"
)

// analyzer is the surface the front-ends drive. Both engines map onto it.
type analyzer interface {
	Modality() session.Modality
	RequestPermission(ctx context.Context) bool
	Start(ctx context.Context) error
	Stop(ctx context.Context) (*session.Result, error)
	State() session.State
	Err() error
	Close()
}

type voiceAnalyzer struct{ *voice.Engine }

func (voiceAnalyzer) Modality() session.Modality { return session.Voice }

func (v voiceAnalyzer) Start(ctx context.Context) error { return v.StartRecording(ctx) }

func (v voiceAnalyzer) Stop(ctx context.Context) (*session.Result, error) {
	return v.StopRecording(ctx)
}

type faceAnalyzer struct{ *face.Engine }

func (faceAnalyzer) Modality() session.Modality { return session.Face }

func (f faceAnalyzer) RequestPermission(ctx context.Context) bool {
	return f.RequestCameraPermission(ctx)
}

func (f faceAnalyzer) Start(ctx context.Context) error { return f.StartAnalysis(ctx) }

func (f faceAnalyzer) Stop(ctx context.Context) (*session.Result, error) {
	return f.StopAnalysis(ctx)
}
