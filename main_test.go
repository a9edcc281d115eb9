package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"moodscan/audio"
	"moodscan/camera"
	"moodscan/config"
	"moodscan/face"
	"moodscan/session"
	"moodscan/transcriber"
	"moodscan/voice"
)

func testVoiceAnalyzer(t *testing.T, tr transcriber.Transcriber) analyzer {
	t.Helper()
	cfg := config.Default().Voice
	cfg.FrameInterval = 5 * time.Millisecond
	e, err := voice.New(voice.Options{
		Config:      cfg,
		Audio:       audio.NewToneContext(220, 0.5, cfg.SampleRate, true),
		Transcriber: tr,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(e.Close)
	return voiceAnalyzer{e}
}

func TestRunHeadlessVoice(t *testing.T) {
	a := testVoiceAnalyzer(t, transcriber.NewFakeText("estoy tranquilo y relajado"))

	var out bytes.Buffer
	res, err := runHeadless(context.Background(), a, 100*time.Millisecond, &out)
	if err != nil {
		t.Fatal(err)
	}
	if res == nil {
		t.Fatal("no result")
	}

	var decoded struct {
		Modality   string   `json:"modality"`
		Main       string   `json:"mainEmotion"`
		Insights   []string `json:"insights"`
		Transcript string   `json:"transcript"`
	}
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if decoded.Modality != "voice" || decoded.Main != res.PrimaryEmotion || len(decoded.Insights) == 0 {
		t.Errorf("decoded = %+v", decoded)
	}
	if a.State() != session.Idle {
		t.Errorf("state after headless run = %v", a.State())
	}
}

func TestRunHeadlessStopsOnCancel(t *testing.T) {
	a := testVoiceAnalyzer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	var out bytes.Buffer
	res, err := runHeadless(ctx, a, 0, &out)
	if err != nil || res == nil {
		t.Fatalf("runHeadless = %v, %v", res, err)
	}
	if res.Transcript != "" {
		t.Errorf("transcript = %q without a recognizer", res.Transcript)
	}
}

func TestRunHeadlessStartFailure(t *testing.T) {
	e, err := voice.New(voice.Options{Audio: audio.NewDeniedContext(nil)})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	var out bytes.Buffer
	_, err = runHeadless(context.Background(), voiceAnalyzer{e}, time.Millisecond, &out)
	if !session.IsKind(err, session.KindPermission) {
		t.Errorf("err = %v, want permission error", err)
	}
	if out.Len() != 0 {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestRunHeadlessFace(t *testing.T) {
	cfg := config.Default().Face
	cfg.Interval = 5 * time.Millisecond
	det := face.NewFakeDetector([]face.Detection{face.FakeFace(map[string]float64{"happy": 0.9}, 12, 2)})
	models := face.NewModelCache("local", "", func(context.Context, string) (face.Detector, error) { return det, nil })
	e, err := face.New(face.Options{Config: cfg, Camera: camera.NewFakeContext(), Models: models})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	var out bytes.Buffer
	res, err := runHeadless(context.Background(), faceAnalyzer{e}, 60*time.Millisecond, &out)
	if err != nil {
		t.Fatal(err)
	}
	if res.PrimaryEmotion != "Felicidad" {
		t.Errorf("primary = %q", res.PrimaryEmotion)
	}
	if !strings.Contains(out.String(), `"faceFeatures"`) {
		t.Errorf("output missing face features:\n%s", out.String())
	}
}

func TestNewFaceAnalyzerNeedsFrames(t *testing.T) {
	_, _, err := newAnalyzer(options{modality: session.Face, cfg: config.Default()}, session.NopSink{})
	if err == nil {
		t.Error("expected an error without -frames")
	}
}

func TestDeviceLine(t *testing.T) {
	tests := []struct {
		dev  *audio.DeviceInfo
		want string
	}{
		{nil, "mic: system default"},
		{&audio.DeviceInfo{Name: "USB Mic"}, "mic: USB Mic"},
		{&audio.DeviceInfo{Name: "AirPods Pro"}, "mic: AirPods Pro (BT!)"},
	}
	for _, tt := range tests {
		if got := deviceLine(tt.dev); got != tt.want {
			t.Errorf("deviceLine(%v) = %q, want %q", tt.dev, got, tt.want)
		}
	}
}

type sentMsgs struct{ msgs []tea.Msg }

func (s *sentMsgs) Send(msg tea.Msg) { s.msgs = append(s.msgs, msg) }

func TestProgramSinkForwards(t *testing.T) {
	var sent sentMsgs
	sink := programSink{p: &sent}
	notice := errors.New("quiet")

	sink.StateChanged(session.Voice, session.Recording)
	sink.Transcript("hola")
	sink.Notice(session.Voice, notice)
	sink.NoticeCleared(session.Voice)

	if len(sent.msgs) != 4 {
		t.Fatalf("sent %d messages", len(sent.msgs))
	}
	if m, ok := sent.msgs[0].(stateMsg); !ok || m.State != session.Recording {
		t.Errorf("first = %#v", sent.msgs[0])
	}
	if m, ok := sent.msgs[1].(transcriptMsg); !ok || m != "hola" {
		t.Errorf("second = %#v", sent.msgs[1])
	}
	if m, ok := sent.msgs[2].(noticeMsg); !ok || m.Err != notice {
		t.Errorf("third = %#v", sent.msgs[2])
	}
}

func TestProgramRefDropsWithoutProgram(t *testing.T) {
	var ref programRef
	ref.Send(transcriptMsg("dropped"))
}
