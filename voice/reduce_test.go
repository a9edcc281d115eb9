package voice

import (
	"slices"
	"strings"
	"testing"
	"time"

	"moodscan/session"
)

func TestReduceKeywordsWithDefaultFeatures(t *testing.T) {
	res, err := reduce(snapshot{
		id:         "s1",
		transcript: "estoy tranquilo y relajado ",
		confidence: 0.85,
		duration:   4 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.PrimaryEmotion != "Calma" {
		t.Errorf("PrimaryEmotion = %q, want Calma", res.PrimaryEmotion)
	}
	if res.Audio == nil || res.Audio.Pitch != DefaultPitch || res.Audio.Volume != DefaultVolume || res.Audio.Energy != DefaultEnergy {
		t.Errorf("Audio = %+v, want defaults", res.Audio)
	}
	if res.Transcript != "estoy tranquilo y relajado" {
		t.Errorf("Transcript = %q", res.Transcript)
	}
	if res.Emotions[0].Name != "Calma" || res.Emotions[0].Value != 100 || res.Emotions[0].Color != "bg-purple-500" {
		t.Errorf("top emotion = %+v", res.Emotions[0])
	}
	total := 0
	for _, e := range res.Emotions {
		total += e.Value
	}
	if total != 100 || len(res.Emotions) != len(Categories) {
		t.Errorf("emotions = %+v", res.Emotions)
	}
	want := []string{"Tu tono refleja tranquility y balance emocional"}
	if !slices.Equal(res.Insights, want) {
		t.Errorf("Insights = %q, want %q", res.Insights, want)
	}
	if res.Confidence != 0.85 || res.Duration != 4*time.Second || res.ID != "s1" || res.Modality != session.Voice {
		t.Errorf("result metadata = %+v", res)
	}
}

func TestReduceUsesPublishedFeatures(t *testing.T) {
	f := session.AudioFeatures{Pitch: 210, Volume: 0.9, SpeakingRate: 1.6, Energy: 0.9}
	res, err := reduce(snapshot{transcript: "me siento feliz", features: f, published: true, pitchAvg: 99})
	if err != nil {
		t.Fatal(err)
	}
	if *res.Audio != f {
		t.Errorf("Audio = %+v, want %+v", *res.Audio, f)
	}
	if res.PrimaryEmotion != "Alegria" {
		t.Errorf("PrimaryEmotion = %q", res.PrimaryEmotion)
	}
	want := []string{
		"Tu tono de voz refleja optimismo y energía positiva",
		"Hablas con entusiasmo y rapidez, indicando excitement",
		"Hablas con gran expresividad y energy",
		"Alta energía vocal detected, muy positivo",
	}
	if !slices.Equal(res.Insights, want) {
		t.Errorf("Insights = %q", res.Insights)
	}
}

func TestClassifyTieGoesToEarlierCategory(t *testing.T) {
	// confianza and calma both match pitch and energy only
	f := session.AudioFeatures{Pitch: 150, Volume: 0.5, Energy: 0.5}
	primary, shares := Classify(f, "")
	if primary != "confianza" {
		t.Errorf("primary = %q, want confianza", primary)
	}
	for i, s := range shares {
		if s != 0 {
			t.Errorf("share[%d] = %v, want 0", i, s)
		}
	}
}

func TestClassifyFallback(t *testing.T) {
	if got, _ := Classify(session.AudioFeatures{}, "nada que ver"); got != FallbackEmotion {
		t.Errorf("primary = %q, want %q", got, FallbackEmotion)
	}
}

func TestClassifyKeywordsOutweighAcoustics(t *testing.T) {
	// acoustics fit alegria perfectly, words are all tristeza
	f := session.AudioFeatures{Pitch: 250, SpeakingRate: 1.5, Energy: 0.8}
	primary, shares := Classify(f, "estoy triste, muy triste")
	if primary != "tristeza" {
		t.Errorf("primary = %q, want tristeza", primary)
	}
	if shares[1] != 100 {
		t.Errorf("tristeza share = %v", shares[1])
	}
}

func TestLongTranscriptInsight(t *testing.T) {
	words := make([]string, 0, 120)
	for range 120 {
		words = append(words, "palabra")
	}
	in := insightInput{
		AudioFeatures: session.AudioFeatures{Volume: 0.5, Energy: 0.5},
		Transcript:    strings.Join(words, " "),
	}
	got := insightRules.Evaluate("confianza", in)
	if !slices.Contains(got, "Expresión verbal muy detallada, indicating thoughtfulness") {
		t.Errorf("insights = %q", got)
	}
}

func TestSpeakingRate(t *testing.T) {
	if got := speakingRate(3, 30*time.Second); got != 6 {
		t.Errorf("speakingRate = %v, want 6", got)
	}
	if got := speakingRate(3, 0); got != 0 {
		t.Errorf("speakingRate at zero elapsed = %v", got)
	}
}
