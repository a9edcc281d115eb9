package voice

import (
	"fmt"
	"strings"
	"time"

	"moodscan/scoring"
	"moodscan/session"
)

// snapshot is everything the final reduction reads, copied out of the
// engine once the loops have stopped.
type snapshot struct {
	id           string
	transcript   string
	features     session.AudioFeatures
	published    bool
	pitchAvg     float64
	volumeAvg    float64
	speakingRate float64
	confidence   float64
	duration     time.Duration
}

// finalFeatures substitutes defaults when no tick ever published.
func (s snapshot) finalFeatures() session.AudioFeatures {
	if s.published {
		return s.features
	}
	return session.AudioFeatures{
		Pitch:        orDefault(s.pitchAvg, DefaultPitch),
		Volume:       orDefault(s.volumeAvg, DefaultVolume),
		SpeakingRate: s.speakingRate,
		Energy:       DefaultEnergy,
	}
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// Classify blends acoustic range matches with keyword shares and returns
// the winning category name and the per-category keyword shares.
func Classify(f session.AudioFeatures, transcript string) (string, []float64) {
	shares := scoring.KeywordShares(transcript, Categories)
	names := make([]string, len(Categories))
	combined := make([]float64, len(Categories))
	for i, c := range Categories {
		names[i] = c.Name
		combined[i] = acousticWeight*c.Score(f) + textWeight*shares[i]/100
	}
	return scoring.ArgMax(names, combined, FallbackEmotion), shares
}

func reduce(s snapshot) (res *session.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = session.E(session.KindReduction, "voice.reduce", fmt.Errorf("%v", r))
		}
	}()

	transcript := strings.TrimSpace(s.transcript)
	f := s.finalFeatures()
	primary, shares := Classify(f, transcript)

	emotions := make([]scoring.Share, len(Categories))
	for i, c := range Categories {
		emotions[i] = scoring.Share{Name: scoring.Title(c.Name), Value: scoring.Round(shares[i]), Color: c.Color}
	}

	return &session.Result{
		ID:             s.id,
		Modality:       session.Voice,
		Emotions:       scoring.Rank(emotions),
		PrimaryEmotion: scoring.Title(primary),
		Insights:       insightRules.Evaluate(primary, insightInput{AudioFeatures: f, Transcript: transcript}),
		Confidence:     s.confidence,
		Audio:          &f,
		Transcript:     transcript,
		Duration:       s.duration,
	}, nil
}
