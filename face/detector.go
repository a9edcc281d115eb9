// Package face runs expression detection over camera frames and reduces a
// session of detections into a session.Result.
//
// The camera stream outlives a single analysis: StopAnalysis keeps it open
// so the next StartAnalysis can reuse it, and only Close releases it.
package face

import (
	"cmp"
	"context"
	"image"
	"slices"

	"moodscan/session"
)

// LandmarkCount is the size of the landmark set the geometry expects.
const LandmarkCount = 68

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Detection is one face found in a frame.
type Detection struct {
	Score       float64            `json:"score"`
	Expressions map[string]float64 `json:"expressions"`
	Landmarks   []Point            `json:"landmarks"`
}

// Ranked returns the expressions ordered by descending confidence. Equal
// confidences are ordered by label so the result is stable.
func (d Detection) Ranked() []session.EmotionScore {
	out := make([]session.EmotionScore, 0, len(d.Expressions))
	for label, conf := range d.Expressions {
		out = append(out, session.EmotionScore{Emotion: label, Confidence: conf})
	}
	slices.SortFunc(out, func(a, b session.EmotionScore) int {
		if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
			return c
		}
		return cmp.Compare(a.Emotion, b.Emotion)
	})
	return out
}

// Detector finds faces with landmarks and expression confidences. Results
// are ordered best first.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// best picks the highest scoring detection.
func best(dets []Detection) Detection {
	return slices.MaxFunc(dets, func(a, b Detection) int { return cmp.Compare(a.Score, b.Score) })
}
