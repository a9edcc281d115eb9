package face

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"moodscan/scoring"
	"moodscan/session"
)

const (
	// DefaultConfidence is reported when no tick ever recorded emotions.
	DefaultConfidence = 0.5
	majorityShare     = 0.6
	majorityMinTicks  = 3
)

// frame is one recorded detection tick.
type frame struct {
	emotions []session.EmotionScore
	features *session.FaceFeatures
}

type snapshot struct {
	id       string
	frames   []frame
	duration time.Duration
}

// defaultShares stands in when nothing was ever detected.
var defaultShares = []scoring.Share{
	{Name: "Neutralidad", Value: 70, Color: "bg-gray-500"},
	{Name: "Felicidad", Value: 30, Color: "bg-yellow-500"},
}

// Aggregate averages each expression over the ticks it appeared in,
// normalizes the averages to percentages and ranks them. It also returns
// the raw label of the top entry, "neutral" for an empty history.
func Aggregate(history [][]session.EmotionScore) ([]scoring.Share, string) {
	if len(history) == 0 {
		return append([]scoring.Share(nil), defaultShares...), "neutral"
	}

	var order []string
	totals := map[string]float64{}
	counts := map[string]int{}
	for _, tick := range history {
		for _, e := range tick {
			if _, seen := counts[e.Emotion]; !seen {
				order = append(order, e.Emotion)
			}
			totals[e.Emotion] += e.Confidence
			counts[e.Emotion]++
		}
	}
	if len(order) == 0 {
		return append([]scoring.Share(nil), defaultShares...), "neutral"
	}

	averages := make([]float64, len(order))
	for i, label := range order {
		averages[i] = totals[label] / float64(counts[label])
	}
	pct := scoring.Percentages(averages)

	entries := make([]entry, len(order))
	for i, label := range order {
		entries[i] = entry{
			label: label,
			share: scoring.Share{Name: Label(label), Value: scoring.Round(pct[i]), Color: Color(label)},
		}
	}
	slices.SortStableFunc(entries, func(a, b entry) int { return cmp.Compare(b.share.Value, a.share.Value) })

	shares := make([]scoring.Share, len(entries))
	for i, e := range entries {
		shares[i] = e.share
	}
	return shares, entries[0].label
}

type entry struct {
	label string
	share scoring.Share
}

// majority returns the label that topped at least the majority share of
// ticks, when there are enough ticks to say.
func majority(history [][]session.EmotionScore) (string, bool) {
	if len(history) <= majorityMinTicks {
		return "", false
	}
	var order []string
	counts := map[string]int{}
	for _, tick := range history {
		if len(tick) == 0 {
			continue
		}
		top := tick[0].Emotion
		if counts[top] == 0 {
			order = append(order, top)
		}
		counts[top]++
	}
	best, bestCount := "", 0
	for _, label := range order {
		if counts[label] > bestCount {
			best, bestCount = label, counts[label]
		}
	}
	if best == "" || float64(bestCount) < majorityShare*float64(len(history)) {
		return "", false
	}
	return best, true
}

func reduce(s snapshot) (res *session.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = session.E(session.KindReduction, "face.reduce", fmt.Errorf("%v", r))
		}
	}()

	history := make([][]session.EmotionScore, len(s.frames))
	for i, f := range s.frames {
		history[i] = f.emotions
	}
	shares, primary := Aggregate(history)

	out := &session.Result{
		ID:             s.id,
		Modality:       session.Face,
		Emotions:       shares,
		PrimaryEmotion: shares[0].Name,
		Confidence:     DefaultConfidence,
		Duration:       s.duration,
	}

	if len(s.frames) == 0 {
		out.Insights = []string{NoFaceInsight}
		out.Face = &session.FaceFeatures{}
		return out, nil
	}

	last := s.frames[len(s.frames)-1]
	if len(last.emotions) > 0 {
		out.Confidence = last.emotions[0].Confidence
	}
	if last.features != nil {
		f := *last.features
		out.Face = &f
	} else {
		out.Face = &session.FaceFeatures{}
	}

	out.Insights = insightRules.Evaluate(primary, insightInput{Features: last.features})
	if label, ok := majority(history); ok {
		out.Insights = append(out.Insights, "Tu estado emocional predominante es "+Label(label))
	}
	return out, nil
}
