// Package scoring holds the heuristic classification pieces shared by the
// voice and face engines: numeric ranges, weighted category criteria,
// keyword scans, arg-max selection, percentage distributions and insight
// rule tables. Everything is parameterised by the modality's feature type.
package scoring

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Range is an inclusive numeric interval.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// Criterion contributes Weight to a category score when Match holds.
type Criterion[F any] struct {
	Weight float64
	Match  func(F) bool
}

// InRange builds a criterion that matches when value(f) falls inside r.
func InRange[F any](weight float64, r Range, value func(F) float64) Criterion[F] {
	return Criterion[F]{
		Weight: weight,
		Match:  func(f F) bool { return r.Contains(value(f)) },
	}
}

// Category is one named emotion bucket. Keywords are lower-case substrings
// matched against transcript tokens; Criteria score a feature snapshot.
type Category[F any] struct {
	Name     string
	Color    string
	Keywords []string
	Criteria []Criterion[F]
}

// Score sums the weights of every criterion f satisfies.
func (c Category[F]) Score(f F) float64 {
	var s float64
	for _, cr := range c.Criteria {
		if cr.Match != nil && cr.Match(f) {
			s += cr.Weight
		}
	}
	return s
}

// MatchesToken reports whether token contains any of the category keywords.
func (c Category[F]) MatchesToken(token string) bool {
	for _, kw := range c.Keywords {
		if strings.Contains(token, kw) {
			return true
		}
	}
	return false
}

// KeywordShares scans text and returns, per category, the share (0-100) of
// keyword hits. A token counts once per category it matches. When nothing
// matches every share is 0.
func KeywordShares[F any](text string, cats []Category[F]) []float64 {
	counts := make([]float64, len(cats))
	for _, token := range strings.Fields(strings.ToLower(text)) {
		for i, c := range cats {
			if c.MatchesToken(token) {
				counts[i]++
			}
		}
	}
	return Percentages(counts)
}

// Percentages rescales values to sum to 100. A zero total yields zeros.
func Percentages(values []float64) []float64 {
	out := make([]float64, len(values))
	var total float64
	for _, v := range values {
		total += v
	}
	if total <= 0 {
		return out
	}
	for i, v := range values {
		out[i] = v / total * 100
	}
	return out
}

// ArgMax returns the name with the strictly highest positive score. Ties go
// to the earliest entry; fallback is returned when no score exceeds 0.
func ArgMax(names []string, scores []float64, fallback string) string {
	best, bestScore := fallback, 0.0
	for i, name := range names {
		if i < len(scores) && scores[i] > bestScore {
			best, bestScore = name, scores[i]
		}
	}
	return best
}

// Share is one entry of a ranked emotion distribution.
type Share struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
	Color string `json:"color"`
}

// Rank sorts shares by descending value, keeping input order among equals.
func Rank(shares []Share) []Share {
	slices.SortStableFunc(shares, func(a, b Share) int { return cmp.Compare(b.Value, a.Value) })
	return shares
}

// Round rounds half away from zero to the nearest integer percentage.
func Round(v float64) int { return int(math.Round(v)) }

// Title upper-cases the first rune of s.
func Title(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Rule produces Insight when the primary emotion matches Emotion (empty
// matches any) and When holds (nil always holds).
type Rule[F any] struct {
	Emotion string
	When    func(F) bool
	Insight string
}

// RuleTable is evaluated in order; output order follows table order.
type RuleTable[F any] []Rule[F]

func (t RuleTable[F]) Evaluate(primary string, f F) []string {
	var out []string
	for _, r := range t {
		if r.Emotion != "" && r.Emotion != primary {
			continue
		}
		if r.When != nil && !r.When(f) {
			continue
		}
		out = append(out, r.Insight)
	}
	return out
}
