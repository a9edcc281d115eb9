package voice

import (
	"strings"

	"moodscan/scoring"
	"moodscan/session"
)

const (
	// FallbackEmotion wins when no category scores above zero.
	FallbackEmotion = "calma"

	DefaultPitch  = 150.0
	DefaultVolume = 0.5
	DefaultEnergy = 0.5

	acousticWeight = 0.4
	textWeight     = 0.6
)

type patternSpec struct {
	name     string
	color    string
	keywords []string
	pitch    scoring.Range
	rate     scoring.Range
	energy   scoring.Range
}

var patternSpecs = []patternSpec{
	{
		name:     "alegria",
		color:    "bg-yellow-500",
		keywords: []string{"feliz", "alegre", "contento", "divertido", "genial", "fantástico", "excelente", "bueno", "bien"},
		pitch:    scoring.Range{Min: 150, Max: 300},
		rate:     scoring.Range{Min: 1.2, Max: 2.0},
		energy:   scoring.Range{Min: 0.6, Max: 1.0},
	},
	{
		name:     "tristeza",
		color:    "bg-blue-500",
		keywords: []string{"triste", "deprimido", "mal", "peor", "horrible", "terrible", "dolor", "pena"},
		pitch:    scoring.Range{Min: 80, Max: 150},
		rate:     scoring.Range{Min: 0.5, Max: 0.8},
		energy:   scoring.Range{Min: 0.1, Max: 0.4},
	},
	{
		name:     "ansiedad",
		color:    "bg-orange-500",
		keywords: []string{"ansioso", "nervioso", "preocupado", "estresado", "inquieto", "nervios", "pánico"},
		pitch:    scoring.Range{Min: 200, Max: 400},
		rate:     scoring.Range{Min: 1.5, Max: 2.5},
		energy:   scoring.Range{Min: 0.4, Max: 0.8},
	},
	{
		name:     "confianza",
		color:    "bg-green-500",
		keywords: []string{"seguro", "confiado", "certain", "definitivamente", "claro", "obvio"},
		pitch:    scoring.Range{Min: 100, Max: 200},
		rate:     scoring.Range{Min: 0.8, Max: 1.2},
		energy:   scoring.Range{Min: 0.5, Max: 0.9},
	},
	{
		name:     "calma",
		color:    "bg-purple-500",
		keywords: []string{"tranquilo", "relajado", "pacífico", "sereno", "calma", "suave", "lento"},
		pitch:    scoring.Range{Min: 90, Max: 180},
		rate:     scoring.Range{Min: 0.6, Max: 1.0},
		energy:   scoring.Range{Min: 0.2, Max: 0.6},
	},
}

// Categories is the fixed voice category table, in tie-break order.
var Categories = buildCategories()

func buildCategories() []scoring.Category[session.AudioFeatures] {
	cats := make([]scoring.Category[session.AudioFeatures], 0, len(patternSpecs))
	for _, p := range patternSpecs {
		cats = append(cats, scoring.Category[session.AudioFeatures]{
			Name:     p.name,
			Color:    p.color,
			Keywords: p.keywords,
			Criteria: []scoring.Criterion[session.AudioFeatures]{
				scoring.InRange(0.3, p.pitch, func(f session.AudioFeatures) float64 { return f.Pitch }),
				scoring.InRange(0.3, p.rate, func(f session.AudioFeatures) float64 { return f.SpeakingRate }),
				scoring.InRange(0.4, p.energy, func(f session.AudioFeatures) float64 { return f.Energy }),
			},
		})
	}
	return cats
}

// insightInput is what the voice insight rules look at.
type insightInput struct {
	session.AudioFeatures
	Transcript string
}

var insightRules = scoring.RuleTable[insightInput]{
	{Emotion: "alegria", Insight: "Tu tono de voz refleja optimismo y energía positiva"},
	{Emotion: "alegria", When: func(in insightInput) bool { return in.SpeakingRate > 1.5 },
		Insight: "Hablas con entusiasmo y rapidez, indicando excitement"},
	{Emotion: "tristeza", Insight: "Tu tono muestra melancholy y introspección"},
	{Emotion: "tristeza", When: func(in insightInput) bool { return in.Pitch > 0 && in.Pitch < 120 },
		Insight: "El tono más grave indica tristeza o reflexión profunda"},
	{Emotion: "ansiedad", Insight: "Se detectan patrones de tensión y nerviosismo"},
	{Emotion: "ansiedad", When: func(in insightInput) bool { return in.SpeakingRate > 1.8 },
		Insight: "El habla rápida puede indicar anxiety o urgencia"},
	{Emotion: "confianza", Insight: "Tu voz proyecta seguridad y determinación"},
	{Emotion: "confianza", When: func(in insightInput) bool { return in.Energy > 0.7 },
		Insight: "Alta energía vocal indica self-confidence"},
	{Emotion: "calma", Insight: "Tu tono refleja tranquility y balance emocional"},
	{Emotion: "calma", When: func(in insightInput) bool { return in.SpeakingRate > 0 && in.SpeakingRate < 1.0 },
		Insight: "El habla pausada indica mindfulness y control"},

	{When: func(in insightInput) bool { return in.Volume < 0.3 },
		Insight: "Tu volumen de voz es bajo, puede indicar timidez o reflexión"},
	{When: func(in insightInput) bool { return in.Volume > 0.8 },
		Insight: "Hablas con gran expresividad y energy"},
	{When: func(in insightInput) bool { return in.Energy < 0.4 },
		Insight: "Niveles de energía bajos pueden indicar fatiga o desánimo"},
	{When: func(in insightInput) bool { return in.Energy > 0.8 },
		Insight: "Alta energía vocal detected, muy positivo"},
	{When: func(in insightInput) bool {
		return len(in.Transcript) > 50 && len(strings.Split(in.Transcript, " ")) > 100
	}, Insight: "Expresión verbal muy detallada, indicating thoughtfulness"},
}
