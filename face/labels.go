package face

import (
	"moodscan/scoring"
	"moodscan/session"
)

const (
	DefaultColor  = "bg-gray-500"
	NoFaceInsight = "No se detectó rostro. Por favor, asegúrate de estar frente a la cámara."
)

type label struct {
	name  string
	color string
}

var labels = map[string]label{
	"happy":     {"Felicidad", "bg-yellow-500"},
	"sad":       {"Tristeza", "bg-blue-500"},
	"angry":     {"Enojo", "bg-red-500"},
	"surprised": {"Sorpresa", "bg-purple-500"},
	"neutral":   {"Neutralidad", "bg-gray-500"},
	"fearful":   {"Miedo", "bg-orange-500"},
	"disgusted": {"Disgusto", "bg-green-500"},
}

// Label returns the display name for an expression, or the expression
// itself when it is unknown.
func Label(expr string) string {
	if l, ok := labels[expr]; ok {
		return l.name
	}
	return expr
}

func Color(expr string) string {
	if l, ok := labels[expr]; ok {
		return l.color
	}
	return DefaultColor
}

// insightInput carries the last feature snapshot, nil when the last
// detection had no usable landmarks.
type insightInput struct {
	Features *session.FaceFeatures
}

func withFeatures(pred func(f session.FaceFeatures) bool) func(insightInput) bool {
	return func(in insightInput) bool { return in.Features != nil && pred(*in.Features) }
}

var insightRules = scoring.RuleTable[insightInput]{
	{Emotion: "happy", Insight: "Tu expresión facial refleja happiness y positividad"},
	{Emotion: "happy", When: withFeatures(func(f session.FaceFeatures) bool { return f.SymmetryScore > 0.8 }),
		Insight: "Alta simetría facial detected, indicando autenticidad emocional"},
	{Emotion: "sad", Insight: "Tus expresiones muestran tristeza y introspección"},
	{Emotion: "sad", When: withFeatures(func(f session.FaceFeatures) bool { return f.EyeOpenness < 10 }),
		Insight: "Ojos ligeramente cerrados pueden indicar tristeza profunda"},
	{Emotion: "angry", Insight: "Se detectan expresiones de enojo o frustración"},
	{Emotion: "angry", Insight: "La tensión facial puede estar relacionada con estrés"},
	{Emotion: "surprised", Insight: "Tu rostro muestra sorpresa o asombro"},
	{Emotion: "surprised", Insight: "Las cejas elevadas indican curiosidad o sorpresa"},
	{Emotion: "neutral", Insight: "Tu expresión es calm y equilibrada"},
	{Emotion: "neutral", Insight: "Estado emocional neutro, buena base para el análisis"},
	{Emotion: "fearful", Insight: "Se detectan señales de miedo o ansiedad"},
	{Emotion: "fearful", Insight: "Considera técnicas de relajación si esto persiste"},
	{Emotion: "disgusted", Insight: "Expresiones de disgusto o desaprobación"},
	{Emotion: "disgusted", Insight: "Puede estar relacionado con estímulos externos negativos"},

	{When: withFeatures(func(f session.FaceFeatures) bool { return f.SymmetryScore < 0.6 }),
		Insight: "Asimetría facial detectada, posible tensión muscular"},
	{When: withFeatures(func(f session.FaceFeatures) bool { return f.MouthOpenness > 20 }),
		Insight: "Boca abierta sugiere sorpresa o expresiones de stress"},
	{When: withFeatures(func(f session.FaceFeatures) bool { return f.EyeOpenness < 5 }),
		Insight: "Ojos entrecerrados pueden indicar fatiga o tristeza"},
}
