package face

import (
	"math"
	"testing"
)

func TestSymmetryMirroredJaw(t *testing.T) {
	d := FakeFace(nil, 12, 0)
	if got := Symmetry(d.Landmarks[:17]); got != 1.0 {
		t.Errorf("Symmetry = %v, want 1", got)
	}
}

func TestSymmetryNoMirrorMatches(t *testing.T) {
	// x = 10*i^2: centroid 880, every mirror lands at least 20 away
	pts := make([]Point, 17)
	for i := range pts {
		pts[i] = Point{X: float64(10 * i * i), Y: 100}
	}
	if got := Symmetry(pts); got != 0 {
		t.Errorf("Symmetry = %v, want 0", got)
	}
}

func TestSymmetryPartial(t *testing.T) {
	// centroid 40: 0 and 80 mirror each other, 40 mirrors itself
	pts := []Point{{X: 0}, {X: 80}, {X: 40}, {X: 40}}
	if got := Symmetry(pts); got != 1 {
		t.Errorf("Symmetry = %v, want 1", got)
	}
	pts = []Point{{X: 0}, {X: 10}, {X: 100}}
	// centroid 36.67: mirrors 73.3, 63.3, -26.7; none within 10
	if got := Symmetry(pts); got != 0 {
		t.Errorf("Symmetry = %v, want 0", got)
	}
	if got := Symmetry(nil); got != 0 {
		t.Errorf("Symmetry(nil) = %v", got)
	}
}

func TestAnalyze(t *testing.T) {
	d := FakeFace(nil, 12, 25)
	f, ok := Analyze(d.Landmarks, 0.8)
	if !ok {
		t.Fatal("Analyze rejected a full landmark set")
	}
	if !f.FaceDetected || f.Confidence != 0.8 {
		t.Errorf("features = %+v", f)
	}
	if math.Abs(f.EyeOpenness-12) > 1e-9 || math.Abs(f.MouthOpenness-25) > 1e-9 {
		t.Errorf("eye = %v mouth = %v", f.EyeOpenness, f.MouthOpenness)
	}
	if f.SymmetryScore != 1 {
		t.Errorf("symmetry = %v", f.SymmetryScore)
	}

	if _, ok := Analyze(d.Landmarks[:40], 0.8); ok {
		t.Error("Analyze accepted a partial landmark set")
	}
}

func TestRankedOrdersByConfidence(t *testing.T) {
	d := Detection{Expressions: map[string]float64{"sad": 0.1, "happy": 0.7, "neutral": 0.1, "angry": 0.1}}
	got := d.Ranked()
	want := []string{"happy", "angry", "neutral", "sad"}
	for i, w := range want {
		if got[i].Emotion != w {
			t.Fatalf("Ranked = %+v, want order %v", got, want)
		}
	}
}
