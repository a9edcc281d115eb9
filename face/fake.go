package face

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
)

// FakeDetector replays scripted results, one per Detect call. The last
// script repeats once the rest are used up; with none it finds no faces.
type FakeDetector struct {
	mu      sync.Mutex
	results [][]Detection
	errs    []error
	calls   atomic.Int32
}

func NewFakeDetector(results ...[]Detection) *FakeDetector {
	return &FakeDetector{results: results}
}

// FailNext makes the next Detect calls return errs in order.
func (f *FakeDetector) FailNext(errs ...error) {
	f.mu.Lock()
	f.errs = append(f.errs, errs...)
	f.mu.Unlock()
}

func (f *FakeDetector) Calls() int { return int(f.calls.Load()) }

func (f *FakeDetector) Detect(ctx context.Context, _ image.Image) ([]Detection, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	if len(f.results) == 0 {
		return nil, nil
	}
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return r, nil
}

// FakeFace builds a detection with a symmetric face: jaw points mirrored
// around x=100, eyes open by eye pixels and mouth open by mouth pixels.
func FakeFace(expressions map[string]float64, eye, mouth float64) Detection {
	lm := make([]Point, LandmarkCount)
	for i := 0; i < 17; i++ {
		lm[i] = Point{X: 100 + float64(i-8)*10, Y: 150 + float64(abs(i-8))*-5}
	}
	for _, pair := range append(append([][2]int{}, leftLids...), rightLids...) {
		lm[pair[0]] = Point{X: 80, Y: 90}
		lm[pair[1]] = Point{X: 80, Y: 90 + eye}
	}
	lm[innerLips[0]] = Point{X: 100, Y: 170}
	lm[innerLips[1]] = Point{X: 100, Y: 170 + mouth}
	return Detection{Score: 0.9, Expressions: expressions, Landmarks: lm}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
