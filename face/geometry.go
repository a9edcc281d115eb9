package face

import (
	"math"

	"moodscan/session"
)

// SymmetryTolerance is the horizontal distance within which a mirrored jaw
// point counts as matched.
const SymmetryTolerance = 10.0

// 68-point landmark indices.
var (
	jawline   = [2]int{0, 17}
	leftLids  = [][2]int{{37, 41}, {38, 40}}
	rightLids = [][2]int{{43, 47}, {44, 46}}
	innerLips = [2]int{62, 66}
)

// Analyze derives geometric features from a 68-point landmark set. It
// reports false when the set is incomplete.
func Analyze(lm []Point, confidence float64) (session.FaceFeatures, bool) {
	if len(lm) < LandmarkCount {
		return session.FaceFeatures{}, false
	}
	return session.FaceFeatures{
		FaceDetected:  true,
		SymmetryScore: Symmetry(lm[jawline[0]:jawline[1]]),
		EyeOpenness:   (lidGap(lm, leftLids) + lidGap(lm, rightLids)) / 2,
		MouthOpenness: math.Abs(lm[innerLips[1]].Y - lm[innerLips[0]].Y),
		Confidence:    confidence,
	}, true
}

func lidGap(lm []Point, pairs [][2]int) float64 {
	var sum float64
	for _, p := range pairs {
		sum += math.Abs(lm[p[1]].Y - lm[p[0]].Y)
	}
	return sum / float64(len(pairs))
}

// Symmetry mirrors every point across the mean x of the set and returns the
// fraction whose mirror lands within SymmetryTolerance of some point of the
// set, the point itself included.
func Symmetry(pts []Point) float64 {
	if len(pts) == 0 {
		return 0
	}
	var cx float64
	for _, p := range pts {
		cx += p.X
	}
	cx /= float64(len(pts))

	matched := 0
	for _, p := range pts {
		mx := 2*cx - p.X
		for _, q := range pts {
			if math.Abs(q.X-mx) < SymmetryTolerance {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(pts))
}
