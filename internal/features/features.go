// Package features wraps the keypoint detector, descriptor matcher, and
// RANSAC homography estimator the tracker uses to register a frame (or a
// quad region of a frame) against a slide image.
package features

import (
	"fmt"

	"gocv.io/x/gocv"

	"slidesync/internal/geom"
	"slidesync/internal/mempool"
	"slidesync/internal/quad"
)

// Keypoints bundles a detector's output for one image: the keypoints
// themselves and their binary descriptors, kept alive together since a
// descriptor row is meaningless without its keypoint.
type Keypoints struct {
	Points      []gocv.KeyPoint
	Descriptors gocv.Mat
}

// Close releases the underlying descriptor matrix.
func (k Keypoints) Close() error {
	return k.Descriptors.Close()
}

// Detector finds and describes keypoints in an image using an ORB feature
// detector, the binary-descriptor workhorse the original tracker relies on
// for being fast enough to run once per processed frame.
type Detector struct {
	orb gocv.ORB
}

// NewDetector constructs a Detector configured for nFeatures keypoints.
func NewDetector(nFeatures int) *Detector {
	return &Detector{orb: gocv.NewORBWithParams(
		nFeatures, 1.2, 8, 31, 0, 2, gocv.ORBScoreTypeHarris, 31, 20,
	)}
}

// Close releases the underlying detector.
func (d *Detector) Close() error {
	return d.orb.Close()
}

// Detect returns the keypoints and descriptors found in img.
func (d *Detector) Detect(img gocv.Mat) Keypoints {
	pts, desc := d.orb.DetectAndCompute(img, gocv.NewMat())
	return Keypoints{Points: pts, Descriptors: desc}
}

// Match is one accepted correspondence between a query keypoint and a
// train (reference) keypoint, surviving Lowe's ratio test.
type Match struct {
	QueryIdx int
	TrainIdx int
	Distance float32
}

// Matcher performs Hamming-distance KNN matching between ORB descriptors
// with Lowe's ratio test applied to reject ambiguous matches.
type Matcher struct {
	bf        gocv.BFMatcher
	maxRatio  float64
	minMatch  int
}

// NewMatcher builds a Matcher that accepts a candidate match only when its
// best distance is less than maxRatio times its second-best distance, and
// that reports homography-readiness only once minMatch matches survive.
func NewMatcher(maxRatio float64, minMatch int) *Matcher {
	return &Matcher{bf: gocv.NewBFMatcher(), maxRatio: maxRatio, minMatch: minMatch}
}

// Close releases the underlying matcher.
func (m *Matcher) Close() error {
	return m.bf.Close()
}

// MatchKNN matches query descriptors against train descriptors and returns
// the matches surviving the ratio test.
func (m *Matcher) MatchKNN(query, train gocv.Mat) []Match {
	if query.Empty() || train.Empty() {
		return nil
	}
	knn := m.bf.KnnMatch(query, train, 2)
	out := make([]Match, 0, len(knn))
	for _, pair := range knn {
		if len(pair) < 2 {
			continue
		}
		best, second := pair[0], pair[1]
		if second.Distance == 0 {
			continue
		}
		if float64(best.Distance) < m.maxRatio*float64(second.Distance) {
			out = append(out, Match{QueryIdx: best.QueryIdx, TrainIdx: best.TrainIdx, Distance: best.Distance})
		}
	}
	return out
}

// HasEnoughMatches reports whether matches has enough entries to attempt a
// homography fit.
func (m *Matcher) HasEnoughMatches(matches []Match) bool {
	return len(matches) >= m.minMatch
}

// Homography is the outcome of a RANSAC homography fit: the 3x3 matrix
// itself plus the inlier mask aligned with the input match slice.
type Homography struct {
	H       gocv.Mat
	Inliers []bool
	Inlier  int
}

// Close releases the underlying matrix and returns the inlier mask buffer
// to the shared pool, since a fresh one is allocated per frame on the
// tracker's hot path.
func (h Homography) Close() error {
	mempool.PutBool(h.Inliers)
	return h.H.Close()
}

// EstimateHomography fits a homography mapping query keypoints to train
// keypoints via RANSAC with the given reprojection-error threshold (pixels).
// It returns an error if fewer than four matches are supplied, since
// gocv.FindHomography requires at least four point correspondences.
func EstimateHomography(query, train Keypoints, matches []Match, ransacThreshold float64) (Homography, error) {
	if len(matches) < 4 {
		return Homography{}, fmt.Errorf("features: need at least 4 matches for homography, got %d", len(matches))
	}

	srcPoints := make([]gocv.Point2f, len(matches))
	dstPoints := make([]gocv.Point2f, len(matches))
	for i, m := range matches {
		qp := query.Points[m.QueryIdx]
		tp := train.Points[m.TrainIdx]
		srcPoints[i] = gocv.Point2f{X: float32(qp.X), Y: float32(qp.Y)}
		dstPoints[i] = gocv.Point2f{X: float32(tp.X), Y: float32(tp.Y)}
	}

	srcVec := gocv.NewPoint2fVectorFromPoints(srcPoints)
	defer srcVec.Close()
	dstVec := gocv.NewPoint2fVectorFromPoints(dstPoints)
	defer dstVec.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	h := gocv.FindHomography(srcVec, &dstVec, gocv.HomographyMethodRANSAC, ransacThreshold, &mask, 2000, 0.995)

	inliers := mempool.GetBool(len(matches))
	inlierCount := 0
	for i := range matches {
		v := mask.GetUCharAt(i, 0)
		inliers[i] = v != 0
		if inliers[i] {
			inlierCount++
		}
	}

	return Homography{H: h, Inliers: inliers, Inlier: inlierCount}, nil
}

// InlierReprojection returns, for every inlier match, the query keypoint
// mapped through the fitted homography and the train keypoint it was
// matched to, so the caller can score the fit's actual reprojection error
// rather than relying on the inlier count alone.
func (h Homography) InlierReprojection(query, train Keypoints, matches []Match) (mapped, observed []geom.Point) {
	mapped = make([]geom.Point, 0, h.Inlier)
	observed = make([]geom.Point, 0, h.Inlier)
	for i, m := range matches {
		if i >= len(h.Inliers) || !h.Inliers[i] {
			continue
		}
		qp := query.Points[m.QueryIdx]
		tp := train.Points[m.TrainIdx]
		mx, my := quad.ApplyPoint(h.H, qp.X, qp.Y)
		mapped = append(mapped, geom.Point{X: mx, Y: my})
		observed = append(observed, geom.Point{X: tp.X, Y: tp.Y})
	}
	return mapped, observed
}
