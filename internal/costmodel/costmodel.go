// Package costmodel scores how well a candidate homography explains a
// frame's observed quad against a reference quad, combining reprojection
// error, positional deviation, and shape deformation into a single cost
// the tracker minimizes when choosing among candidate matches.
package costmodel

import (
	"math"

	"slidesync/internal/geom"
	"slidesync/internal/quad"
)

// Thresholds holds every tunable constant the cost model and its
// downstream slide-match decision use. Defaults mirror spec.md's Design
// Notes (§9): small pixel "grace" allowances absorb jitter before cost
// grows, and the three cost ceilings gate increasingly permissive
// decisions (ordinary match, salvage match, hard-frame floor).
type Thresholds struct {
	DeviationGrace     float64
	DeformationGrace   float64
	SlideMatchCostMax  float64
	SalvageCostMax     float64
	HardFrameCostFloor float64

	// SlideMatchAbsoluteFloor and SlideMatchRelativeFloor are SlideMatch's
	// inlier-count/ratio gate: an inlier count at or above the absolute
	// floor always suffices, otherwise the inlier ratio against both
	// keypoint sets must clear the relative floor.
	SlideMatchAbsoluteFloor float64
	SlideMatchRelativeFloor float64
}

// DefaultThresholds returns the constants spec.md's Open Questions section
// settles on: 5px grace on both deviation and deformation, 20/40/1000 cost
// ceilings, a 20-inlier/10%-ratio slide-match floor. The tracker's separate
// keyframe-forcing deformation threshold (7px, §4.5 step 10) lives in
// internal/config/tracker settings, not here.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DeviationGrace:          5,
		DeformationGrace:        5,
		SlideMatchCostMax:       20,
		SalvageCostMax:          40,
		HardFrameCostFloor:      1000,
		SlideMatchAbsoluteFloor: 20,
		SlideMatchRelativeFloor: 0.1,
	}
}

// Cost is the decomposed and combined cost of a candidate match, plus the
// homography fit statistics SlideMatch's acceptance gate needs alongside
// Total.
type Cost struct {
	Reprojection float64
	Deviation    float64
	Deformation  float64
	Total        float64

	HomographyValid bool
	Inliers         int
	QueryKeypoints  int
	TrainKeypoints  int
}

// Reprojection returns the mean reprojection error (pixels) across the
// inlier matches: the arithmetic mean of the Euclidean distance between
// each train keypoint and its query keypoint mapped through the fitted
// homography. NaN distances are discarded before averaging, and the result
// is +Inf whenever fewer than 5 effective matches remain, independent of
// how many were supplied.
func Reprojection(mapped, observed []geom.Point) float64 {
	var sum float64
	n := 0
	for i := range mapped {
		d := geom.Dist(mapped[i], observed[i])
		if math.IsNaN(d) {
			continue
		}
		sum += d
		n++
	}
	if n < 5 {
		return math.Inf(1)
	}
	return sum / float64(n)
}

// Deviation returns how far the candidate quad's centroid has moved from
// the reference quad's centroid, in pixels, with DeviationGrace of
// allowance subtracted (never going below zero).
func Deviation(reference, candidate quad.Quad, grace float64) float64 {
	rc := centroid(reference)
	cc := centroid(candidate)
	d := geom.Dist(rc, cc)
	return graceSubtract(d, grace)
}

// Deformation returns the deformation cost contribution: the grace-adjusted
// maximum per-vertex displacement between the reference and candidate quad
// corners, after subtracting their average displacement (the quad's rigid
// translation, which is Deviation's concern, not Deformation's), squared.
func Deformation(reference, candidate quad.Quad, grace float64) float64 {
	d := graceSubtract(maxResidualDisplacement(reference, candidate), grace)
	return d * d
}

// maxResidualDisplacement returns the largest per-vertex displacement
// between reference and candidate's four corners, once the average
// displacement across all four vertices has been subtracted out.
func maxResidualDisplacement(reference, candidate quad.Quad) float64 {
	ref := corners(reference)
	cand := corners(candidate)

	disp := make([]geom.Point, len(ref))
	var avgX, avgY float64
	for i := range ref {
		disp[i] = geom.Point{X: cand[i].X - ref[i].X, Y: cand[i].Y - ref[i].Y}
		avgX += disp[i].X
		avgY += disp[i].Y
	}
	avgX /= float64(len(ref))
	avgY /= float64(len(ref))

	var max float64
	for _, d := range disp {
		residual := math.Hypot(d.X-avgX, d.Y-avgY)
		if residual > max {
			max = residual
		}
	}
	return max
}

func graceSubtract(v, grace float64) float64 {
	if v <= grace {
		return 0
	}
	return v - grace
}

func centroid(q quad.Quad) geom.Point {
	return geom.Point{
		X: (q.X1 + q.X2 + q.X3 + q.X4) / 4,
		Y: (q.Y1 + q.Y2 + q.Y3 + q.Y4) / 4,
	}
}

// corners returns q's four vertices in a fixed order, matched pairwise
// between any two quads being compared.
func corners(q quad.Quad) []geom.Point {
	return []geom.Point{{X: q.X1, Y: q.Y1}, {X: q.X2, Y: q.Y2}, {X: q.X3, Y: q.Y3}, {X: q.X4, Y: q.Y4}}
}

// Evaluate computes the combined cost of a candidate match. The total is
// the sum of the three components; callers compare Total against the
// Thresholds ceilings to decide whether to accept the candidate outright,
// accept it as a salvage match, or treat it as a hard frame. homographyValid,
// inliers, and the two keypoint totals feed SlideMatch's separate
// inlier-count/ratio gate.
func Evaluate(reprojection float64, reference, candidate quad.Quad, t Thresholds, homographyValid bool, inliers, queryKeypoints, trainKeypoints int) Cost {
	dev := Deviation(reference, candidate, t.DeviationGrace)
	def := Deformation(reference, candidate, t.DeformationGrace)
	return Cost{
		Reprojection:    reprojection,
		Deviation:       dev,
		Deformation:     def,
		Total:           reprojection + dev + def,
		HomographyValid: homographyValid,
		Inliers:         inliers,
		QueryKeypoints:  queryKeypoints,
		TrainKeypoints:  trainKeypoints,
	}
}

// SlideMatch reports whether a candidate's cost is low enough to accept as
// an ordinary slide match (the strictest tier): a non-empty homography, at
// least 5 inliers, either an inlier count at or above
// SlideMatchAbsoluteFloor or an inlier ratio at or above
// SlideMatchRelativeFloor against both keypoint sets, and a total cost
// strictly under SlideMatchCostMax.
func (c Cost) SlideMatch(t Thresholds) bool {
	if !c.HomographyValid || c.Inliers < 5 {
		return false
	}
	enoughInliers := float64(c.Inliers) >= t.SlideMatchAbsoluteFloor
	enoughRatio := c.QueryKeypoints > 0 && c.TrainKeypoints > 0 &&
		float64(c.Inliers)/float64(c.QueryKeypoints) >= t.SlideMatchRelativeFloor &&
		float64(c.Inliers)/float64(c.TrainKeypoints) >= t.SlideMatchRelativeFloor
	if !enoughInliers && !enoughRatio {
		return false
	}
	return c.Total < t.SlideMatchCostMax
}

// Salvageable reports whether a candidate's cost, while too high for an
// ordinary match, is still low enough to accept when the tracker has
// accumulated enough consecutive near-misses to prefer a salvage decision
// over declaring the frame unrecoverable.
func (c Cost) Salvageable(t Thresholds) bool {
	return c.Total <= t.SalvageCostMax
}

// HardFrame reports whether a candidate's cost is so high it should be
// treated as evidence of an occluded/blank/transition frame rather than a
// simple tracking miss.
func (c Cost) HardFrame(t Thresholds) bool {
	return c.Total >= t.HardFrameCostFloor
}
