package costmodel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"slidesync/internal/geom"
	"slidesync/internal/quad"
)

func TestReprojectionEmptyIsInfinite(t *testing.T) {
	require.True(t, math.IsInf(Reprojection(nil, nil), 1))
}

func TestReprojectionZeroWhenExact(t *testing.T) {
	pts := []geom.Point{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}, {X: 4, Y: 4}, {X: 5, Y: 5}}
	require.Equal(t, 0.0, Reprojection(pts, pts))
}

func TestReprojectionBelowFiveEffectiveMatchesIsInfinite(t *testing.T) {
	pts := []geom.Point{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}, {X: 4, Y: 4}}
	require.True(t, math.IsInf(Reprojection(pts, pts), 1))
}

func TestReprojectionIsArithmeticMeanAndDropsNaN(t *testing.T) {
	mapped := []geom.Point{{X: 0, Y: 0}, {X: 0, Y: 0}, {X: 0, Y: 0}, {X: 0, Y: 0}, {X: 0, Y: 0}, {X: math.NaN(), Y: 0}}
	observed := []geom.Point{{X: 3, Y: 0}, {X: 0, Y: 4}, {X: 0, Y: 0}, {X: 0, Y: 0}, {X: 0, Y: 0}, {X: 1, Y: 0}}
	// distances: 3, 4, 0, 0, 0, NaN(discarded) -> mean of (3,4,0,0,0) over 5 effective matches
	require.InDelta(t, 7.0/5.0, Reprojection(mapped, observed), 1e-9)
}

func TestDeviationWithinGraceIsZero(t *testing.T) {
	ref := quad.FromRect(100, 100)
	cand := quad.New(2, 2, 102, 2, 102, 102, 2, 102) // shifted by (2,2), within 5px grace
	require.Equal(t, 0.0, Deviation(ref, cand, 5))
}

func TestDeviationBeyondGraceIsPositive(t *testing.T) {
	ref := quad.FromRect(100, 100)
	cand := quad.New(20, 20, 120, 20, 120, 120, 20, 120)
	require.Greater(t, Deviation(ref, cand, 5), 0.0)
}

func TestDeformationIdenticalShapeIsZero(t *testing.T) {
	ref := quad.FromRect(100, 100)
	require.Equal(t, 0.0, Deformation(ref, ref, 5))
}

func TestDeformationPureTranslationIsZero(t *testing.T) {
	// A rigid shift displaces every vertex identically, so once the average
	// displacement is subtracted the residual at every vertex is zero -
	// Deviation's concern, not Deformation's.
	ref := quad.FromRect(100, 100)
	cand := quad.New(20, 20, 120, 20, 120, 120, 20, 120)
	require.Equal(t, 0.0, Deformation(ref, cand, 5))
}

func TestDeformationStretchBeyondGraceIsQuadratic(t *testing.T) {
	ref := quad.FromRect(100, 100)
	// Only the bottom-right corner moves; its residual after subtracting
	// the (small, non-zero) average displacement exceeds the 5px grace.
	cand := quad.New(0, 0, 100, 0, 120, 120, 0, 100)
	d := Deformation(ref, cand, 5)
	require.Greater(t, d, 0.0)
}

func TestEvaluateAndTierClassification(t *testing.T) {
	thr := DefaultThresholds()
	ref := quad.FromRect(100, 100)
	cost := Evaluate(1.0, ref, ref, thr, true, 25, 200, 200)
	require.True(t, cost.SlideMatch(thr))
	require.True(t, cost.Salvageable(thr))
	require.False(t, cost.HardFrame(thr))
}

func TestHardFrameAtFloor(t *testing.T) {
	thr := DefaultThresholds()
	cost := Cost{Total: thr.HardFrameCostFloor}
	require.True(t, cost.HardFrame(thr))
}

func TestSlideMatchRejectsEmptyHomography(t *testing.T) {
	thr := DefaultThresholds()
	cost := Cost{Total: 1, HomographyValid: false, Inliers: 25, QueryKeypoints: 200, TrainKeypoints: 200}
	require.False(t, cost.SlideMatch(thr))
}

func TestSlideMatchRejectsFewInliersEvenWithLowCost(t *testing.T) {
	thr := DefaultThresholds()
	cost := Cost{Total: 1, HomographyValid: true, Inliers: 4, QueryKeypoints: 10, TrainKeypoints: 10}
	require.False(t, cost.SlideMatch(thr))
}

func TestSlideMatchRejectsSparseRatioBelowTwenty(t *testing.T) {
	thr := DefaultThresholds()
	// 6 inliers clears the |M|>=5 floor but is far short of 20, and the
	// ratio against thousands of keypoints is nowhere near 10%.
	cost := Cost{Total: 1, HomographyValid: true, Inliers: 6, QueryKeypoints: 5000, TrainKeypoints: 5000}
	require.False(t, cost.SlideMatch(thr))
}

func TestSlideMatchAcceptsTwentyInliersRegardlessOfRatio(t *testing.T) {
	thr := DefaultThresholds()
	cost := Cost{Total: 1, HomographyValid: true, Inliers: 20, QueryKeypoints: 5000, TrainKeypoints: 5000}
	require.True(t, cost.SlideMatch(thr))
}

func TestSlideMatchAcceptsSufficientRatioBelowTwenty(t *testing.T) {
	thr := DefaultThresholds()
	cost := Cost{Total: 1, HomographyValid: true, Inliers: 10, QueryKeypoints: 50, TrainKeypoints: 80}
	require.True(t, cost.SlideMatch(thr))
}

func TestSlideMatchRequiresCostStrictlyBelowCeiling(t *testing.T) {
	thr := DefaultThresholds()
	cost := Cost{Total: thr.SlideMatchCostMax, HomographyValid: true, Inliers: 20, QueryKeypoints: 100, TrainKeypoints: 100}
	require.False(t, cost.SlideMatch(thr))
}
