package features

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func checkerboard(w, h int) gocv.Mat {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/10+y/10)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	mat, _ := gocv.ImageToMatGray(img)
	return mat
}

func TestDetectorFindsKeypoints(t *testing.T) {
	img := checkerboard(200, 200)
	defer img.Close()

	d := NewDetector(500)
	defer d.Close()

	kp := d.Detect(img)
	defer kp.Close()

	require.NotEmpty(t, kp.Points)
}

func TestMatcherRatioTestFiltersAmbiguousMatches(t *testing.T) {
	img := checkerboard(200, 200)
	defer img.Close()

	d := NewDetector(500)
	defer d.Close()

	a := d.Detect(img)
	defer a.Close()
	b := d.Detect(img)
	defer b.Close()

	m := NewMatcher(0.8, 5)
	defer m.Close()

	matches := m.MatchKNN(a.Descriptors, b.Descriptors)
	// A checkerboard's repeated corners have equally close second-best
	// neighbours, so the ratio test drops at least some of them.
	require.Less(t, len(matches), len(a.Points))
}

func TestEstimateHomographyRejectsTooFewMatches(t *testing.T) {
	_, err := EstimateHomography(Keypoints{}, Keypoints{}, nil, 2.5)
	require.Error(t, err)
}
