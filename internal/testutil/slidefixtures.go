package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// GenerateSlideDeck builds n distinct synthetic slide images of size,
// each labeled "Slide <k>" so the tracker's feature detector has a
// unique, stable set of keypoints to lock onto per slide.
func GenerateSlideDeck(t *testing.T, n int, size ImageSize) []image.Image {
	t.Helper()

	slides := make([]image.Image, n)
	for i := 0; i < n; i++ {
		config := DefaultTestImageConfig()
		config.Text = fmt.Sprintf("Slide %d", i+1)
		config.Size = size
		img, err := GenerateTextImage(config)
		require.NoError(t, err, "failed to generate slide %d", i+1)
		slides[i] = img
	}
	return slides
}

// StampMarker draws a small distinguishing block of filled squares into
// img's top-left corner, one square per index+1. It gives otherwise flat
// synthetic slide images enough distinct, stable corner structure for an
// ORB detector to find keypoints on, without requiring a *testing.T.
func StampMarker(img draw.Image, index int) {
	const (
		cell   = 12
		margin = 8
	)
	mark := color.RGBA{R: 0, G: 0, B: 0, A: 255}
	count := index + 1
	for i := 0; i < count; i++ {
		x0 := margin + i*(cell+4)
		rect := image.Rect(x0, margin, x0+cell, margin+cell)
		draw.Draw(img, rect, &image.Uniform{mark}, image.Point{}, draw.Src)
	}
}

// GenerateFootageFrames simulates a recorded presentation: one synthetic
// camera frame per entry in slideSchedule, where slideSchedule[i] is the
// zero-based slide index on screen at frame i. Each frame applies a small
// rotation jitter to its slide image so consecutive frames are not
// byte-identical, the way a handheld or slightly unstable camera recording
// would never repeat a frame exactly.
func GenerateFootageFrames(t *testing.T, slides []image.Image, slideSchedule []int) []image.Image {
	t.Helper()

	frames := make([]image.Image, len(slideSchedule))
	for i, slideIdx := range slideSchedule {
		require.True(t, slideIdx >= 0 && slideIdx < len(slides), "slide index %d out of range", slideIdx)

		jitter := float64(i%5) - 2 // -2..2 degrees, cycles every 5 frames
		rotated := imaging.Rotate(slides[slideIdx], jitter, color.White)

		rgba := image.NewRGBA(slides[slideIdx].Bounds())
		draw.Draw(rgba, rgba.Bounds(), rotated, rotated.Bounds().Min, draw.Src)
		frames[i] = rgba
	}
	return frames
}
