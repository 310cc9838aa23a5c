package geom

import (
	"image"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewBoxOrdersCoordinates(t *testing.T) {
	b := NewBox(10, 10, 0, 0)
	require.Equal(t, 0.0, b.MinX)
	require.Equal(t, 0.0, b.MinY)
	require.Equal(t, 10.0, b.MaxX)
	require.Equal(t, 10.0, b.MaxY)
}

func TestBoxWidthHeightArea(t *testing.T) {
	b := NewBox(1, 2, 5, 8)
	require.Equal(t, 4.0, b.Width())
	require.Equal(t, 6.0, b.Height())
	require.Equal(t, 24.0, b.Area())
}

func TestBoxToRectClamps(t *testing.T) {
	b := NewBox(-10, -10, 1000, 1000)
	rect := b.ToRect(image.Rect(0, 0, 100, 50))
	require.Equal(t, image.Rect(0, 0, 100, 50), rect)
}

func TestBoundingBoxOfPoints(t *testing.T) {
	pts := []Point{{X: 1, Y: 1}, {X: -2, Y: 5}, {X: 3, Y: -4}}
	b := BoundingBox(pts)
	require.Equal(t, -2.0, b.MinX)
	require.Equal(t, -4.0, b.MinY)
	require.Equal(t, 3.0, b.MaxX)
	require.Equal(t, 5.0, b.MaxY)
}

func TestBoundingBoxEmpty(t *testing.T) {
	require.Equal(t, Box{}, BoundingBox(nil))
}

func TestDist(t *testing.T) {
	require.InDelta(t, 5.0, Dist(Point{X: 0, Y: 0}, Point{X: 3, Y: 4}), 1e-9)
}

func TestScaleAndOffsetPoint(t *testing.T) {
	p := ScalePoint(Point{X: 2, Y: 3}, 2, 0.5)
	require.Equal(t, Point{X: 4, Y: 1.5}, p)

	p2 := OffsetPoint(p, 1, -1)
	require.Equal(t, Point{X: 5, Y: 0.5}, p2)
}
