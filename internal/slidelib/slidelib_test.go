package slidelib

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()
	require.NoError(t, png.Encode(f, img))
}

func TestLoadOrdersSlidesNaturally(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "slide-2.png"), 20, 10)
	writePNG(t, filepath.Join(dir, "slide-10.png"), 20, 10)
	writePNG(t, filepath.Join(dir, "slide-1.png"), 20, 10)

	lib, err := Load(dir, 100, 100)
	require.NoError(t, err)
	require.Equal(t, 3, lib.Len())
}

func TestLoadResizesToFitFrame(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "slide-1.png"), 400, 200)

	lib, err := Load(dir, 100, 100)
	require.NoError(t, err)
	b := lib.Slides[0].Bounds()
	require.LessOrEqual(t, b.Dx(), 100)
	require.LessOrEqual(t, b.Dy(), 100)
}

func TestLoadRejectsEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir, 100, 100)
	require.Error(t, err)
}

func TestNaturalOrderNumericComparison(t *testing.T) {
	require.True(t, naturalOrder("slide-2.png", "slide-10.png"))
	require.False(t, naturalOrder("slide-10.png", "slide-2.png"))
}
