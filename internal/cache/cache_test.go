package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirDerivesFromFootagePath(t *testing.T) {
	require.Equal(t, "/tmp/video.mp4.d", Dir("/tmp/video.mp4"))
}

func TestWriteAndReadRoundTrip(t *testing.T) {
	base := t.TempDir()
	footage := filepath.Join(base, "video.mp4")
	m := New(footage)

	man := Manifest{NSlides: 5, SourceWidth: 1920, SourceHeight: 1080, SlideContentHash: "abc"}
	require.NoError(t, m.Write("nslides = 5\nframerate = 25\nninstructions = 0\n", man))
	require.True(t, m.Exists())

	text, err := m.ReadSync()
	require.NoError(t, err)
	require.Contains(t, text, "nslides = 5")

	got, err := m.ReadManifest()
	require.NoError(t, err)
	require.Equal(t, man, got)
}

func TestValidDetectsStaleManifest(t *testing.T) {
	base := t.TempDir()
	footage := filepath.Join(base, "video.mp4")
	m := New(footage)

	man := Manifest{NSlides: 5, SourceWidth: 1920, SourceHeight: 1080, SlideContentHash: "abc"}
	require.NoError(t, m.Write("x", man))

	require.True(t, m.Valid(man))
	require.False(t, m.Valid(Manifest{NSlides: 6}))
}

func TestExistsFalseWhenMissing(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "missing.mp4"))
	require.False(t, m.Exists())
}

func TestHashSlideFilesStableAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.png"), []byte("world!"), 0o644))

	h1, err := HashSlideFiles(dir)
	require.NoError(t, err)
	h2, err := HashSlideFiles(dir)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestHashSlideFilesChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("hello"), 0o644))
	h1, err := HashSlideFiles(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("hello world"), 0o644))
	h2, err := HashSlideFiles(dir)
	require.NoError(t, err)

	require.NotEqual(t, h1, h2)
}
