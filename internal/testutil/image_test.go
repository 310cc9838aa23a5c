package testutil

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTestImageConfig(t *testing.T) {
	config := DefaultTestImageConfig()
	assert.Equal(t, "Sample Text", config.Text)
	assert.Equal(t, MediumSize, config.Size)
	assert.Equal(t, color.White, config.Background)
	assert.Equal(t, color.Black, config.Foreground)
	assert.InDelta(t, 0.0, config.Rotation, 0.0001)
	assert.False(t, config.Multiline)
}

func TestGenerateTextImage(t *testing.T) {
	config := DefaultTestImageConfig()
	config.Text = "Test"
	config.Size = SmallSize

	img, err := GenerateTextImage(config)
	require.NoError(t, err)
	assert.NotNil(t, img)

	bounds := img.Bounds()
	assert.Equal(t, SmallSize.Width, bounds.Dx())
	assert.Equal(t, SmallSize.Height, bounds.Dy())
}

func TestGenerateMultilineTextImage(t *testing.T) {
	config := DefaultTestImageConfig()
	config.Multiline = true
	config.Size = LargeSize

	img, err := GenerateTextImage(config)
	require.NoError(t, err)
	assert.NotNil(t, img)

	bounds := img.Bounds()
	assert.Equal(t, LargeSize.Width, bounds.Dx())
	assert.Equal(t, LargeSize.Height, bounds.Dy())
}

func TestGenerateRotatedTextImage(t *testing.T) {
	config := DefaultTestImageConfig()
	config.Text = "Rotated"
	config.Rotation = 45.0

	img, err := GenerateTextImage(config)
	require.NoError(t, err)
	assert.NotNil(t, img)
}
