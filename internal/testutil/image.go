package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test image sizes.
	SmallSize  = ImageSize{320, 240}
	MediumSize = ImageSize{640, 480}
	LargeSize  = ImageSize{1024, 768}
)

// TestImageConfig holds configuration for generating test images.
type TestImageConfig struct {
	Text       string
	Size       ImageSize
	Background color.Color
	Foreground color.Color
	FontFace   font.Face
	Rotation   float64 // rotation in degrees
	Multiline  bool
}

// DefaultTestImageConfig returns a default configuration for test images.
func DefaultTestImageConfig() TestImageConfig {
	return TestImageConfig{
		Text:       "Sample Text",
		Size:       MediumSize,
		Background: color.White,
		Foreground: color.Black,
		FontFace:   basicfont.Face7x13,
		Rotation:   0,
		Multiline:  false,
	}
}

// GenerateTextImage creates a synthetic text image with the given configuration.
func GenerateTextImage(config TestImageConfig) (*image.RGBA, error) {
	// Create base image
	img := image.NewRGBA(image.Rect(0, 0, config.Size.Width, config.Size.Height))

	// Fill background
	draw.Draw(img, img.Bounds(), &image.Uniform{config.Background}, image.Point{}, draw.Src)

	// Draw text
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{config.Foreground},
		Face: config.FontFace,
	}

	if config.Multiline {
		// Build lines with a fixed number of words per line to avoid deep nesting.
		words := []string{"This", "is", "a", "multiline", "text", "sample", "for", "OCR", "testing", "purposes"}
		wordsPerLine := 3
		var lines []string
		for i := 0; i < len(words); i += wordsPerLine {
			end := i + wordsPerLine
			if end > len(words) {
				end = len(words)
			}
			lines = append(lines, strings.Join(words[i:end], " "))
		}

		// Draw each line
		lineHeight := config.FontFace.Metrics().Height.Ceil()
		startY := (config.Size.Height - len(lines)*lineHeight) / 2
		for i, line := range lines {
			y := startY + (i+1)*lineHeight
			textWidth := font.MeasureString(config.FontFace, line).Ceil()
			x := (config.Size.Width - textWidth) / 2
			drawer.Dot = fixed.P(x, y)
			drawer.DrawString(line)
		}
	} else {
		// Center the text
		textWidth := font.MeasureString(config.FontFace, config.Text).Ceil()
		textHeight := config.FontFace.Metrics().Height.Ceil()
		x := (config.Size.Width - textWidth) / 2
		y := (config.Size.Height + textHeight) / 2
		drawer.Dot = fixed.P(x, y)
		drawer.DrawString(config.Text)
	}

	// Apply rotation if specified
	if config.Rotation != 0 {
		rotated := imaging.Rotate(img, config.Rotation, color.White)
		// Convert to RGBA
		rgba := image.NewRGBA(rotated.Bounds())
		draw.Draw(rgba, rgba.Bounds(), rotated, rotated.Bounds().Min, draw.Src)
		return rgba, nil
	}

	return img, nil
}
