// Package slidelib loads the rasterized slide-deck image sequence and
// resizes each slide to fit the footage's frame, so the tracker always
// compares like-sized images.
package slidelib

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
)

// SupportedExtensions lists the rasterized image formats a slide deck
// directory may contain.
var SupportedExtensions = []string{".png", ".jpg", ".jpeg", ".bmp"}

// Library holds a slide deck's decoded, frame-sized images in presentation
// order.
type Library struct {
	Slides []image.Image
}

// Len returns the number of slides in the deck.
func (l *Library) Len() int { return len(l.Slides) }

// naturalOrder compares filenames the way a human would: by any embedded
// numeric run rather than lexicographically, so "slide-2.png" sorts before
// "slide-10.png". This is the comparator spec.md's cache section requires
// for slide filename ordering.
var numberRun = regexp.MustCompile(`\d+`)

func naturalOrder(a, b string) bool {
	an, bn := numberRun.FindAllString(a, -1), numberRun.FindAllString(b, -1)
	for i := 0; i < len(an) && i < len(bn); i++ {
		av, aerr := strconv.Atoi(an[i])
		bv, berr := strconv.Atoi(bn[i])
		if aerr == nil && berr == nil && av != bv {
			return av < bv
		}
	}
	return a < b
}

func isSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Count returns the number of supported slide image files directly inside
// dir, without decoding or resizing them. Used to validate a cache
// manifest against the slide deck on disk without paying for a full load.
func Count(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("slidelib: read dir %s: %w", dir, err)
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() && isSupported(e.Name()) {
			count++
		}
	}
	return count, nil
}

// Load reads every supported image file directly inside dir, in natural
// filename order, and resizes each to fit within (frameWidth, frameHeight)
// while preserving aspect ratio.
func Load(dir string, frameWidth, frameHeight int) (*Library, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("slidelib: read dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isSupported(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Slice(names, func(i, j int) bool { return naturalOrder(names[i], names[j]) })

	if len(names) == 0 {
		return nil, fmt.Errorf("slidelib: no slide images found in %s", dir)
	}

	slides := make([]image.Image, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		f, err := os.Open(path) //nolint:gosec // slide deck path is operator-provided, not untrusted input
		if err != nil {
			return nil, fmt.Errorf("slidelib: open %s: %w", path, err)
		}
		img, _, err := image.Decode(f)
		closeErr := f.Close()
		if err != nil {
			return nil, fmt.Errorf("slidelib: decode %s: %w", path, err)
		}
		if closeErr != nil {
			return nil, fmt.Errorf("slidelib: close %s: %w", path, closeErr)
		}
		resized := imaging.Fit(img, frameWidth, frameHeight, imaging.Lanczos)
		slides = append(slides, resized)
	}

	return &Library{Slides: slides}, nil
}
