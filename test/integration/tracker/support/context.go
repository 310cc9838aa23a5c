// Package support holds the shared scenario state and step registrations
// for the tracker's end-to-end godog scenarios, mirroring the teacher's
// test/integration/cli/support package layout.
package support

import (
	"context"
	"image"
	"image/color"

	"slidesync/internal/cache"
	"slidesync/internal/config"
	"slidesync/internal/instructions"
	"slidesync/internal/slidelib"
	"slidesync/internal/testutil"
	"slidesync/internal/tracker"
	"slidesync/internal/videosource"
)

const framerate = 24

// TestContext holds one scenario's tracker, slide deck, and synthetic
// footage, plus the outcome of running the tracker to completion.
// noiseFrame is a schedule sentinel standing in for a frame that matches
// no slide in the deck, used to simulate a noise burst mid-recording.
const noiseFrame = -1

type TestContext struct {
	slides   []image.Image
	schedule []int

	unrecognizableFrames int

	stream   *instructions.Stream
	reloaded *instructions.Stream
	tracker  *tracker.Tracker
	src      *videosource.Synthetic

	runErr error
}

// NewTestContext creates an empty scenario context.
func NewTestContext() *TestContext {
	return &TestContext{}
}

// BuildDeck constructs a synthetic slide deck of n slides.
func (c *TestContext) BuildDeck(n int) {
	c.slides = syntheticSlides(n)
}

// syntheticSlides avoids the *testing.T-coupled generator in
// internal/testutil (which requires a live *testing.T) by drawing flat
// colored slides directly; keypoints are still distinct per slide because
// each carries a unique marker shape.
func syntheticSlides(n int) []image.Image {
	palette := []color.Color{
		color.RGBA{R: 200, G: 40, B: 40, A: 255},
		color.RGBA{R: 40, G: 200, B: 40, A: 255},
		color.RGBA{R: 40, G: 40, B: 200, A: 255},
		color.RGBA{R: 200, G: 200, B: 40, A: 255},
		color.RGBA{R: 200, G: 40, B: 200, A: 255},
	}
	slides := make([]image.Image, n)
	for i := range n {
		img := image.NewRGBA(image.Rect(0, 0, 320, 240))
		bg := palette[i%len(palette)]
		for y := 0; y < 240; y++ {
			for x := 0; x < 320; x++ {
				img.Set(x, y, bg)
			}
		}
		testutil.StampMarker(img, i)
		slides[i] = img
	}
	return slides
}

// unrecognizableFrame builds a flat gray frame carrying none of the
// deck's corner markers, so it can never produce enough keypoint matches
// against any slide.
func unrecognizableFrame() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	gray := color.RGBA{R: 128, G: 128, B: 128, A: 255}
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			img.Set(x, y, gray)
		}
	}
	return img
}

// SetSchedule records which slide index is on screen for each recorded frame.
func (c *TestContext) SetSchedule(schedule []int) {
	c.schedule = schedule
}

// UseUnrecognizableFootage replaces the schedule-derived frames with n
// frames that match no slide in the deck, simulating footage whose very
// first frame the tracker can never lock onto.
func (c *TestContext) UseUnrecognizableFootage(n int) {
	c.unrecognizableFrames = n
}

// Run builds the tracker against the deck/schedule and drives it to
// completion, recording any error.
func (c *TestContext) Run() {
	var frames []image.Image
	if c.unrecognizableFrames > 0 {
		frames = make([]image.Image, c.unrecognizableFrames)
		for i := range frames {
			frames[i] = unrecognizableFrame()
		}
	} else {
		frames = make([]image.Image, len(c.schedule))
		for i, idx := range c.schedule {
			if idx == noiseFrame {
				frames[i] = unrecognizableFrame()
				continue
			}
			frames[i] = c.slides[idx]
		}
	}

	cfg := config.DefaultConfig().Tracker
	cfg.Frameskip = 0

	lib := &slidelib.Library{Slides: c.slides}
	c.src = videosource.NewSynthetic(frames, framerate)
	c.stream = instructions.New(len(c.slides), framerate)
	c.tracker = tracker.New(cfg, c.src, lib, c.stream)

	ctx := context.Background()
	for {
		done, err := c.tracker.Step(ctx)
		if err != nil {
			c.runErr = err
			return
		}
		if done {
			break
		}
	}
	c.runErr = c.tracker.Finish()
}

// Stream returns the scenario's resulting instruction stream.
func (c *TestContext) Stream() *instructions.Stream { return c.stream }

// RunError returns the error Run terminated with, if any.
func (c *TestContext) RunError() error { return c.runErr }

// CacheAndReload writes the scenario's current script to a fresh cache
// directory and parses it straight back, simulating a second run that
// reuses the cache instead of re-invoking the tracker (spec scenario F).
func (c *TestContext) CacheAndReload(dir string) (*instructions.Stream, error) {
	mgr := cache.NewWithDir(dir)
	man := cache.Manifest{NSlides: len(c.slides), SlideContentHash: "scenario-f"}
	if err := mgr.Write(c.stream.String(), man); err != nil {
		return nil, err
	}
	text, err := mgr.ReadSync()
	if err != nil {
		return nil, err
	}
	return instructions.Parse(text)
}

// Cleanup releases the tracker's resources.
func (c *TestContext) Cleanup() error {
	if c.tracker == nil {
		return nil
	}
	return c.tracker.Close()
}
