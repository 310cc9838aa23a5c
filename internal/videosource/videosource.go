// Package videosource abstracts the footage recording the tracker plays
// back frame by frame, so the tracker and driver can run against either a
// real video file (via gocv.VideoCapture) or an in-memory fixture in tests.
package videosource

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Frame is one decoded video frame together with its index in the source.
type Frame struct {
	Index int
	Mat   gocv.Mat
}

// Close releases the frame's underlying matrix.
func (f Frame) Close() error {
	return f.Mat.Close()
}

// Source is the collaborator contract the tracker and driver depend on for
// footage playback: sequential reads, cheap grab-without-decode skipping,
// and random-access rewind. The tracker itself only reads forward.
type Source interface {
	// Read decodes and returns the next frame, or ok=false at end of stream.
	Read() (frame Frame, ok bool)
	// Grab skips the next frame without decoding it, returning false at
	// end of stream. Used to implement frameskip cheaply.
	Grab() bool
	// Rewind seeks to frame index `to` so the next Read returns it.
	Rewind(to int) error
	// FrameCount returns the total number of frames, if known.
	FrameCount() int
	// FPS returns the nominal frames-per-second of the source.
	FPS() float64
	// Size returns the frame width and height in pixels.
	Size() (width, height int)
	// Close releases the underlying capture device/file.
	Close() error
}

// gocvSource is the production Source backed by gocv.VideoCapture.
type gocvSource struct {
	cap   *gocv.VideoCapture
	index int
	w, h  int
}

// Open opens a video file at path as a Source.
func Open(path string) (Source, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("videosource: open %s: %w", path, err)
	}
	w := int(cap.Get(gocv.VideoCaptureFrameWidth))
	h := int(cap.Get(gocv.VideoCaptureFrameHeight))
	return &gocvSource{cap: cap, w: w, h: h}, nil
}

func (s *gocvSource) Read() (Frame, bool) {
	mat := gocv.NewMat()
	if !s.cap.Read(&mat) || mat.Empty() {
		mat.Close()
		return Frame{}, false
	}
	f := Frame{Index: s.index, Mat: mat}
	s.index++
	return f, true
}

func (s *gocvSource) Grab() bool {
	ok := s.cap.Grab(1)
	if ok {
		s.index++
	}
	return ok
}

func (s *gocvSource) Rewind(to int) error {
	if !s.cap.Set(gocv.VideoCapturePosFrames, float64(to)) {
		return fmt.Errorf("videosource: rewind to frame %d failed", to)
	}
	s.index = to
	return nil
}

func (s *gocvSource) FrameCount() int {
	return int(s.cap.Get(gocv.VideoCaptureFrameCount))
}

func (s *gocvSource) FPS() float64 {
	return s.cap.Get(gocv.VideoCaptureFPS)
}

func (s *gocvSource) Size() (int, int) {
	return s.w, s.h
}

func (s *gocvSource) Close() error {
	return s.cap.Close()
}

// Synthetic is an in-memory Source fixture for tests and godog scenarios:
// a fixed slice of pre-built images played back without touching gocv's
// real capture device/file machinery.
type Synthetic struct {
	Frames    []image.Image
	FPSValue  float64
	index     int
}

// NewSynthetic builds a Synthetic source from a sequence of images.
func NewSynthetic(frames []image.Image, fps float64) *Synthetic {
	return &Synthetic{Frames: frames, FPSValue: fps}
}

func (s *Synthetic) Read() (Frame, bool) {
	if s.index >= len(s.Frames) {
		return Frame{}, false
	}
	mat, err := gocv.ImageToMatRGB(s.Frames[s.index])
	if err != nil {
		return Frame{}, false
	}
	f := Frame{Index: s.index, Mat: mat}
	s.index++
	return f, true
}

func (s *Synthetic) Grab() bool {
	if s.index >= len(s.Frames) {
		return false
	}
	s.index++
	return true
}

func (s *Synthetic) Rewind(to int) error {
	if to < 0 || to > len(s.Frames) {
		return fmt.Errorf("videosource: rewind to frame %d out of range [0,%d]", to, len(s.Frames))
	}
	s.index = to
	return nil
}

func (s *Synthetic) FrameCount() int { return len(s.Frames) }
func (s *Synthetic) FPS() float64    { return s.FPSValue }

func (s *Synthetic) Size() (int, int) {
	if len(s.Frames) == 0 {
		return 0, 0
	}
	b := s.Frames[0].Bounds()
	return b.Dx(), b.Dy()
}

func (s *Synthetic) Close() error { return nil }
