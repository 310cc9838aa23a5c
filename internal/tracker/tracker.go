// Package tracker implements the frame-by-frame visual matcher: a state
// machine that locks the footage's observed slide region onto the current
// slide image, decides when the presenter has advanced or backed up, and
// appends the corresponding instructions to a synchronization script.
package tracker

import (
	"context"
	"errors"
	"fmt"

	"slidesync/internal/common"
	"slidesync/internal/config"
	"slidesync/internal/costmodel"
	"slidesync/internal/features"
	"slidesync/internal/instructions"
	"slidesync/internal/metrics"
	"slidesync/internal/quad"
	"slidesync/internal/slidelib"
	"slidesync/internal/videosource"

	"gocv.io/x/gocv"
)

// State names the tracker's three operating modes.
type State int

const (
	// StateInit is the tracker's starting state: it has not yet locked
	// onto a reference frame for the first slide.
	StateInit State = iota
	// StateTrack is the steady state: the tracker matches each new frame
	// against the precomputed keypoints of the slide believed to be on
	// screen. The stored reference keypoints are not matched against.
	StateTrack
	// StateIdle is entered after too many consecutive tracking failures;
	// on every processed frame the tracker runs a full candidate search
	// across all slides and returns to StateTrack once one matches.
	StateIdle
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateTrack:
		return "track"
	case StateIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// referenceState is the tracker's current best-known lock: which slide is
// on screen, the frame and keypoints that lock was established from, and
// the quad that frame's slide region projects to.
type referenceState struct {
	slideIndex int
	keypoints  features.Keypoints
	q          quad.Quad
}

// Tracker is the slide-tracking state machine. It owns no footage or slide
// deck resources itself (those are supplied by the caller so lifetime is
// explicit); Step advances exactly one processed frame per call.
type Tracker struct {
	cfg    config.TrackerConfig
	thresh costmodel.Thresholds

	source videosource.Source
	slides *slidelib.Library
	stream *instructions.Stream

	detector *features.Detector
	matcher  *features.Matcher

	slideKeypoints []features.Keypoints

	state State
	ref   referenceState
	prev  quad.Quad

	badcount  int
	nearcount int

	frameIndex int
}

// New constructs a Tracker over an already-open video source and an
// already-loaded slide library, appending instructions to stream as slide
// transitions are detected.
func New(cfg config.TrackerConfig, source videosource.Source, slides *slidelib.Library, stream *instructions.Stream) *Tracker {
	return &Tracker{
		cfg: cfg,
		thresh: costmodel.Thresholds{
			DeviationGrace:          cfg.DeviationGrace,
			DeformationGrace:        cfg.DeformationGrace,
			SlideMatchCostMax:       cfg.SlideMatchCostMax,
			SalvageCostMax:          cfg.SalvageCostMax,
			HardFrameCostFloor:      cfg.HardFrameCostFloor,
			SlideMatchAbsoluteFloor: float64(cfg.SlideMatchAbsoluteFloor),
			SlideMatchRelativeFloor: cfg.SlideMatchRelativeFloor,
		},
		source:   source,
		slides:   slides,
		stream:   stream,
		detector: features.NewDetector(1000),
		matcher:  features.NewMatcher(cfg.MaxMatchRatio, cfg.MinMatchesForHomography),
		state:    StateInit,
	}
}

// Close releases the detector and matcher and any precomputed slide
// keypoints.
func (t *Tracker) Close() error {
	var firstErr error
	for _, kp := range t.slideKeypoints {
		if err := kp.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := t.detector.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := t.matcher.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// State returns the tracker's current state.
func (t *Tracker) State() State { return t.state }

// SlideIndex returns the zero-based slide the tracker currently believes
// is on screen.
func (t *Tracker) SlideIndex() int { return t.ref.slideIndex }

// ErrUnrecoverable is returned by Step when the tracker cannot establish an
// initial lock on the first slide at all, per spec.md's exit-code 4 case.
var ErrUnrecoverable = errors.New("tracker: could not establish an initial lock")

// precomputeSlideKeypoints runs the detector over every slide image once,
// lazily, the first time it is needed.
func (t *Tracker) precomputeSlideKeypoints() error {
	if t.slideKeypoints != nil {
		return nil
	}
	t.slideKeypoints = make([]features.Keypoints, t.slides.Len())
	for i, img := range t.slides.Slides {
		mat, err := gocv.ImageToMatRGB(img)
		if err != nil {
			return fmt.Errorf("tracker: convert slide %d: %w", i, err)
		}
		gray := gocv.NewMat()
		gocv.CvtColor(mat, &gray, gocv.ColorRGBToGray)
		mat.Close()
		t.slideKeypoints[i] = t.detector.Detect(gray)
		gray.Close()
	}
	return nil
}

// Step advances the tracker by exactly one processed frame: it discards
// cfg.Frameskip decoded frames, reads the next one, and dispatches to the
// state-specific handler. It returns done=true once the source is
// exhausted, at which point the caller should finalize the instruction
// stream with an End instruction.
func (t *Tracker) Step(ctx context.Context) (done bool, err error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := t.precomputeSlideKeypoints(); err != nil {
		return false, err
	}

	for range t.cfg.Frameskip {
		if !t.source.Grab() {
			return true, nil
		}
	}

	frame, ok := t.source.Read()
	if !ok {
		return true, nil
	}
	defer frame.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(frame.Mat, &gray, gocv.ColorBGRToGray)
	defer gray.Close()

	timer := common.NewTimer()
	switch t.state {
	case StateInit:
		err = t.initialize(gray)
	case StateTrack:
		err = t.track(gray)
	case StateIdle:
		err = t.idle(gray)
	}
	metrics.DecisionLatency.Observe(timer.Stop().Seconds())

	t.frameIndex = frame.Index
	metrics.FramesProcessed.Inc()
	return false, err
}

// initialize attempts to lock the tracker onto slide 0 using the current
// frame. On success it transitions to StateTrack; on failure it stays in
// StateInit so the next Step call retries against the following frame,
// matching spec.md's "retry across the first few frames" allowance.
func (t *Tracker) initialize(frame gocv.Mat) error {
	frameKP := t.detector.Detect(frame)

	matched, q, cost, ok := t.bestCandidate(frameKP, []int{0})
	if !ok {
		frameKP.Close()
		if t.frameIndex > t.cfg.BadcountFullScanThreshold*4 {
			return ErrUnrecoverable
		}
		return nil
	}
	_ = cost
	t.setReference(0, matched, q)
	t.prev = q
	t.state = StateTrack
	return nil
}

// track matches the current frame against the precomputed keypoints of the
// slide believed to be on screen; it does not match against the reference
// frame's keypoints.
func (t *Tracker) track(frame gocv.Mat) error {
	frameKP := t.detector.Detect(frame)

	q, cost, ok := t.matchAgainst(frameKP, t.ref.slideIndex)
	if ok && cost.SlideMatch(t.thresh) {
		t.acceptMatch(frameKP, t.ref.slideIndex, q, cost)
		return nil
	}

	// Differential lock failed or was too costly; widen the search to
	// neighboring slides (a forward/backward navigation) before giving up.
	candidates := t.searchWindow()
	bestSlide, bestKP, bestQuad, bestCost, found := t.searchCandidates(frameKP, candidates)
	if found && bestCost.SlideMatch(t.thresh) {
		t.transitionSlide(bestSlide)
		t.acceptMatch(bestKP, bestSlide, bestQuad, bestCost)
		return nil
	}

	if found && bestCost.Salvageable(t.thresh) {
		t.nearcount++
		if t.nearcount >= t.cfg.NearcountSalvageThreshold {
			t.transitionSlide(bestSlide)
			t.acceptMatch(bestKP, bestSlide, bestQuad, bestCost)
			t.nearcount = 0
			return nil
		}
	} else {
		t.nearcount = 0
	}

	frameKP.Close()
	t.badcount++
	if found && bestCost.HardFrame(t.thresh) {
		metrics.HardFrames.Inc()
	}
	if t.badcount >= t.cfg.BadcountFullScanThreshold {
		t.state = StateIdle
		metrics.BadcountExcursions.Inc()
	}
	return nil
}

// idle runs a full candidate search across every slide on each processed
// frame to recover a lock, since the per-slide match has been failing.
func (t *Tracker) idle(frame gocv.Mat) error {
	frameKP := t.detector.Detect(frame)

	all := make([]int, t.slides.Len())
	for i := range all {
		all[i] = i
	}
	slideIdx, kp, q, cost, found := t.searchCandidates(frameKP, all)
	if found && cost.SlideMatch(t.thresh) {
		t.transitionSlide(slideIdx)
		t.acceptMatch(kp, slideIdx, q, cost)
		t.badcount = 0
		t.state = StateTrack
		return nil
	}

	frameKP.Close()
	return nil
}

// bestCandidate matches frame keypoints against the listed slide indices
// and returns the single best-scoring (lowest Total cost) candidate.
func (t *Tracker) bestCandidate(frameKP features.Keypoints, slideIdxs []int) (features.Keypoints, quad.Quad, costmodel.Cost, bool) {
	_, kp, q, cost, ok := t.searchCandidates(frameKP, slideIdxs)
	return kp, q, cost, ok
}

// searchCandidates matches frame keypoints against each listed slide and
// returns the slide/quad/cost of the lowest-cost candidate.
func (t *Tracker) searchCandidates(frameKP features.Keypoints, slideIdxs []int) (slideIndex int, kp features.Keypoints, q quad.Quad, cost costmodel.Cost, found bool) {
	bestTotal := -1.0
	for _, idx := range slideIdxs {
		if idx < 0 || idx >= len(t.slideKeypoints) {
			continue
		}
		candQuad, candCost, ok := t.matchAgainst(frameKP, idx)
		if !ok {
			continue
		}
		if !found || candCost.Total < bestTotal {
			found = true
			bestTotal = candCost.Total
			slideIndex = idx
			kp = frameKP
			q = candQuad
			cost = candCost
		}
	}
	return slideIndex, kp, q, cost, found
}

// matchAgainst matches frame keypoints against the precomputed keypoints of
// slide slideIdx, fits a RANSAC homography, and scores the result against
// the quad accepted on the previous processed frame (t.prev); the reference
// keyframe's quad is not used in the score.
func (t *Tracker) matchAgainst(frameKP features.Keypoints, slideIdx int) (quad.Quad, costmodel.Cost, bool) {
	slideKP := t.slideKeypoints[slideIdx]
	matches := t.matcher.MatchKNN(frameKP.Descriptors, slideKP.Descriptors)
	if !t.matcher.HasEnoughMatches(matches) {
		return quad.Quad{}, costmodel.Cost{}, false
	}

	h, err := features.EstimateHomography(frameKP, slideKP, matches, t.cfg.RANSACThreshold)
	if err != nil {
		return quad.Quad{}, costmodel.Cost{}, false
	}
	defer h.Close()

	img := t.slides.Slides[slideIdx]
	b := img.Bounds()
	reference := quad.FromRect(float64(b.Dx()), float64(b.Dy()))
	observed := quad.Perspective(h.H, reference)

	area := observed.Area()
	if area < t.cfg.MinQuadArea || area > t.cfg.MaxQuadArea || !observed.Convex() {
		return quad.Quad{}, costmodel.Cost{}, false
	}

	mapped, obs := h.InlierReprojection(frameKP, slideKP, matches)
	reproj := costmodel.Reprojection(mapped, obs)
	cost := costmodel.Evaluate(reproj, t.prev, observed, t.thresh,
		!h.H.Empty(), h.Inlier, len(frameKP.Points), len(slideKP.Points))
	return observed, cost, true
}

// searchWindow returns the slide indices within NearWindowRadius of the
// current slide, the narrow search tried before widening to a full scan.
func (t *Tracker) searchWindow() []int {
	radius := t.cfg.NearWindowRadius
	out := make([]int, 0, radius*2)
	for d := -radius; d <= radius; d++ {
		if d == 0 {
			continue
		}
		idx := t.ref.slideIndex + d
		if idx >= 0 && idx < t.slides.Len() {
			out = append(out, idx)
		}
	}
	return out
}

// setReference replaces the tracker's reference state wholesale, releasing
// the previous reference keypoints.
func (t *Tracker) setReference(slideIdx int, kp features.Keypoints, q quad.Quad) {
	if t.ref.keypoints.Descriptors.Ptr() != nil {
		_ = t.ref.keypoints.Close()
	}
	t.ref = referenceState{slideIndex: slideIdx, keypoints: kp, q: q}
	metrics.KeyframeUpdates.Inc()
}

// acceptMatch records a successful match: it may refresh the reference
// keyframe if the observed quad has drifted beyond the keyframe-forcing
// thresholds, and always updates prev for the next frame's deviation
// calculation.
func (t *Tracker) acceptMatch(frameKP features.Keypoints, slideIdx int, q quad.Quad, cost costmodel.Cost) {
	forceKeyframe := cost.Deviation > t.cfg.KeyframeDeviationThreshold ||
		cost.Deformation > t.cfg.KeyframeDeformationThreshold
	if forceKeyframe || slideIdx != t.ref.slideIndex {
		t.setReference(slideIdx, frameKP, q)
	} else {
		frameKP.Close()
	}
	t.prev = q
	t.badcount = 0
}

// transitionSlide appends the instruction corresponding to moving from the
// tracker's current slide to target, recording it on the instruction
// stream.
func (t *Tracker) transitionSlide(target int) {
	current := t.stream.CurrentIndex()
	if target == current {
		return
	}
	stamp := int64(t.frameIndex)
	switch {
	case target == current+1:
		if err := t.stream.Next(stamp, false); err == nil {
			metrics.InstructionsEmitted.WithLabelValues("next").Inc()
		}
	case target == current-1:
		if err := t.stream.Previous(stamp, false); err == nil {
			metrics.InstructionsEmitted.WithLabelValues("previous").Inc()
		}
	default:
		if err := t.stream.GoTo(stamp, target, false); err == nil {
			metrics.InstructionsEmitted.WithLabelValues("goto").Inc()
		}
	}
}

// Finish appends the terminal End instruction, freezing the stream.
func (t *Tracker) Finish() error {
	if t.stream.Frozen() {
		return nil
	}
	if err := t.stream.End(int64(t.frameIndex), false); err != nil {
		return fmt.Errorf("tracker: finish: %w", err)
	}
	metrics.InstructionsEmitted.WithLabelValues("end").Inc()
	return nil
}
