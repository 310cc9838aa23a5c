// Package driver owns the footage, slide deck, cache, and output stream
// for one synchronization run, and pumps the tracker one processed frame
// at a time until the footage is exhausted or the caller cancels.
package driver

import (
	"context"
	"fmt"
	"log/slog"

	"gocv.io/x/gocv"

	"slidesync/internal/cache"
	"slidesync/internal/config"
	"slidesync/internal/encoder"
	"slidesync/internal/instructions"
	"slidesync/internal/slidelib"
	"slidesync/internal/tracker"
	"slidesync/internal/videosource"
)

// Driver coordinates one end-to-end synchronization run.
type Driver struct {
	cfg    config.Config
	logger *slog.Logger

	source  videosource.Source
	slides  *slidelib.Library
	cache   *cache.Manager
	tracker *tracker.Tracker
	stream  *instructions.Stream
}

// Open opens the footage and slide deck named in cfg.Paths and constructs
// a Driver ready to run. It does not read any cached synchronization
// script; LoadCached does that.
func Open(cfg config.Config, logger *slog.Logger) (*Driver, error) {
	source, err := videosource.Open(cfg.Paths.Footage)
	if err != nil {
		return nil, fmt.Errorf("driver: open footage: %w", err)
	}

	w, h := source.Size()
	slides, err := slidelib.Load(cfg.Paths.Slides, w, h)
	if err != nil {
		if closeErr := source.Close(); closeErr != nil {
			logger.Warn("failed to close footage after slide load error", "error", closeErr)
		}
		return nil, fmt.Errorf("driver: load slides: %w", err)
	}

	cacheDir := cfg.Paths.CacheDir
	var cacheMgr *cache.Manager
	if cacheDir != "" {
		cacheMgr = cache.NewWithDir(cacheDir)
	} else {
		cacheMgr = cache.New(cfg.Paths.Footage)
	}

	stream := instructions.New(slides.Len(), source.FPS())
	trk := tracker.New(cfg.Tracker, source, slides, stream)

	return &Driver{
		cfg:     cfg,
		logger:  logger,
		source:  source,
		slides:  slides,
		cache:   cacheMgr,
		tracker: trk,
		stream:  stream,
	}, nil
}

// Close releases the footage source and the tracker's resources.
func (d *Driver) Close() error {
	var firstErr error
	if err := d.tracker.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := d.source.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Run pumps the tracker until the footage is exhausted or ctx is
// cancelled, then finalizes the instruction stream with an End
// instruction. It returns the completed stream.
func (d *Driver) Run(ctx context.Context) (*instructions.Stream, error) {
	for {
		select {
		case <-ctx.Done():
			return d.stream, ctx.Err()
		default:
		}

		done, err := d.tracker.Step(ctx)
		if err != nil {
			return d.stream, fmt.Errorf("driver: tracker step: %w", err)
		}
		if done {
			break
		}
	}

	if err := d.tracker.Finish(); err != nil {
		return d.stream, fmt.Errorf("driver: finish: %w", err)
	}

	if d.cache != nil {
		hash, err := cache.HashSlideFiles(d.cfg.Paths.Slides)
		if err != nil {
			d.logger.Warn("failed to hash slide deck for cache manifest", "error", err)
			return d.stream, nil
		}
		w, h := d.source.Size()
		man := cache.Manifest{NSlides: d.slides.Len(), SourceWidth: w, SourceHeight: h, SlideContentHash: hash}
		if err := d.cache.Write(d.stream.String(), man); err != nil {
			d.logger.Warn("failed to write synchronization cache", "error", err)
		}
	}

	if d.cfg.Paths.Output != "" {
		if err := d.renderOutput(d.stream); err != nil {
			d.logger.Warn("failed to render output timing", "error", err)
		}
	}

	return d.stream, nil
}

// renderOutput replays the finished stream's navigation through an output
// encoder, holding each slide on screen for the frame count between
// instructions. The bundled encoder is a counting no-op: muxing an actual
// output video file is out of scope for this module (see
// internal/encoder), so this exercises and validates the stream's frame
// timing against the slide deck without writing output bytes.
func (d *Driver) renderOutput(stream *instructions.Stream) error {
	enc := encoder.NewNoOp()
	defer func() {
		if err := enc.Close(); err != nil {
			d.logger.Warn("error closing output encoder", "error", err)
		}
	}()

	slideIdx := 0
	mat, err := gocv.ImageToMatRGB(d.slides.Slides[slideIdx])
	if err != nil {
		return fmt.Errorf("driver: render first slide: %w", err)
	}
	defer mat.Close()
	if err := enc.WriteFrame(mat); err != nil {
		return fmt.Errorf("driver: write initial frame: %w", err)
	}

	var last int64
	for _, ins := range stream.Instructions() {
		stamp := ins.Timestamp
		if ins.Relative {
			stamp += last
		}
		if hold := int(stamp - last); hold > 0 {
			if err := enc.RepeatLast(hold); err != nil {
				return fmt.Errorf("driver: hold slide: %w", err)
			}
		}
		last = stamp

		switch ins.Code {
		case instructions.Next:
			slideIdx++
		case instructions.Previous:
			slideIdx--
		case instructions.GoTo:
			slideIdx = ins.Data
		case instructions.End:
			continue
		}
		if slideIdx < 0 || slideIdx >= d.slides.Len() {
			continue
		}

		mat.Close()
		mat, err = gocv.ImageToMatRGB(d.slides.Slides[slideIdx])
		if err != nil {
			return fmt.Errorf("driver: render slide %d: %w", slideIdx, err)
		}
		if err := enc.WriteFrame(mat); err != nil {
			return fmt.Errorf("driver: write frame: %w", err)
		}
	}

	d.logger.Info("rendered output timing", "frames", enc.Frames)
	return nil
}

// LoadCached returns a previously cached synchronization stream for this
// footage/slide-deck pair, if one exists and its manifest matches the
// slide deck currently on disk.
func LoadCached(cfg config.Config) (*instructions.Stream, bool, error) {
	var mgr *cache.Manager
	if cfg.Paths.CacheDir != "" {
		mgr = cache.NewWithDir(cfg.Paths.CacheDir)
	} else {
		mgr = cache.New(cfg.Paths.Footage)
	}
	if !mgr.Exists() {
		return nil, false, nil
	}
	hash, err := cache.HashSlideFiles(cfg.Paths.Slides)
	if err != nil {
		return nil, false, fmt.Errorf("driver: hash slide deck: %w", err)
	}

	nslides, err := slidelib.Count(cfg.Paths.Slides)
	if err != nil {
		return nil, false, fmt.Errorf("driver: count slides: %w", err)
	}

	current := cache.Manifest{NSlides: nslides, SlideContentHash: hash}
	cached, err := mgr.ReadManifest()
	if err != nil {
		return nil, false, nil
	}
	if cached.NSlides != current.NSlides || cached.SlideContentHash != current.SlideContentHash {
		return nil, false, nil
	}

	text, err := mgr.ReadSync()
	if err != nil {
		return nil, false, fmt.Errorf("driver: read cached sync: %w", err)
	}
	stream, err := instructions.Parse(text)
	if err != nil {
		return nil, false, fmt.Errorf("driver: parse cached sync: %w", err)
	}
	return stream, true, nil
}
