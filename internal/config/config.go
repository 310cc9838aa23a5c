// Package config defines the slidesync application configuration: tracker
// thresholds, paths, and the ambient CLI/server knobs layered on top of them.
package config

import (
	"fmt"
	"strings"
)

// Config represents the complete configuration for the slidesync application.
// It supports loading from a configuration file, environment variables, and
// command-line flags, in that increasing order of precedence.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose"   yaml:"verbose"   json:"verbose"`

	Paths   PathsConfig   `mapstructure:"paths"   yaml:"paths"   json:"paths"`
	Tracker TrackerConfig `mapstructure:"tracker" yaml:"tracker" json:"tracker"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
}

// PathsConfig holds the four required CLI paths plus the optional cache override.
type PathsConfig struct {
	Footage  string `mapstructure:"footage"   yaml:"footage"   json:"footage"`
	Slides   string `mapstructure:"slides"    yaml:"slides"    json:"slides"`
	Sync     string `mapstructure:"sync"      yaml:"sync"      json:"sync"`
	Output   string `mapstructure:"output"    yaml:"output"    json:"output"`
	CacheDir string `mapstructure:"cache_dir" yaml:"cache_dir" json:"cache_dir"`
}

// TrackerConfig holds every tunable of the slide-tracking state machine.
type TrackerConfig struct {
	// Frameskip is the number of decoded frames discarded between processed
	// frames (spec: frameskip=7, one processed frame per N+1 decoded frames).
	Frameskip int `mapstructure:"frameskip" yaml:"frameskip" json:"frameskip"`

	// MaxMatchRatio is Lowe's ratio-test cutoff for accepting a keypoint match.
	MaxMatchRatio float64 `mapstructure:"max_match_ratio" yaml:"max_match_ratio" json:"max_match_ratio"`

	// RANSACThreshold is the reprojection-error cutoff (pixels) for RANSAC inliers.
	RANSACThreshold float64 `mapstructure:"ransac_threshold" yaml:"ransac_threshold" json:"ransac_threshold"`

	// MinMatchesForHomography is the minimum accepted match count before RANSAC runs.
	MinMatchesForHomography int `mapstructure:"min_matches_for_homography" yaml:"min_matches_for_homography" json:"min_matches_for_homography"`

	// Cost model thresholds and grace values (spec.md §4.4, §9).
	DeviationGrace     float64 `mapstructure:"deviation_grace"     yaml:"deviation_grace"     json:"deviation_grace"`
	DeformationGrace   float64 `mapstructure:"deformation_grace"   yaml:"deformation_grace"   json:"deformation_grace"`
	SlideMatchCostMax  float64 `mapstructure:"slide_match_cost_max" yaml:"slide_match_cost_max" json:"slide_match_cost_max"`
	SalvageCostMax     float64 `mapstructure:"salvage_cost_max"     yaml:"salvage_cost_max"     json:"salvage_cost_max"`
	HardFrameCostFloor float64 `mapstructure:"hard_frame_cost_floor" yaml:"hard_frame_cost_floor" json:"hard_frame_cost_floor"`

	// Quad area gates (pixels^2).
	MinQuadArea float64 `mapstructure:"min_quad_area" yaml:"min_quad_area" json:"min_quad_area"`
	MaxQuadArea float64 `mapstructure:"max_quad_area" yaml:"max_quad_area" json:"max_quad_area"`

	// slide_match absolute/relative match-count floors (spec.md §4.4).
	SlideMatchAbsoluteFloor int     `mapstructure:"slide_match_absolute_floor" yaml:"slide_match_absolute_floor" json:"slide_match_absolute_floor"`
	SlideMatchRelativeFloor float64 `mapstructure:"slide_match_relative_floor" yaml:"slide_match_relative_floor" json:"slide_match_relative_floor"`

	// Keyframe-forcing deviation/deformation thresholds (spec.md §4.5 step 10).
	KeyframeDeviationThreshold   float64 `mapstructure:"keyframe_deviation_threshold"   yaml:"keyframe_deviation_threshold"   json:"keyframe_deviation_threshold"`
	KeyframeDeformationThreshold float64 `mapstructure:"keyframe_deformation_threshold" yaml:"keyframe_deformation_threshold" json:"keyframe_deformation_threshold"`

	// Hard-frame search widening policy (spec.md §4.5 step 5-6).
	BadcountFullScanThreshold int `mapstructure:"badcount_full_scan_threshold" yaml:"badcount_full_scan_threshold" json:"badcount_full_scan_threshold"`
	NearWindowRadius          int `mapstructure:"near_window_radius" yaml:"near_window_radius" json:"near_window_radius"`
	NearcountSalvageThreshold int `mapstructure:"nearcount_salvage_threshold" yaml:"nearcount_salvage_threshold" json:"nearcount_salvage_threshold"`

	// Nominal driver tick period (spec.md §5); nothing reads it, and the driver loop is not paced.
	TickPeriodMillis int `mapstructure:"tick_period_millis" yaml:"tick_period_millis" json:"tick_period_millis"`
}

// MetricsConfig controls the optional prometheus /metrics HTTP listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr" json:"addr"`
}

// DefaultConfig returns a configuration with the defaults spec.md and its
// Design Notes (§9) call out.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Tracker: TrackerConfig{
			Frameskip:                    7,
			MaxMatchRatio:                0.8,
			RANSACThreshold:              2.5,
			MinMatchesForHomography:      5,
			DeviationGrace:               5,
			DeformationGrace:             5,
			SlideMatchCostMax:            20,
			SalvageCostMax:               40,
			HardFrameCostFloor:           1000,
			MinQuadArea:                  100,
			MaxQuadArea:                  25_000_000,
			SlideMatchAbsoluteFloor:      20,
			SlideMatchRelativeFloor:      0.1,
			KeyframeDeviationThreshold:   10,
			KeyframeDeformationThreshold: 7,
			BadcountFullScanThreshold:    7,
			NearWindowRadius:             3,
			NearcountSalvageThreshold:    3,
			TickPeriodMillis:             40,
		},
	}
}

// Validate checks the configuration for internally-consistent values.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	t := c.Tracker
	if t.Frameskip < 0 {
		return fmt.Errorf("invalid tracker.frameskip: %d (must be >= 0)", t.Frameskip)
	}
	if t.MaxMatchRatio <= 0 || t.MaxMatchRatio > 1 {
		return fmt.Errorf("invalid tracker.max_match_ratio: %.2f (must be in (0, 1])", t.MaxMatchRatio)
	}
	if t.RANSACThreshold <= 0 {
		return fmt.Errorf("invalid tracker.ransac_threshold: %.2f (must be positive)", t.RANSACThreshold)
	}
	if t.MinMatchesForHomography < 4 {
		return fmt.Errorf("invalid tracker.min_matches_for_homography: %d (must be >= 4)", t.MinMatchesForHomography)
	}
	if t.MinQuadArea <= 0 || t.MaxQuadArea <= t.MinQuadArea {
		return fmt.Errorf("invalid tracker quad area bounds: min=%.0f max=%.0f", t.MinQuadArea, t.MaxQuadArea)
	}
	if t.BadcountFullScanThreshold <= 0 {
		return fmt.Errorf("invalid tracker.badcount_full_scan_threshold: %d (must be positive)", t.BadcountFullScanThreshold)
	}

	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
