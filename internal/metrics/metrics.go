// Package metrics declares the prometheus instruments the tracker and
// driver update as they run, following the teacher's promauto counter and
// histogram declaration style.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesProcessed counts frames the tracker has run its decision logic on.
	FramesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "slidesync",
		Name:      "frames_processed_total",
		Help:      "Total number of frames processed by the tracker.",
	})

	// HardFrames counts frames the tracker classified as hard frames.
	HardFrames = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "slidesync",
		Name:      "hard_frames_total",
		Help:      "Total number of frames classified as hard frames.",
	})

	// KeyframeUpdates counts reference-state keyframe replacements.
	KeyframeUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "slidesync",
		Name:      "keyframe_updates_total",
		Help:      "Total number of reference keyframe updates.",
	})

	// BadcountExcursions counts tracker entries into the Idle state.
	BadcountExcursions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "slidesync",
		Name:      "badcount_excursions_total",
		Help:      "Total number of times the tracker entered the Idle state.",
	})

	// InstructionsEmitted counts navigation instructions appended to the
	// synchronization script, labeled by instruction code.
	InstructionsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slidesync",
		Name:      "instructions_emitted_total",
		Help:      "Total number of instructions appended, by code.",
	}, []string{"code"})

	// DecisionLatency observes the wall-clock time the tracker spends
	// deciding a single frame's outcome.
	DecisionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "slidesync",
		Name:      "tracker_decision_latency_seconds",
		Help:      "Latency of a single tracker frame decision.",
		Buckets:   prometheus.DefBuckets,
	})
)
