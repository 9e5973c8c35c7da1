// Package metrics exposes Prometheus instrumentation for extraction batches
// and the engine session.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Extraction metrics
var (
	ItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractd_items_total",
			Help: "Total number of processed sources by outcome",
		},
		[]string{"outcome"},
	)

	ItemDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "extractd_item_duration_seconds",
			Help:    "Time spent extracting one preview",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	BatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "extractd_batches_total",
			Help: "Total number of extraction batches",
		},
	)

	OrientationWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "extractd_orientation_write_failures_total",
			Help: "Orientation rewrites that failed after a successful extraction",
		},
	)

	CleanupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "extractd_cleanup_failures_total",
			Help: "Temporary preview files that could not be removed",
		},
	)
)

// Engine session metrics
var (
	EngineStarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractd_engine_starts_total",
			Help: "Engine processes started by session mode",
		},
		[]string{"mode"},
	)

	EngineStops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractd_engine_stops_total",
			Help: "Engine processes ended by session mode",
		},
		[]string{"mode"},
	)

	PersistentSession = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "extractd_persistent_session",
			Help: "1 while a persistent engine process is alive",
		},
	)
)

// Session modes used as label values.
const (
	ModePersistent = "persistent"
	ModeEphemeral  = "ephemeral"
)

// Outcome label for successful items; failures use their error kind.
const OutcomeSuccess = "success"
