// Package metrics exposes the build's ambient prometheus collectors: resident chunk
// count, points inserted/tossed/deduped, and flush latency, none of which are excluded
// by any explicit non-goal.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResidentChunks tracks the number of chunks currently held in memory by the
	// registry, broken down by tier.
	ResidentChunks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "entwine",
		Subsystem: "registry",
		Name:      "resident_chunks",
		Help:      "Number of chunks currently resident in memory, by tier.",
	}, []string{"tier"})

	// PointsInserted counts points successfully placed in a slot.
	PointsInserted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "entwine",
		Subsystem: "build",
		Name:      "points_inserted_total",
		Help:      "Total points successfully inserted into the tree.",
	})

	// PointsDeduped counts points discarded because an identical-coordinate point
	// already occupied the target slot.
	PointsDeduped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "entwine",
		Subsystem: "build",
		Name:      "points_deduped_total",
		Help:      "Total points discarded as exact-coordinate duplicates.",
	})

	// PointsTossed counts points lost to an out-of-bounds coordinate or tail overflow
	// exhaustion.
	PointsTossed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entwine",
		Subsystem: "build",
		Name:      "points_tossed_total",
		Help:      "Total points discarded without being indexed, by reason.",
	}, []string{"reason"})

	// FilesSkipped counts input files abandoned because they could not be opened or
	// decoded (spec.md §7's source-unreadable case): the build logs and continues
	// rather than failing.
	FilesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "entwine",
		Subsystem: "build",
		Name:      "files_skipped_total",
		Help:      "Total input files skipped because they were unreadable or failed to decode.",
	})

	// FlushLatency measures how long a single chunk flush to the driver takes.
	FlushLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "entwine",
		Subsystem: "registry",
		Name:      "flush_latency_seconds",
		Help:      "Latency of a single chunk flush to the storage driver.",
		Buckets:   prometheus.DefBuckets,
	})
)

// TimeFlush records a flush's duration against FlushLatency; call as
// `defer metrics.TimeFlush(time.Now())`.
func TimeFlush(start time.Time) {
	FlushLatency.Observe(time.Since(start).Seconds())
}

// TossReason names why a point was tossed, for the PointsTossed label.
type TossReason string

// Toss reasons (spec.md §7).
const (
	TossOutOfBounds        TossReason = "out_of_bounds"
	TossOverflowExhaustion TossReason = "overflow_exhaustion"
)
