// Package metrics defines the process's Prometheus instrumentation.
// Grounded on internal/wal/metrics.go's promauto-registered package-level
// var block plus small Record*/Update* wrapper functions, so call sites
// never touch a prometheus.Collector directly.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	streamWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bigbrother_stream_writes_total",
		Help: "Total number of lines appended to any NDJSON stream, by stream kind.",
	}, []string{"stream_kind"})

	streamFlushLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bigbrother_stream_flush_latency_seconds",
		Help:    "Latency of a stream writer's fsync-on-batch flush.",
		Buckets: prometheus.DefBuckets,
	})

	trackerPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bigbrother_tracker_pending",
		Help: "Current number of download tracker records in the pending state.",
	})

	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bigbrother_downloads_total",
		Help: "Total number of asset downloads, by outcome (done, failed).",
	}, []string{"outcome"})

	downloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bigbrother_download_duration_seconds",
		Help:    "Wall-clock time to complete a single asset download, retries included.",
		Buckets: prometheus.DefBuckets,
	})

	catchupChannelsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bigbrother_catchup_channels_active",
		Help: "Number of channels currently backfilling in the Catchup Engine.",
	})

	catchupMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bigbrother_catchup_messages_total",
		Help: "Total number of messages written during catchup backfill, by guild.",
	}, []string{"guild_id"})
)

// RecordStreamWrite increments the write counter for a stream kind
// ("messages", "metadata", "tracker").
func RecordStreamWrite(streamKind string) {
	streamWritesTotal.WithLabelValues(streamKind).Inc()
}

// RecordStreamFlushLatency records one flush's duration.
func RecordStreamFlushLatency(seconds float64) {
	streamFlushLatency.Observe(seconds)
}

// UpdateTrackerPending sets the pending-download gauge to count.
func UpdateTrackerPending(count int) {
	trackerPending.Set(float64(count))
}

// RecordDownload increments the outcome counter ("done" or "failed").
func RecordDownload(outcome string) {
	downloadsTotal.WithLabelValues(outcome).Inc()
}

// RecordDownloadDuration records one download's duration, across all of
// its attempts.
func RecordDownloadDuration(seconds float64) {
	downloadDuration.Observe(seconds)
}

// SetCatchupChannelsActive sets the number of channels currently
// backfilling.
func SetCatchupChannelsActive(n int) {
	catchupChannelsActive.Set(float64(n))
}

// IncCatchupChannelsActive adjusts the active-channel gauge by delta
// (positive when a channel starts backfilling, negative when it finishes).
func IncCatchupChannelsActive(delta int) {
	catchupChannelsActive.Add(float64(delta))
}

// RecordCatchupMessage adds count to the per-guild catchup message
// counter.
func RecordCatchupMessage(guildID string, count int) {
	catchupMessagesTotal.WithLabelValues(guildID).Add(float64(count))
}
