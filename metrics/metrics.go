// Package metrics provides Prometheus metrics for the acquisition and
// spectral pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Status label values shared by the Record helpers.
const (
	StatusSuccess     = "success"
	StatusNoData      = "no_data"
	StatusUnavailable = "unavailable"
	StatusFailed      = "failed"
	StatusTimeout     = "timeout"
	StatusPanic       = "panic"
)

var (
	// catalogListingsTotal counts day listings.
	// Labels:
	//   - node: Hydrophone node (e.g., "LJ01D")
	//   - status: success, no_data or unavailable
	catalogListingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydrophone_catalog_listings_total",
			Help: "Total number of remote day listings",
		},
		[]string{"node", "status"},
	)

	// segmentFetchesTotal counts fetch-and-decode tasks.
	// Labels:
	//   - status: success, failed, timeout or panic
	segmentFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydrophone_segment_fetches_total",
			Help: "Total number of segment fetch and decode tasks",
		},
		[]string{"status"},
	)

	// segmentFetchDuration records per-segment latency.
	// Buckets: 0.1s to 60s, the default per-segment timeout.
	segmentFetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hydrophone_segment_fetch_duration_seconds",
			Help:    "Duration of segment fetch and decode tasks in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// spectralChunksTotal counts chunks processed by the parallel coordinator.
	// Labels:
	//   - kind: spectrogram or psd
	//   - status: success, no_data or failed
	spectralChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydrophone_spectral_chunks_total",
			Help: "Total number of chunks analysed by the parallel coordinator",
		},
		[]string{"kind", "status"},
	)
)

func init() {
	prometheus.MustRegister(catalogListingsTotal)
	prometheus.MustRegister(segmentFetchesTotal)
	prometheus.MustRegister(segmentFetchDuration)
	prometheus.MustRegister(spectralChunksTotal)
}

// RecordCatalogListing records one day listing.
func RecordCatalogListing(node, status string) {
	catalogListingsTotal.WithLabelValues(node, status).Inc()
}

// RecordSegmentFetch records one fetch task and its duration.
func RecordSegmentFetch(status string, durationSeconds float64) {
	segmentFetchesTotal.WithLabelValues(status).Inc()
	segmentFetchDuration.Observe(durationSeconds)
}

// RecordSpectralChunk records one analysed chunk.
func RecordSpectralChunk(kind, status string) {
	spectralChunksTotal.WithLabelValues(kind, status).Inc()
}
