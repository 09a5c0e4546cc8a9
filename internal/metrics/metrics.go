// Package metrics exposes Prometheus counters for the engine's own
// operational introspection: indexing throughput, match rates, and
// per-operation latency histograms, served by the monitor server.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine tracks fingerprinting and matching counters, served by the
// monitor server's /metrics endpoint.
type Engine struct {
	TracksIndexedTotal   prometheus.Counter
	TrackIndexErrors     prometheus.Counter
	FingerprintsStored   prometheus.Counter
	MixWindowsProcessed  prometheus.Counter
	Stage1MatchesTotal   prometheus.Counter
	Stage2MatchesTotal   prometheus.Counter
	IndexDuration        prometheus.Histogram
	MatchDuration        prometheus.Histogram
}

var (
	once     sync.Once
	instance *Engine
)

// Get returns the process-wide metrics instance, registering it with the
// default Prometheus registry on first call.
func Get() *Engine {
	once.Do(func() {
		instance = &Engine{
			TracksIndexedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "mixid_tracks_indexed_total",
				Help: "Total number of tracks successfully fingerprinted.",
			}),
			TrackIndexErrors: promauto.NewCounter(prometheus.CounterOpts{
				Name: "mixid_track_index_errors_total",
				Help: "Total number of per-track indexing failures.",
			}),
			FingerprintsStored: promauto.NewCounter(prometheus.CounterOpts{
				Name: "mixid_fingerprints_stored_total",
				Help: "Total number of fingerprint postings written.",
			}),
			MixWindowsProcessed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "mixid_mix_windows_processed_total",
				Help: "Total number of mix analysis windows processed.",
			}),
			Stage1MatchesTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "mixid_stage1_matches_total",
				Help: "Total number of Stage-1 histogram matches accepted.",
			}),
			Stage2MatchesTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "mixid_stage2_matches_total",
				Help: "Total number of Stage-2 sustained-run matches accepted.",
			}),
			IndexDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "mixid_index_track_duration_seconds",
				Help:    "Per-track indexing duration in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			}),
			MatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "mixid_match_window_duration_seconds",
				Help:    "Per-window matching duration in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30},
			}),
		}
	})
	return instance
}
