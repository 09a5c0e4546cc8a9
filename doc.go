// Package mixid implements a DJ-mix audio identification engine: constant-Q
// spectral peak fingerprinting, a hash-join posting store, a two-stage
// matcher (offset-histogram clustering with an MFCC/chroma sustained-run
// fallback), and a windowed mix analyzer that produces a cue sheet.
//
// The engine is organized as:
//
//   - internal/audio: audio decoding (direct WAV + ffmpeg fallback)
//   - internal/fingerprint: CQT spectrogram, peak extraction, hash encoding
//   - internal/features: MFCC/chroma summaries for the Stage-2 fallback
//   - internal/storage: the persistent fingerprint and feature store
//   - internal/cache: optional Redis read-through posting cache
//   - internal/matcher: Stage-1 and Stage-2 matchers
//   - internal/indexer: parallel fingerprint extraction and ingest
//   - internal/mixanalyzer: mix windowing, matching, and merging
//   - internal/cue: cue sheet formatting
//   - internal/workerpool: the generic worker pool the indexer runs extraction on
//   - internal/metrics: Prometheus counters for indexing and matching
//   - internal/telemetry: opt-in OpenTelemetry tracing setup
//   - internal/monitor: an optional local HTTP/websocket status server
//
// See cmd/cli for the command-line interface.
package mixid
