// Package indexer drives parallel fingerprint extraction for unindexed
// tracks and writes results atomically through the fingerprint store.
package indexer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/waveprint/mixid/internal/audio"
	"github.com/waveprint/mixid/internal/errors"
	"github.com/waveprint/mixid/internal/features"
	"github.com/waveprint/mixid/internal/fingerprint"
	"github.com/waveprint/mixid/internal/logger"
	"github.com/waveprint/mixid/internal/metrics"
	"github.com/waveprint/mixid/internal/models"
	"github.com/waveprint/mixid/internal/storage"
	"github.com/waveprint/mixid/internal/workerpool"
)

// progressEvery bounds the progress callback rate to every N completions.
const progressEvery = 10

// Options configures one indexing run.
type Options struct {
	Mode    string
	Limit   int
	Workers int
}

// Progress is reported to the caller at a bounded rate.
type Progress struct {
	Indexed int
	Errors  int
	Total   int
	Elapsed time.Duration
	ETA     time.Duration
}

// ProgressFunc receives running totals during an index run.
type ProgressFunc func(Progress)

// FailedTrack records one per-track indexing failure for the final report.
type FailedTrack struct {
	TrackID  uint
	Filename string
	Err      error
}

// Result summarizes one Index() call.
type Result struct {
	Indexed int
	Errors  []FailedTrack
	Elapsed time.Duration
}

// Indexer runs decode -> peaks -> hashes -> store for unindexed tracks,
// and decode -> summaries -> store for their feature summaries.
type Indexer struct {
	store      *storage.Store
	loader     *audio.Loader
	fpCfg      fingerprint.Config
	summarizer *features.Summarizer
}

// New constructs an Indexer.
func New(store *storage.Store, loader *audio.Loader, fpCfg fingerprint.Config, summarizer *features.Summarizer) *Indexer {
	return &Indexer{store: store, loader: loader, fpCfg: fpCfg, summarizer: summarizer}
}

type unit struct {
	track  models.Track
	fps    []models.Fingerprint
	mfcc   []float64
	chroma []float64
}

// Index selects unindexed tracks per opts, extracts fingerprints and
// feature summaries in parallel, and persists them serially through the
// store. A per-track failure is counted and reported but never aborts the
// batch.
func (ix *Indexer) Index(ctx context.Context, opts Options, onProgress ProgressFunc) (Result, error) {
	start := time.Now()
	runID := uuid.NewString()

	tracks, err := ix.store.UnindexedTracks(opts.Mode, opts.Limit)
	if err != nil {
		return Result{}, err
	}
	if len(tracks) == 0 {
		return Result{Elapsed: time.Since(start)}, nil
	}

	ctx, span := otel.Tracer("mixid/indexer").Start(ctx, "index",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.Int("tracks", len(tracks)),
			attribute.Int("workers", opts.Workers),
		))
	defer span.End()
	logger.Log.Info("index run started",
		zap.String("run_id", runID), zap.Int("tracks", len(tracks)))

	outcomes := workerpool.RunEach(ctx, tracks, opts.Workers, ix.extractOne)

	result := Result{Elapsed: time.Since(start)}
	for i, outcome := range outcomes {
		track := tracks[i]
		if outcome.Err != nil {
			result.Errors = append(result.Errors, FailedTrack{TrackID: track.ID, Filename: track.Filename, Err: outcome.Err})
			logger.Log.Warn("indexing failed", logger.WithTrackID(track.ID), logger.WithFilename(track.Filename))
			metrics.Get().TrackIndexErrors.Inc()
		} else {
			if err := ix.persist(outcome.Value); err != nil {
				result.Errors = append(result.Errors, FailedTrack{TrackID: track.ID, Filename: track.Filename, Err: err})
				metrics.Get().TrackIndexErrors.Inc()
				continue
			}
			result.Indexed++
			metrics.Get().TracksIndexedTotal.Inc()
			metrics.Get().FingerprintsStored.Add(float64(len(outcome.Value.fps)))
		}

		done := result.Indexed + len(result.Errors)
		if onProgress != nil && (done%progressEvery == 0 || done == len(tracks)) {
			elapsed := time.Since(start)
			eta := estimateETA(elapsed, done, len(tracks))
			onProgress(Progress{Indexed: result.Indexed, Errors: len(result.Errors), Total: len(tracks), Elapsed: elapsed, ETA: eta})
		}
	}

	result.Elapsed = time.Since(start)
	return result, nil
}

// extractOne decodes one track and computes its fingerprints and feature
// summaries. It is called from worker goroutines and touches no shared
// state.
func (ix *Indexer) extractOne(ctx context.Context, track models.Track) (unit, error) {
	start := time.Now()
	defer func() { metrics.Get().IndexDuration.Observe(time.Since(start).Seconds()) }()

	samples, err := ix.loader.Load(ctx, track.Filepath, ix.fpCfg.SampleRate, nil, nil)
	if err != nil {
		return unit{}, err
	}
	if len(samples) == 0 {
		return unit{}, errors.EmptyAudio(track.Filepath)
	}

	extractor := fingerprint.NewExtractor(ix.fpCfg)
	spec := extractor.Spectrogram(samples)
	peaks := extractor.ExtractPeaks(spec)
	fps := fingerprint.Encode(ix.fpCfg, peaks)

	mfcc := ix.summarizer.MFCCSummary(samples)
	chroma := ix.summarizer.ChromaSummary(samples)

	return unit{track: track, fps: fps, mfcc: mfcc, chroma: chroma}, nil
}

// persist writes one unit's fingerprints and feature summaries. Writes
// are serialized by the store itself. Index calls persist one unit at a
// time, in track order, only after the worker pool has returned every
// extraction outcome; nothing is persisted, and no progress reported,
// while extraction is still running.
func (ix *Indexer) persist(u unit) error {
	if err := ix.store.StoreFingerprints(u.track.ID, u.fps, true); err != nil {
		return err
	}
	if err := ix.store.StoreAudioFeature(u.track.ID, models.KindMFCCSummary, u.mfcc); err != nil {
		return err
	}
	if err := ix.store.StoreAudioFeature(u.track.ID, models.KindChromaSummary, u.chroma); err != nil {
		return err
	}
	return nil
}

func estimateETA(elapsed time.Duration, done, total int) time.Duration {
	if done == 0 {
		return 0
	}
	perItem := elapsed / time.Duration(done)
	remaining := total - done
	if remaining < 0 {
		remaining = 0
	}
	return perItem * time.Duration(remaining)
}
