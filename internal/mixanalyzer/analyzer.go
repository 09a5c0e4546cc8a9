// Package mixanalyzer windows a long mix recording, dispatches each
// window to Stage-1 (falling back to Stage-2), merges overlapping matches
// per track, and emits a cue list.
package mixanalyzer

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/waveprint/mixid/internal/audio"
	"github.com/waveprint/mixid/internal/fingerprint"
	"github.com/waveprint/mixid/internal/matcher"
	"github.com/waveprint/mixid/internal/metrics"
	"github.com/waveprint/mixid/internal/models"
)

// minBlockSeconds skips windows shorter than this.
const minBlockSeconds = 5.0

// mergeGapMs folds two matches of the same track into one when their
// separation is under this threshold.
const mergeGapMs = 30_000

// Progress reports running totals as windows complete.
type Progress struct {
	WindowsDone  int
	WindowsTotal int
	MatchesSoFar int
}

// ProgressFunc is invoked after each window completes.
type ProgressFunc func(Progress)

// Config carries the mix windowing parameters.
type Config struct {
	SampleRate int
	SegmentS   float64
	OverlapS   float64
	Workers    int
}

// DefaultConfig returns the standard windowing parameters.
func DefaultConfig(sampleRate int) Config {
	return Config{SampleRate: sampleRate, SegmentS: 30, OverlapS: 15, Workers: 4}
}

// Analyzer drives mix identification end to end.
type Analyzer struct {
	loader    *audio.Loader
	extractor *fingerprint.Extractor
	fpCfg     fingerprint.Config
	stage1    *matcher.Stage1
	stage2    *matcher.Stage2
	cfg       Config
}

// New constructs an Analyzer.
func New(loader *audio.Loader, fpCfg fingerprint.Config, stage1 *matcher.Stage1, stage2 *matcher.Stage2, cfg Config) *Analyzer {
	return &Analyzer{
		loader:    loader,
		extractor: fingerprint.NewExtractor(fpCfg),
		fpCfg:     fpCfg,
		stage1:    stage1,
		stage2:    stage2,
		cfg:       cfg,
	}
}

type block struct {
	index   int
	startMs int64
	samples []float32
}

// Analyze decodes mixPath, identifies each window, merges per-track
// matches, and returns them sorted by query_start_ms. The cue list is
// derived from the result by the caller (see internal/cue).
func (a *Analyzer) Analyze(ctx context.Context, mixPath string, onProgress ProgressFunc) ([]models.Match, error) {
	samples, err := a.loader.Load(ctx, mixPath, a.cfg.SampleRate, nil, nil)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, nil
	}

	blocks := a.windowSamples(samples)
	if len(blocks) == 0 {
		return nil, nil
	}

	ctx, span := otel.Tracer("mixid/mixanalyzer").Start(ctx, "analyze_mix",
		trace.WithAttributes(
			attribute.String("mix", mixPath),
			attribute.Int("windows", len(blocks)),
		))
	defer span.End()

	var g errgroup.Group
	guard := &resultsGuard{}

	workers := a.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)

	for _, b := range blocks {
		b := b
		sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-sem }()
			found, err := a.matchBlock(ctx, b)
			if err != nil {
				found = nil // block-local errors are swallowed per the propagation policy
			}
			done, matchCount := guard.record(found)
			if onProgress != nil {
				onProgress(Progress{WindowsDone: done, WindowsTotal: len(blocks), MatchesSoFar: matchCount})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := mergeMatches(guard.results)
	sort.Slice(merged, func(i, j int) bool { return merged[i].QueryStartMs < merged[j].QueryStartMs })
	return merged, nil
}

// resultsGuard serializes writes to the shared match slice and progress
// counter from parallel block workers; extraction and matching themselves
// stay parallel.
type resultsGuard struct {
	mu      sync.Mutex
	results []models.Match
	done    int
}

// record appends one window's matches, advances the window counter, and
// returns a consistent (done, matches) snapshot for progress reporting.
func (g *resultsGuard) record(found []models.Match) (done, matches int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.results = append(g.results, found...)
	g.done++
	return g.done, len(g.results)
}

// windowSamples splits samples into segment_s blocks advancing by
// (segment_s - overlap_s), skipping blocks shorter than minBlockSeconds.
func (a *Analyzer) windowSamples(samples []float32) []block {
	sr := a.cfg.SampleRate
	segmentLen := int(a.cfg.SegmentS * float64(sr))
	stride := int((a.cfg.SegmentS - a.cfg.OverlapS) * float64(sr))
	if stride <= 0 {
		stride = segmentLen
	}
	minLen := int(minBlockSeconds * float64(sr))

	var blocks []block
	idx := 0
	for start := 0; start < len(samples); start += stride {
		end := start + segmentLen
		if end > len(samples) {
			end = len(samples)
		}
		if end-start < minLen {
			break
		}
		startMs := int64(float64(start) / float64(sr) * 1000)
		blocks = append(blocks, block{index: idx, startMs: startMs, samples: samples[start:end]})
		idx++
		if end == len(samples) {
			break
		}
	}
	return blocks
}

// matchBlock fingerprints one block, shifts the times by the block's
// absolute start, and calls Stage-1; Stage-2 is the fallback when Stage-1
// finds nothing. Every above-threshold Stage-1 candidate is returned —
// a block straddling several overlapping tracks contributes all of them
// to the merge.
func (a *Analyzer) matchBlock(ctx context.Context, b block) ([]models.Match, error) {
	// Cancellation is cooperative at window boundaries: a cancelled run
	// stops picking up blocks but never leaves partial state behind.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		metrics.Get().MixWindowsProcessed.Inc()
		metrics.Get().MatchDuration.Observe(time.Since(start).Seconds())
	}()

	spec := a.extractor.Spectrogram(b.samples)
	peaks := a.extractor.ExtractPeaks(spec)
	fps := fingerprint.Encode(a.fpCfg, peaks)

	for i := range fps {
		fps[i].TimeOffsetMs += int32(b.startMs)
	}

	// fps times are already shifted to the mix's absolute timeline above, so
	// Stage-1's derived query_start_ms is already absolute; do not shift again.
	matches, err := a.stage1.Match(ctx, fps)
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		metrics.Get().Stage1MatchesTotal.Add(float64(len(matches)))
		return matches, nil
	}

	if a.stage2 == nil {
		return nil, nil
	}
	match, ok, err := a.stage2.MatchSegment(ctx, b.samples)
	if err != nil || !ok {
		return nil, nil
	}
	match.QueryStartMs += b.startMs
	metrics.Get().Stage2MatchesTotal.Inc()
	return []models.Match{match}, nil
}

// mergeMatches folds matches of the same track that are within
// mergeGapMs of each other into one, extending duration to span both,
// keeping the maximum confidence, summing match_count, and averaging
// time_stretch_ratio.
func mergeMatches(matches []models.Match) []models.Match {
	byTrack := make(map[uint][]models.Match)
	for _, m := range matches {
		byTrack[m.TrackID] = append(byTrack[m.TrackID], m)
	}

	var out []models.Match
	for _, group := range byTrack {
		sort.Slice(group, func(i, j int) bool { return group[i].QueryStartMs < group[j].QueryStartMs })

		cur := group[0]
		stretchSum := cur.TimeStretchRatio
		stretchCount := 1

		for _, next := range group[1:] {
			if next.QueryStartMs-(cur.QueryStartMs+cur.DurationMs) < mergeGapMs {
				end := maxInt64(cur.QueryStartMs+cur.DurationMs, next.QueryStartMs+next.DurationMs)
				cur.DurationMs = end - cur.QueryStartMs
				if next.Confidence > cur.Confidence {
					cur.Confidence = next.Confidence
				}
				cur.MatchCount += next.MatchCount
				stretchSum += next.TimeStretchRatio
				stretchCount++
				continue
			}
			cur.TimeStretchRatio = stretchSum / float64(stretchCount)
			out = append(out, cur)
			cur = next
			stretchSum = cur.TimeStretchRatio
			stretchCount = 1
		}
		cur.TimeStretchRatio = stretchSum / float64(stretchCount)
		out = append(out, cur)
	}
	return out
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
