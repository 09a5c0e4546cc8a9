package matcher

import (
	"context"
	"sort"

	"github.com/waveprint/mixid/internal/audio"
	"github.com/waveprint/mixid/internal/errors"
	"github.com/waveprint/mixid/internal/features"
	"github.com/waveprint/mixid/internal/models"
)

// Stage2Config carries the dual-feature matcher's tunable parameters.
type Stage2Config struct {
	SampleRate        int
	Hop               int
	ScreenTopN        int
	SlideStep         int
	MinOverlap        int
	CombinedThreshold float64
	ChromaThreshold   float64
}

// DefaultStage2Config returns the standard screening and run thresholds.
func DefaultStage2Config(sampleRate int) Stage2Config {
	return Stage2Config{
		SampleRate:        sampleRate,
		Hop:               2048,
		ScreenTopN:        200,
		SlideStep:         15,
		MinOverlap:        30,
		CombinedThreshold: 0.80,
		ChromaThreshold:   0.92,
	}
}

// FeatureStore is the subset of the fingerprint store Stage-2 needs.
type FeatureStore interface {
	GetAllAudioFeatures(kind models.FeatureKind) (map[uint][]float64, error)
	Track(trackID uint) (models.Track, error)
}

// Stage2 runs the dual-feature (MFCC + chroma) sustained-run matcher.
type Stage2 struct {
	store      FeatureStore
	summarizer *features.Summarizer
	loader     *audio.Loader
	cfg        Stage2Config
}

// NewStage2 constructs a Stage2 matcher.
func NewStage2(store FeatureStore, summarizer *features.Summarizer, loader *audio.Loader, cfg Stage2Config) *Stage2 {
	return &Stage2{store: store, summarizer: summarizer, loader: loader, cfg: cfg}
}

// candidate carries the screening score and feature frames built lazily
// during re-ranking.
type candidate struct {
	trackID uint
	cosine  float64
}

// MatchSegmentAt decodes the [startMs, endMs) window of mixPath and runs
// MatchSegment over it, for callers that want the dual-feature matcher on
// a specific slice of a mix without windowing the audio themselves.
func (s *Stage2) MatchSegmentAt(ctx context.Context, mixPath string, startMs, endMs int64) (models.Match, bool, error) {
	offset := float64(startMs) / 1000
	duration := float64(endMs-startMs) / 1000
	window, err := s.loader.Load(ctx, mixPath, s.cfg.SampleRate, &offset, &duration)
	if err != nil {
		return models.Match{}, false, err
	}
	if len(window) == 0 {
		return models.Match{}, false, errors.EmptyAudio(mixPath)
	}
	match, ok, err := s.MatchSegment(ctx, window)
	if ok {
		match.QueryStartMs += startMs
	}
	return match, ok, err
}

// MatchSegment implements the two substages: cosine screening over
// compact summaries, then a frame-level sustained-run re-rank over the
// surviving top-N candidates. Returns a zero Match and ok=false when no
// candidate scores positively.
func (s *Stage2) MatchSegment(ctx context.Context, window []float32) (models.Match, bool, error) {
	qM := s.summarizer.MFCCSummary(window)
	qC := s.summarizer.ChromaSummary(window)
	if features.L2Norm(qM) == 0 || features.L2Norm(qC) == 0 {
		return models.Match{}, false, errors.ZeroFeature("query window")
	}

	mAll, err := s.store.GetAllAudioFeatures(models.KindMFCCSummary)
	if err != nil {
		return models.Match{}, false, err
	}
	cAll, err := s.store.GetAllAudioFeatures(models.KindChromaSummary)
	if err != nil {
		return models.Match{}, false, err
	}
	if len(mAll) == 0 || len(cAll) == 0 {
		return models.Match{}, false, errors.NoCandidates()
	}

	qCombined := append(append([]float64{}, normalizeOrZero(qM)...), normalizeOrZero(qC)...)

	var candidates []candidate
	for trackID, m := range mAll {
		c, ok := cAll[trackID]
		if !ok {
			continue
		}
		refCombined := append(append([]float64{}, normalizeOrZero(m)...), normalizeOrZero(c)...)
		sim := features.CosineSimilarity(qCombined, refCombined)
		candidates = append(candidates, candidate{trackID: trackID, cosine: sim})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].cosine > candidates[j].cosine })
	if len(candidates) > s.cfg.ScreenTopN {
		candidates = candidates[:s.cfg.ScreenTopN]
	}

	qCombinedFrames := s.summarizer.CombinedFrameFeatures(window)
	qChromaFrames := s.summarizer.ChromaFrameFeatures(window)

	var best models.Match
	bestScore := 0
	found := false

	for _, cand := range candidates {
		track, err := s.store.Track(cand.trackID)
		if err != nil {
			continue
		}
		refSamples, err := s.loader.Load(ctx, track.Filepath, s.cfg.SampleRate, nil, nil)
		if err != nil {
			continue // load error: skip, continue with others
		}

		refCombinedFrames := s.summarizer.CombinedFrameFeatures(refSamples)
		refChromaFrames := s.summarizer.ChromaFrameFeatures(refSamples)
		if len(refCombinedFrames) < s.cfg.MinOverlap {
			continue // reference too short, skip
		}

		combinedRun, combinedAvg := BestSustainedRun(qCombinedFrames, refCombinedFrames, s.cfg.SlideStep, s.cfg.MinOverlap, s.cfg.CombinedThreshold)
		chromaRun, chromaAvg := BestSustainedRun(qChromaFrames, refChromaFrames, s.cfg.SlideStep, s.cfg.MinOverlap, s.cfg.ChromaThreshold)

		score := combinedRun
		if chromaRun < score {
			score = chromaRun
		}
		avg := 0.0
		if score > 0 {
			avg = combinedAvg
			if chromaAvg < avg {
				avg = chromaAvg
			}
		}
		if score <= bestScore {
			continue
		}

		bestScore = score
		found = true
		best = models.Match{
			TrackID:          cand.trackID,
			Title:            track.Title,
			Artist:           track.Artist,
			Filename:         track.Filename,
			Filepath:         track.Filepath,
			Confidence:       clamp01(avg),
			DurationMs:       int64(float64(score) * float64(s.cfg.Hop) / float64(s.cfg.SampleRate) * 1000),
			MatchCount:       score,
			TimeStretchRatio: 1.0,
		}
	}

	if !found || bestScore <= 0 {
		return models.Match{}, false, nil
	}
	return best, true, nil
}

func normalizeOrZero(v []float64) []float64 {
	if n := features.Normalize(v); n != nil {
		return n
	}
	return make([]float64, len(v))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// BestSustainedRun slides query frames q across reference frames ref in
// steps of slideStep, requiring at least minOverlap frames of overlap at
// each position, and returns the longest contiguous run of column-cosine
// similarity above threshold, plus the mean similarity within that run.
// q and ref are equal-width columns.
func BestSustainedRun(q, ref [][]float64, slideStep, minOverlap int, threshold float64) (runLength int, avgSim float64) {
	if len(q) == 0 || len(ref) == 0 || len(ref) < minOverlap {
		return 0, 0
	}

	for start := 0; start+minOverlap <= len(ref); start += slideStep {
		overlap := len(q)
		if start+overlap > len(ref) {
			overlap = len(ref) - start
		}
		if overlap < minOverlap {
			continue
		}

		sims := make([]float64, overlap)
		for i := 0; i < overlap; i++ {
			sims[i] = features.CosineSimilarity(q[i], ref[start+i])
		}

		curRun, curSum := 0, 0.0
		bestRun, bestSum := 0, 0.0
		for _, sim := range sims {
			if sim >= threshold {
				curRun++
				curSum += sim
				if curRun > bestRun {
					bestRun = curRun
					bestSum = curSum
				}
			} else {
				curRun, curSum = 0, 0
			}
		}
		if bestRun > runLength {
			runLength = bestRun
			if bestRun > 0 {
				avgSim = bestSum / float64(bestRun)
			}
		}
	}
	return runLength, avgSim
}
