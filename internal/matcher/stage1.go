// Package matcher implements the two-stage matcher: Stage-1's
// offset-histogram clustering over posting lists, and Stage-2's
// dual-feature sustained-run fallback.
package matcher

import (
	"context"
	"math"
	"sort"

	"github.com/waveprint/mixid/internal/models"
	"github.com/waveprint/mixid/internal/storage"
)

// Store is the subset of the fingerprint store Stage-1 needs.
type Store interface {
	QueryFingerprints(ctx context.Context, hashes []int64) ([]storage.PostingRow, error)
	Track(trackID uint) (models.Track, error)
}

// Stage1Config carries the histogram matcher's tunable parameters.
type Stage1Config struct {
	BucketWidthMs int64
	MinMatches    int
	MinConfidence float64
}

// DefaultStage1Config returns the standard histogram matcher parameters.
func DefaultStage1Config() Stage1Config {
	return Stage1Config{
		BucketWidthMs: 100,
		MinMatches:    5,
		MinConfidence: 0.1,
	}
}

// Stage1 runs the histogram-of-offsets matcher.
type Stage1 struct {
	store Store
	cfg   Stage1Config
}

// NewStage1 constructs a Stage1 matcher against store with cfg.
func NewStage1(store Store, cfg Stage1Config) *Stage1 {
	return &Stage1{store: store, cfg: cfg}
}

// Match runs the offset-histogram algorithm over query fingerprints q (absolute
// times in the query timeline) and returns candidate Matches sorted by
// (-confidence, -count), ties broken by ascending track_id.
func (m *Stage1) Match(ctx context.Context, q []models.Fingerprint) ([]models.Match, error) {
	if len(q) == 0 {
		return nil, nil
	}

	queryTimesByHash := make(map[int64][]int64)
	hashSet := make(map[int64]struct{})
	for _, fp := range q {
		queryTimesByHash[fp.Hash] = append(queryTimesByHash[fp.Hash], int64(fp.TimeOffsetMs))
		hashSet[fp.Hash] = struct{}{}
	}
	hashes := make([]int64, 0, len(hashSet))
	for h := range hashSet {
		hashes = append(hashes, h)
	}

	postings, err := m.store.QueryFingerprints(ctx, hashes)
	if err != nil {
		return nil, err
	}

	trackOffsets := make(map[uint][]int64)
	for _, p := range postings {
		for _, qt := range queryTimesByHash[p.Hash] {
			trackOffsets[p.TrackID] = append(trackOffsets[p.TrackID], qt-int64(p.TimeOffsetMs))
		}
	}

	type cluster struct {
		trackID uint
		center  int64
		offsets []int64
	}
	var clusters []cluster
	for trackID, offsets := range trackOffsets {
		// Bins are relative to the track's own minimum offset, so a
		// cluster tighter than one bucket width that contains that minimum
		// lands in a single bucket regardless of where it sits on the
		// absolute timeline. Offsets further along still fall on a
		// bucket-width grid anchored at the minimum.
		minOff, _ := minMax(offsets)
		buckets := make(map[int64][]int64)
		for _, off := range offsets {
			bucket := (off - minOff) / m.cfg.BucketWidthMs
			buckets[bucket] = append(buckets[bucket], off)
		}
		for bucket, members := range buckets {
			if len(members) < m.cfg.MinMatches {
				continue
			}
			center := minOff + bucket*m.cfg.BucketWidthMs + m.cfg.BucketWidthMs/2
			clusters = append(clusters, cluster{trackID: trackID, center: center, offsets: members})
		}
	}

	var matches []models.Match
	for _, c := range clusters {
		matchRatio := float64(len(c.offsets)) / float64(len(q))
		tightness := tightnessBonus(c.offsets)
		confidence := math.Min(1.0, matchRatio*10*(0.5+0.5*tightness))
		if confidence < m.cfg.MinConfidence {
			continue
		}

		minOff, maxOff := minMax(c.offsets)
		queryStart := c.center
		if queryStart < 0 {
			queryStart = 0
		}
		trackStart := -c.center
		if trackStart < 0 {
			trackStart = 0
		}
		duration := maxOff - minOff

		track, err := m.store.Track(c.trackID)
		if err != nil {
			continue // track row absent or unreadable; skip rather than abort the batch
		}

		matches = append(matches, models.Match{
			TrackID:          c.trackID,
			Title:            track.Title,
			Artist:           track.Artist,
			Filename:         track.Filename,
			Filepath:         track.Filepath,
			Confidence:       confidence,
			QueryStartMs:     queryStart,
			TrackStartMs:     trackStart,
			DurationMs:       duration,
			MatchCount:       len(c.offsets),
			TimeStretchRatio: 1.0,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		if matches[i].MatchCount != matches[j].MatchCount {
			return matches[i].MatchCount > matches[j].MatchCount
		}
		return matches[i].TrackID < matches[j].TrackID
	})
	return matches, nil
}

func tightnessBonus(offsets []int64) float64 {
	if len(offsets) <= 1 {
		return 1.0
	}
	mean := 0.0
	for _, o := range offsets {
		mean += float64(o)
	}
	mean /= float64(len(offsets))

	var varSum float64
	for _, o := range offsets {
		d := float64(o) - mean
		varSum += d * d
	}
	stddev := math.Sqrt(varSum / float64(len(offsets)))

	bonus := 1 - stddev/1000
	if bonus < 0 {
		bonus = 0
	}
	return bonus
}

func minMax(v []int64) (min, max int64) {
	min, max = v[0], v[0]
	for _, x := range v[1:] {
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	return
}
