package mixanalyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveprint/mixid/internal/models"
)

// TestMergeMatchesFoldsCloseSegments: two matches of the same track within
// the merge gap fold into one, extending duration to span both, summing
// match_count, and keeping the max confidence.
func TestMergeMatchesFoldsCloseSegments(t *testing.T) {
	matches := []models.Match{
		{TrackID: 1, QueryStartMs: 0, DurationMs: 40_000, Confidence: 0.6, MatchCount: 10, TimeStretchRatio: 1.0},
		{TrackID: 1, QueryStartMs: 50_000, DurationMs: 10_000, Confidence: 0.8, MatchCount: 5, TimeStretchRatio: 1.0},
	}
	merged := mergeMatches(matches)
	require.Len(t, merged, 1)
	m := merged[0]
	assert.EqualValues(t, 0, m.QueryStartMs)
	assert.EqualValues(t, 60_000, m.DurationMs)
	assert.Equal(t, 0.8, m.Confidence)
	assert.Equal(t, 15, m.MatchCount)
}

func TestMergeMatchesKeepsFarApartSegmentsSeparate(t *testing.T) {
	matches := []models.Match{
		{TrackID: 1, QueryStartMs: 0, DurationMs: 10_000, Confidence: 0.5, MatchCount: 5, TimeStretchRatio: 1.0},
		{TrackID: 1, QueryStartMs: 100_000, DurationMs: 10_000, Confidence: 0.5, MatchCount: 5, TimeStretchRatio: 1.0},
	}
	merged := mergeMatches(matches)
	assert.Len(t, merged, 2)
}

func TestMergeMatchesKeepsDifferentTracksSeparate(t *testing.T) {
	matches := []models.Match{
		{TrackID: 1, QueryStartMs: 0, DurationMs: 10_000, Confidence: 0.5, MatchCount: 5, TimeStretchRatio: 1.0},
		{TrackID: 2, QueryStartMs: 5_000, DurationMs: 10_000, Confidence: 0.5, MatchCount: 5, TimeStretchRatio: 1.0},
	}
	merged := mergeMatches(matches)
	assert.Len(t, merged, 2)
}

func TestWindowSamplesSkipsBlocksShorterThanMinimum(t *testing.T) {
	a := &Analyzer{cfg: Config{SampleRate: 1000, SegmentS: 2, OverlapS: 1}}
	// 2.5s of samples with 2s segments: every block is at most 2s long,
	// under the 5s minBlockSeconds, so none qualify.
	samples := make([]float32, 2500)
	blocks := a.windowSamples(samples)
	assert.Empty(t, blocks)
}

func TestWindowSamplesProducesExpectedStride(t *testing.T) {
	sr := 1000
	a := &Analyzer{cfg: Config{SampleRate: sr, SegmentS: 10, OverlapS: 5}}
	samples := make([]float32, sr*30) // 30s of audio
	blocks := a.windowSamples(samples)
	require.NotEmpty(t, blocks)
	assert.EqualValues(t, 0, blocks[0].startMs)
	assert.EqualValues(t, 5_000, blocks[1].startMs)
}

func TestMaxInt64(t *testing.T) {
	assert.EqualValues(t, 5, maxInt64(5, 3))
	assert.EqualValues(t, 5, maxInt64(3, 5))
}
