package matcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveprint/mixid/internal/models"
	"github.com/waveprint/mixid/internal/storage"
)

// fakeStore is an in-memory Store double keyed on hash, letting tests
// script exact postings without a real database.
type fakeStore struct {
	postings []storage.PostingRow
	tracks   map[uint]models.Track
}

func (f *fakeStore) QueryFingerprints(ctx context.Context, hashes []int64) ([]storage.PostingRow, error) {
	wanted := make(map[int64]struct{}, len(hashes))
	for _, h := range hashes {
		wanted[h] = struct{}{}
	}
	var out []storage.PostingRow
	for _, p := range f.postings {
		if _, ok := wanted[p.Hash]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) Track(trackID uint) (models.Track, error) {
	return f.tracks[trackID], nil
}

func TestStage1MatchEmptyQueryReturnsNil(t *testing.T) {
	s1 := NewStage1(&fakeStore{}, DefaultStage1Config())
	matches, err := s1.Match(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, matches)
}

// TestStage1HistogramClustering: track A has 20 fingerprints with a tight,
// consistent offset; track B has 6 fingerprints spread across a wide
// range. A must rank above B.
func TestStage1HistogramClustering(t *testing.T) {
	store := &fakeStore{
		tracks: map[uint]models.Track{
			1: {ID: 1, Filename: "a.wav"},
			2: {ID: 2, Filename: "b.wav"},
		},
	}

	var query []models.Fingerprint
	// Track A: 20 postings at db_time=0, queried at time=5000 -> offset 5000ms
	// for every hash, landing in one tight bucket.
	for i := 0; i < 20; i++ {
		hash := int64(1000 + i)
		store.postings = append(store.postings, storage.PostingRow{TrackID: 1, Hash: hash, TimeOffsetMs: 0})
		query = append(query, models.Fingerprint{Hash: hash, TimeOffsetMs: 5000})
	}
	// Track B: 6 postings whose offsets spread across [0, 60000].
	spread := []int64{0, 10000, 20000, 30000, 45000, 60000}
	for i, off := range spread {
		hash := int64(2000 + i)
		store.postings = append(store.postings, storage.PostingRow{TrackID: 2, Hash: hash, TimeOffsetMs: 0})
		query = append(query, models.Fingerprint{Hash: hash, TimeOffsetMs: int32(off)})
	}

	s1 := NewStage1(store, DefaultStage1Config())
	matches, err := s1.Match(context.Background(), query)
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	assert.Equal(t, uint(1), matches[0].TrackID)
	if len(matches) > 1 {
		assert.Greater(t, matches[0].Confidence, matches[1].Confidence)
	}
}

// TestStage1ClusterStraddlingGridBoundary: a tight cluster of offsets
// centered near 5000ms with ±50ms jitter crosses a fixed 100ms grid line.
// Binning relative to the track's minimum offset must still produce one
// cluster carrying every posting, not two fragments.
func TestStage1ClusterStraddlingGridBoundary(t *testing.T) {
	store := &fakeStore{tracks: map[uint]models.Track{1: {ID: 1, Filename: "a.wav"}}}

	var query []models.Fingerprint
	for i := 0; i < 20; i++ {
		hash := int64(3000 + i)
		// Offsets 4950, 4955, ..., 5045: a 95ms spread across the 5000ms line.
		store.postings = append(store.postings, storage.PostingRow{TrackID: 1, Hash: hash, TimeOffsetMs: 0})
		query = append(query, models.Fingerprint{Hash: hash, TimeOffsetMs: int32(4950 + i*5)})
	}

	s1 := NewStage1(store, DefaultStage1Config())
	matches, err := s1.Match(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 20, matches[0].MatchCount)
	// center = 4950 + 0*100 + 50
	assert.EqualValues(t, 5000, matches[0].QueryStartMs)
}

func TestStage1TieBreaksByTrackID(t *testing.T) {
	store := &fakeStore{
		tracks: map[uint]models.Track{5: {ID: 5}, 3: {ID: 3}},
	}
	var query []models.Fingerprint
	for _, trackID := range []uint{5, 3} {
		for i := 0; i < 5; i++ {
			hash := int64(trackID)*100 + int64(i)
			store.postings = append(store.postings, storage.PostingRow{TrackID: trackID, Hash: hash, TimeOffsetMs: 0})
			query = append(query, models.Fingerprint{Hash: hash, TimeOffsetMs: 1000})
		}
	}

	cfg := DefaultStage1Config()
	cfg.MinMatches = 5
	s1 := NewStage1(store, cfg)
	matches, err := s1.Match(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	// Equal confidence and count -> lower track_id wins.
	assert.Equal(t, uint(3), matches[0].TrackID)
	assert.Equal(t, uint(5), matches[1].TrackID)
}

func TestStage1FiltersBelowMinMatches(t *testing.T) {
	store := &fakeStore{tracks: map[uint]models.Track{1: {ID: 1}}}
	// A single hash match can't reach min_matches=5, so no cluster forms.
	store.postings = []storage.PostingRow{{TrackID: 1, Hash: 1, TimeOffsetMs: 0}}
	query := []models.Fingerprint{{Hash: 1, TimeOffsetMs: 1000}}

	s1 := NewStage1(store, DefaultStage1Config())
	matches, err := s1.Match(context.Background(), query)
	require.NoError(t, err)
	assert.Empty(t, matches)
}
