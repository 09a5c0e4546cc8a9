package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveprint/mixid/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestUpsertAndFetchTrack(t *testing.T) {
	store := newTestStore(t)

	track, err := store.UpsertTrack(models.Track{Filepath: "/music/a.wav", Filename: "a.wav", Title: "A", Artist: "Artist"})
	require.NoError(t, err)
	require.NotZero(t, track.ID)

	got, err := store.Track(track.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Title)
}

func TestStoreAndQueryFingerprintsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	track, err := store.UpsertTrack(models.Track{Filepath: "/music/a.wav", Filename: "a.wav"})
	require.NoError(t, err)

	fps := []models.Fingerprint{
		{Hash: 111, TimeOffsetMs: 0},
		{Hash: 222, TimeOffsetMs: 500},
	}
	require.NoError(t, store.StoreFingerprints(track.ID, fps, true))

	indexed, err := store.IsIndexed(track.ID)
	require.NoError(t, err)
	assert.True(t, indexed)

	rows, err := store.QueryFingerprints(context.Background(), []int64{111, 222, 999})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byHash := map[int64]PostingRow{}
	for _, r := range rows {
		byHash[r.Hash] = r
	}
	assert.Equal(t, track.ID, byHash[111].TrackID)
	assert.EqualValues(t, 500, byHash[222].TimeOffsetMs)
}

func TestStoreFingerprintsZeroPostingsWritesNoStatus(t *testing.T) {
	store := newTestStore(t)
	track, err := store.UpsertTrack(models.Track{Filepath: "/music/silent.wav", Filename: "silent.wav"})
	require.NoError(t, err)

	require.NoError(t, store.StoreFingerprints(track.ID, nil, true))

	indexed, err := store.IsIndexed(track.ID)
	require.NoError(t, err)
	assert.False(t, indexed)
}

func TestStoreFingerprintsReplaceDeletesOldRows(t *testing.T) {
	store := newTestStore(t)
	track, err := store.UpsertTrack(models.Track{Filepath: "/music/a.wav", Filename: "a.wav"})
	require.NoError(t, err)

	require.NoError(t, store.StoreFingerprints(track.ID, []models.Fingerprint{{Hash: 1, TimeOffsetMs: 0}}, true))
	require.NoError(t, store.StoreFingerprints(track.ID, []models.Fingerprint{{Hash: 2, TimeOffsetMs: 0}}, true))

	rows, err := store.QueryFingerprints(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 2, rows[0].Hash)
}

func TestAudioFeatureRoundTrip(t *testing.T) {
	store := newTestStore(t)
	track, err := store.UpsertTrack(models.Track{Filepath: "/music/a.wav", Filename: "a.wav"})
	require.NoError(t, err)

	vec := []float64{1.5, -2.25, 3.0}
	require.NoError(t, store.StoreAudioFeature(track.ID, models.KindMFCCSummary, vec))

	all, err := store.GetAllAudioFeatures(models.KindMFCCSummary)
	require.NoError(t, err)
	require.Contains(t, all, track.ID)
	for i, v := range vec {
		assert.InDelta(t, v, all[track.ID][i], 1e-4)
	}
}

func TestDeleteTrackCascades(t *testing.T) {
	store := newTestStore(t)
	track, err := store.UpsertTrack(models.Track{Filepath: "/music/a.wav", Filename: "a.wav"})
	require.NoError(t, err)

	require.NoError(t, store.StoreFingerprints(track.ID, []models.Fingerprint{{Hash: 1, TimeOffsetMs: 0}}, true))
	require.NoError(t, store.StoreAudioFeature(track.ID, models.KindChromaSummary, []float64{1}))

	require.NoError(t, store.DeleteTrack(track.ID))

	rows, err := store.QueryFingerprints(context.Background(), []int64{1})
	require.NoError(t, err)
	assert.Empty(t, rows)

	indexed, err := store.IsIndexed(track.ID)
	require.NoError(t, err)
	assert.False(t, indexed)
}

func TestUnindexedTracksFiltersByStatus(t *testing.T) {
	store := newTestStore(t)
	indexed, err := store.UpsertTrack(models.Track{Filepath: "/a.wav", Filename: "a.wav"})
	require.NoError(t, err)
	unindexed, err := store.UpsertTrack(models.Track{Filepath: "/b.wav", Filename: "b.wav"})
	require.NoError(t, err)

	require.NoError(t, store.StoreFingerprints(indexed.ID, []models.Fingerprint{{Hash: 1}}, true))

	tracks, err := store.UnindexedTracks("", 0)
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, unindexed.ID, tracks[0].ID)
}

func TestStatsReflectsCounts(t *testing.T) {
	store := newTestStore(t)
	track, err := store.UpsertTrack(models.Track{Filepath: "/a.wav", Filename: "a.wav"})
	require.NoError(t, err)
	require.NoError(t, store.StoreFingerprints(track.ID, []models.Fingerprint{{Hash: 1}, {Hash: 2}}, true))

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalTracks)
	assert.EqualValues(t, 1, stats.IndexedTracks)
	assert.EqualValues(t, 2, stats.TotalFingerprints)
	assert.InDelta(t, 2.0, stats.AvgPerTrack, 1e-9)
}

func TestClearAllWipesEverything(t *testing.T) {
	store := newTestStore(t)
	track, err := store.UpsertTrack(models.Track{Filepath: "/a.wav", Filename: "a.wav"})
	require.NoError(t, err)
	require.NoError(t, store.StoreFingerprints(track.ID, []models.Fingerprint{{Hash: 1}}, true))

	require.NoError(t, store.ClearAll())

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.TotalFingerprints)
	assert.Zero(t, stats.IndexedTracks)
}

func TestBackupWritesSnapshotFile(t *testing.T) {
	store := newTestStore(t)
	dest := filepath.Join(t.TempDir(), "snapshot.db")
	require.NoError(t, store.Backup(context.Background(), dest))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

type fakeUploader struct {
	lastKey string
}

func (f *fakeUploader) UploadBackup(ctx context.Context, localPath, objectKey string) (*UploadResult, error) {
	f.lastKey = objectKey
	info, err := os.Stat(localPath)
	if err != nil {
		return nil, err
	}
	return &UploadResult{Key: objectKey + ".db", Size: info.Size()}, nil
}

func TestExportUploadsBackup(t *testing.T) {
	store := newTestStore(t)
	uploader := &fakeUploader{}

	result, err := store.Export(context.Background(), uploader, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", uploader.lastKey)
	assert.Equal(t, "run-1.db", result.Key)
	assert.Greater(t, result.Size, int64(0))
}
