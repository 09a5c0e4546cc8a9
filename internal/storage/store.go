// Package storage implements the fingerprint store: a persistent,
// GORM-backed hash-join index over postings plus per-track compact feature
// summaries. A single writer may run at a time; readers run concurrently
// against the database's own snapshot isolation, and no two operations
// ever share a connection object.
package storage

import (
	"context"
	"math"
	"os"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/waveprint/mixid/internal/cache"
	"github.com/waveprint/mixid/internal/errors"
	"github.com/waveprint/mixid/internal/logger"
	"github.com/waveprint/mixid/internal/models"
)

// PostingRow is one row returned by QueryFingerprints: a hash match tying a
// track to the database-side time offset it was recorded at.
type PostingRow struct {
	TrackID      uint
	Hash         int64
	TimeOffsetMs int32
}

// Store owns the fingerprints, fingerprint_status, and audio_features
// tables. Every exported method opens its own unit of work against db so
// it is safe to call concurrently from any worker; GORM's *gorm.DB pools
// connections internally.
type Store struct {
	db *gorm.DB

	// mu serializes writes; readers proceed concurrently against the
	// database's own isolation.
	mu sync.Mutex

	// cache is an optional Redis read-through layer for hot-hash posting
	// lookups. Nil means the store works standalone.
	cache *cache.PostingCache
}

// Open creates/migrates a SQLite-backed store at path. An empty path opens
// an in-memory database, useful for tests.
func Open(path string) (*Store, error) {
	if path == "" {
		path = "file::memory:?cache=shared"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, errors.Store("open", err)
	}

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, errors.Store("pragma", err)
	}

	if err := db.AutoMigrate(
		&models.Track{},
		&models.Fingerprint{},
		&models.FingerprintStatus{},
		&models.AudioFeature{},
	); err != nil {
		return nil, errors.Store("migrate", err)
	}

	return &Store{db: db}, nil
}

// WithCache attaches an optional posting cache to the store. Queries first
// consult the cache for hashes seen more than once in a session and only
// hit SQLite for the remainder.
func (s *Store) WithCache(c *cache.PostingCache) *Store {
	s.cache = c
	return s
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsIndexed reports whether track_id has a fingerprint_status row.
func (s *Store) IsIndexed(trackID uint) (bool, error) {
	var count int64
	if err := s.db.Model(&models.FingerprintStatus{}).
		Where("track_id = ?", trackID).Count(&count).Error; err != nil {
		return false, errors.Store("is_indexed", err)
	}
	return count > 0, nil
}

// StoreFingerprints batches fps into a single transaction. replace=true
// first deletes the track's existing postings and status row. Partial
// failure rolls back all effects for trackID.
func (s *Store) StoreFingerprints(trackID uint, fps []models.Fingerprint, replace bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		if replace {
			if err := tx.Where("track_id = ?", trackID).Delete(&models.Fingerprint{}).Error; err != nil {
				return err
			}
			if err := tx.Where("track_id = ?", trackID).Delete(&models.FingerprintStatus{}).Error; err != nil {
				return err
			}
		}

		// A status row exists iff at least one posting does, so a track
		// that yields zero fingerprints writes neither.
		if len(fps) == 0 {
			return nil
		}

		rows := make([]models.Fingerprint, len(fps))
		for i, fp := range fps {
			rows[i] = fp
			rows[i].ID = 0
			rows[i].TrackID = trackID
		}
		if err := tx.CreateInBatches(rows, 500).Error; err != nil {
			return err
		}

		status := models.FingerprintStatus{
			TrackID:          trackID,
			FingerprintCount: len(rows),
			IndexedAt:        time.Now().UTC(),
		}
		if err := tx.Save(&status).Error; err != nil {
			return err
		}
		return nil
	})
}

// QueryFingerprints performs a hash-join: hashes are loaded into a
// temporary key-only relation and inner-joined against the fingerprints
// table, avoiding a quadratic IN(...) clause for large query sets.
// Returns an unordered multiset; callers must not assume order.
func (s *Store) QueryFingerprints(ctx context.Context, hashes []int64) ([]PostingRow, error) {
	if len(hashes) == 0 {
		return nil, nil
	}

	var rows []PostingRow
	var toQuery []int64

	if s.cache != nil {
		cached, misses := s.cache.LookupMany(ctx, hashes)
		for _, p := range cached {
			rows = append(rows, PostingRow{TrackID: p.TrackID, Hash: p.Hash, TimeOffsetMs: p.TimeOffsetMs})
		}
		toQuery = misses
	} else {
		toQuery = hashes
	}
	if len(toQuery) == 0 {
		return rows, nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return nil, errors.Store("query_fingerprints", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, errors.Store("query_fingerprints", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "CREATE TEMP TABLE IF NOT EXISTS query_hashes(hash INTEGER)"); err != nil {
		return nil, errors.Store("query_fingerprints", err)
	}
	if _, err := conn.ExecContext(ctx, "DELETE FROM query_hashes"); err != nil {
		return nil, errors.Store("query_fingerprints", err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Store("query_fingerprints", err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO query_hashes(hash) VALUES (?)")
	if err != nil {
		tx.Rollback()
		return nil, errors.Store("query_fingerprints", err)
	}
	for _, h := range toQuery {
		if _, err := stmt.ExecContext(ctx, h); err != nil {
			stmt.Close()
			tx.Rollback()
			return nil, errors.Store("query_fingerprints", err)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return nil, errors.Store("query_fingerprints", err)
	}

	result, err := conn.QueryContext(ctx, `
		SELECT f.track_id, f.hash, f.time_offset_ms
		FROM query_hashes q
		INNER JOIN fingerprints f ON f.hash = q.hash
	`)
	if err != nil {
		return nil, errors.Store("query_fingerprints", err)
	}
	defer result.Close()

	var fresh []PostingRow
	for result.Next() {
		var r PostingRow
		if err := result.Scan(&r.TrackID, &r.Hash, &r.TimeOffsetMs); err != nil {
			return nil, errors.Store("query_fingerprints", err)
		}
		fresh = append(fresh, r)
	}
	if err := result.Err(); err != nil {
		return nil, errors.Store("query_fingerprints", err)
	}

	if s.cache != nil {
		asPostings := make([]cache.Posting, len(fresh))
		for i, r := range fresh {
			asPostings[i] = cache.Posting{TrackID: r.TrackID, Hash: r.Hash, TimeOffsetMs: r.TimeOffsetMs}
		}
		s.cache.StoreMany(ctx, asPostings)
	}
	return append(rows, fresh...), nil
}

// StoreAudioFeature upserts the (trackID, kind) feature vector.
func (s *Store) StoreAudioFeature(trackID uint, kind models.FeatureKind, vector []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	feature := models.AudioFeature{
		TrackID: trackID,
		Kind:    kind,
		Data:    encodeFloats(vector),
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Save(&feature).Error
	})
}

// GetAllAudioFeatures bulk-loads every summary of one kind, used once per
// mix analysis for Stage-2 screening.
func (s *Store) GetAllAudioFeatures(kind models.FeatureKind) (map[uint][]float64, error) {
	var rows []models.AudioFeature
	if err := s.db.Where("kind = ?", kind).Find(&rows).Error; err != nil {
		return nil, errors.Store("get_all_audio_features", err)
	}
	out := make(map[uint][]float64, len(rows))
	for _, r := range rows {
		out[r.TrackID] = decodeFloats(r.Data)
	}
	return out, nil
}

// DeleteTrack cascades to postings, status, and features in one transaction.
func (s *Store) DeleteTrack(trackID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id = ?", trackID).Delete(&models.Fingerprint{}).Error; err != nil {
			return err
		}
		if err := tx.Where("track_id = ?", trackID).Delete(&models.FingerprintStatus{}).Error; err != nil {
			return err
		}
		if err := tx.Where("track_id = ?", trackID).Delete(&models.AudioFeature{}).Error; err != nil {
			return err
		}
		return nil
	})
}

// ClearAll wipes every posting, status row, and feature — the `clear` CLI
// command's backing operation.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM fingerprints").Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM fingerprint_status").Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM audio_features").Error; err != nil {
			return err
		}
		return nil
	})
}

// Stats summarizes the current state of the store.
func (s *Store) Stats() (models.Stats, error) {
	var stats models.Stats

	if err := s.db.Model(&models.Track{}).Count(&stats.TotalTracks).Error; err != nil {
		return stats, errors.Store("stats", err)
	}
	if err := s.db.Model(&models.FingerprintStatus{}).Count(&stats.IndexedTracks).Error; err != nil {
		return stats, errors.Store("stats", err)
	}
	if err := s.db.Model(&models.Fingerprint{}).Count(&stats.TotalFingerprints).Error; err != nil {
		return stats, errors.Store("stats", err)
	}
	if stats.IndexedTracks > 0 {
		stats.AvgPerTrack = float64(stats.TotalFingerprints) / float64(stats.IndexedTracks)
	}
	return stats, nil
}

// UnindexedTracks returns tracks with no fingerprint_status row, optionally
// filtered by mode and capped at limit.
func (s *Store) UnindexedTracks(mode string, limit int) ([]models.Track, error) {
	q := s.db.Model(&models.Track{}).
		Where("id NOT IN (SELECT track_id FROM fingerprint_status)")
	if mode != "" {
		q = q.Where("mode = ?", mode)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var tracks []models.Track
	if err := q.Find(&tracks).Error; err != nil {
		return nil, errors.Store("unindexed_tracks", err)
	}
	return tracks, nil
}

// Track looks up a single track by ID.
func (s *Store) Track(trackID uint) (models.Track, error) {
	var t models.Track
	if err := s.db.First(&t, trackID).Error; err != nil {
		return t, errors.Store("track", err)
	}
	return t, nil
}

// UpsertTrack inserts or updates a track row. The engine never owns track
// lifecycle; this exists so CLI/test fixtures can seed a library
// without a separate host application.
func (s *Store) UpsertTrack(t models.Track) (models.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Save(&t).Error; err != nil {
		return t, errors.Store("upsert_track", err)
	}
	return t, nil
}

// AllTracks returns every track row.
func (s *Store) AllTracks() ([]models.Track, error) {
	var tracks []models.Track
	if err := s.db.Find(&tracks).Error; err != nil {
		return nil, errors.Store("all_tracks", err)
	}
	return tracks, nil
}

// encodeFloats packs a []float64 into little-endian float32 bytes, the
// compact on-disk representation for feature vectors.
func encodeFloats(v []float64) []byte {
	out := make([]byte, len(v)*4)
	for i, x := range v {
		bits := math.Float32bits(float32(x))
		out[i*4] = byte(bits)
		out[i*4+1] = byte(bits >> 8)
		out[i*4+2] = byte(bits >> 16)
		out[i*4+3] = byte(bits >> 24)
	}
	return out
}

func decodeFloats(b []byte) []float64 {
	n := len(b) / 4
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		bits := uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
		out[i] = float64(math.Float32frombits(bits))
	}
	return out
}

// Backup snapshots the sqlite file to destPath, used before an S3 export.
func (s *Store) Backup(ctx context.Context, destPath string) error {
	if err := s.db.WithContext(ctx).Exec("VACUUM INTO ?", destPath).Error; err != nil {
		return errors.Store("backup", err)
	}
	logger.Log.Info("store backup written", logger.WithFilename(destPath))
	return nil
}

// Export snapshots the database to a temp file and uploads it through
// uploader, returning the remote location. objectKey identifies the backup
// (e.g. a run ID) independent of the local file name.
func (s *Store) Export(ctx context.Context, uploader BackupUploader, objectKey string) (*UploadResult, error) {
	tmp, err := os.CreateTemp("", "mixid-backup-*.db")
	if err != nil {
		return nil, errors.IO("create backup temp file", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	// VACUUM INTO refuses to overwrite an existing file, so drop the
	// placeholder CreateTemp made and keep only its unique name.
	_ = os.Remove(tmpPath)
	defer os.Remove(tmpPath)

	if err := s.Backup(ctx, tmpPath); err != nil {
		return nil, err
	}

	result, err := uploader.UploadBackup(ctx, tmpPath, objectKey)
	if err != nil {
		return nil, errors.Store("export", err)
	}
	logger.Log.Info("store exported to remote backup", logger.WithFilename(result.Key))
	return result, nil
}
