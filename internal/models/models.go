// Package models defines the persistent and value types shared across the
// fingerprinting engine.
package models

import "time"

// Track is the external, read-only catalog entry the engine identifies
// against. Lifecycle is owned by the host library; the engine never
// writes to this table.
type Track struct {
	ID              uint    `gorm:"primaryKey" json:"id"`
	Filepath        string  `gorm:"not null" json:"filepath"`
	Filename        string  `gorm:"not null" json:"filename"`
	Title           string  `json:"title,omitempty"`
	Artist          string  `json:"artist,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Mode            string  `json:"mode,omitempty"`
}

func (Track) TableName() string { return "tracks" }

// Fingerprint is a single stored posting: a 32-bit hash tied to the track
// and time offset it was observed at.
type Fingerprint struct {
	ID           uint  `gorm:"primaryKey" json:"id"`
	TrackID      uint  `gorm:"not null;index" json:"track_id"`
	Hash         int64 `gorm:"not null;index" json:"hash"`
	TimeOffsetMs int32 `gorm:"not null" json:"time_offset_ms"`
	FreqBin      int16 `json:"freq_bin"`
}

func (Fingerprint) TableName() string { return "fingerprints" }

// FingerprintStatus marks a track as indexed. Its existence is the
// authoritative "already indexed" signal, cheaper than scanning postings.
type FingerprintStatus struct {
	TrackID          uint      `gorm:"primaryKey" json:"track_id"`
	FingerprintCount int       `json:"fingerprint_count"`
	IndexedAt        time.Time `json:"indexed_at"`
}

func (FingerprintStatus) TableName() string { return "fingerprint_status" }

// FeatureKind enumerates the two compact per-track summary vectors.
type FeatureKind string

const (
	KindMFCCSummary   FeatureKind = "mfcc_summary"
	KindChromaSummary FeatureKind = "chroma_summary"
)

// AudioFeature stores a fixed-shape float vector for one (track, kind) pair.
// The vector is persisted as a flat blob of little-endian float32 values.
type AudioFeature struct {
	TrackID uint        `gorm:"primaryKey" json:"track_id"`
	Kind    FeatureKind `gorm:"primaryKey" json:"kind"`
	Data    []byte      `json:"-"`
}

func (AudioFeature) TableName() string { return "audio_features" }

// Peak is a transient spectral local maximum from peak extraction. It never
// persists — it lives only within one extraction pass.
type Peak struct {
	TimeFrame int32
	FreqBin   int16
	Magnitude float32 // dB
}

// Match is a produced-by-value identification result: one track located
// somewhere in the query timeline.
type Match struct {
	TrackID          uint
	Title            string
	Artist           string
	Filename         string
	Filepath         string
	Confidence       float64
	QueryStartMs     int64
	TrackStartMs     int64
	DurationMs       int64
	MatchCount       int
	TimeStretchRatio float64
}

// CueEntry is a projection of Match into the cue-sheet timeline.
type CueEntry struct {
	StartTimeMs int64
	TrackID     uint
	Title       string
	Artist      string
	Filename    string
	Confidence  float64
}

// Stats summarizes the current state of the fingerprint store.
type Stats struct {
	TotalTracks       int64
	IndexedTracks     int64
	TotalFingerprints int64
	AvgPerTrack       float64
}
