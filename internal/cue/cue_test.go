package cue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/waveprint/mixid/internal/models"
)

func TestFormatSingleEntry(t *testing.T) {
	entries := FromMatches([]models.Match{
		{QueryStartMs: 0, Artist: "A", Title: "T", Confidence: 0.75},
	})

	got := Format(entries)
	assert.Contains(t, got, " 1. [00:00] A - T (75%)")
}

func TestFromMatchesOrdersByStartTime(t *testing.T) {
	entries := FromMatches([]models.Match{
		{QueryStartMs: 90_000, Artist: "Second", Title: "Track", Confidence: 0.5},
		{QueryStartMs: 0, Artist: "First", Title: "Track", Confidence: 0.9},
	})

	assert.Equal(t, "First", entries[0].Artist)
	assert.Equal(t, "Second", entries[1].Artist)
}

func TestFormatTimeHoursWhenLong(t *testing.T) {
	assert.Equal(t, "01:00:00", formatTime(3_600_000))
	assert.Equal(t, "00:30", formatTime(30_000))
}

func TestLabelFallsBackToFilename(t *testing.T) {
	e := models.CueEntry{Filename: "track.wav"}
	assert.Equal(t, "track.wav", label(e))
}

func TestLabelFallsBackToTitleOnly(t *testing.T) {
	e := models.CueEntry{Title: "Solo Title", Filename: "ignored.wav"}
	assert.Equal(t, "Solo Title", label(e))
}

func TestFormatPercentRounds(t *testing.T) {
	assert.Equal(t, "75%", formatPercent(0.749))
	assert.Equal(t, "100%", formatPercent(0.999))
}
