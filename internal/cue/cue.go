// Package cue projects identified matches into time-ordered cue entries
// and renders the human-readable cue-sheet text.
package cue

import (
	"fmt"
	"sort"
	"strings"

	"github.com/waveprint/mixid/internal/models"
)

const bannerWidth = 60

// FromMatches projects a list of Matches into cue entries sorted by
// query_start_ms.
func FromMatches(matches []models.Match) []models.CueEntry {
	entries := make([]models.CueEntry, len(matches))
	for i, m := range matches {
		entries[i] = models.CueEntry{
			StartTimeMs: m.QueryStartMs,
			TrackID:     m.TrackID,
			Title:       m.Title,
			Artist:      m.Artist,
			Filename:    m.Filename,
			Confidence:  m.Confidence,
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].StartTimeMs < entries[j].StartTimeMs })
	return entries
}

// Format renders entries as the banner/numbered-list cue-sheet text.
func Format(entries []models.CueEntry) string {
	banner := strings.Repeat("=", bannerWidth)

	lines := make([]string, 0, len(entries)+6)
	lines = append(lines, banner, "CUE SHEET", banner, "")
	for i, e := range entries {
		lines = append(lines, formatLine(i+1, e))
	}
	lines = append(lines, "", banner)
	return strings.Join(lines, "\n")
}

func formatLine(n int, e models.CueEntry) string {
	return fmt.Sprintf("%2d. [%s] %s (%s)", n, formatTime(e.StartTimeMs), label(e), formatPercent(e.Confidence))
}

// label falls back to title alone, then filename, when artist or title
// metadata is missing.
func label(e models.CueEntry) string {
	if e.Artist != "" && e.Title != "" {
		return fmt.Sprintf("%s - %s", e.Artist, e.Title)
	}
	if e.Title != "" {
		return e.Title
	}
	return e.Filename
}

// formatTime renders ms as HH:MM:SS when an hour has elapsed, else MM:SS.
func formatTime(ms int64) string {
	totalSeconds := ms / 1000
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// formatPercent mirrors Python's "{:.0%}" rounding (round-half-to-even is
// not load-bearing here; nearest-integer percent is what the format shows).
func formatPercent(confidence float64) string {
	return fmt.Sprintf("%d%%", int(confidence*100+0.5))
}
