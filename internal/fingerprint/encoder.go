package fingerprint

import (
	"github.com/waveprint/mixid/internal/models"
)

// Encode turns a sorted peak list into anchor/target fingerprints. The bit
// layout is load-bearing and must not change:
// MSB→LSB anchor_freq(7) target_freq(7) freq_diff(6) time_diff(6) mag_ratio(6).
func Encode(cfg Config, peaks []models.Peak) []models.Fingerprint {
	msPerFrame := cfg.MsPerFrame()
	var out []models.Fingerprint

	for i, anchor := range peaks {
		found := 0
		for j := i + 1; j < len(peaks) && found < cfg.FanOut; j++ {
			target := peaks[j]
			dt := int(target.TimeFrame - anchor.TimeFrame)
			if dt < cfg.TMin {
				continue
			}
			if dt > cfg.TMax {
				break // peaks are time-sorted; no later target can satisfy t_max either
			}
			df := int(target.FreqBin) - int(anchor.FreqBin)
			if df < cfg.FMin || df > cfg.FMax {
				continue
			}

			hash := computeHash(anchor, target, dt, df)
			out = append(out, models.Fingerprint{
				Hash:         int64(hash),
				TimeOffsetMs: int32(roundFloat(float64(anchor.TimeFrame) * msPerFrame)),
				FreqBin:      anchor.FreqBin,
			})
			found++
		}
	}
	return out
}

// computeHash packs the anchor/target pair into the 32-bit layout.
// Deterministic given identical peaks.
func computeHash(anchor, target models.Peak, dt, df int) uint32 {
	anchorFreq := uint32(anchor.FreqBin) & 0x7F
	targetFreq := uint32(target.FreqBin) & 0x7F
	freqDiff := uint32(df+32) & 0x3F

	timeDiff := dt
	if timeDiff > 63 {
		timeDiff = 63
	}
	timeDiffU := uint32(timeDiff) & 0x3F

	magRatio := (float64(anchor.Magnitude-target.Magnitude) + 30) / 60 * 63
	magQuant := clampInt(int(roundFloat(magRatio)), 0, 63)

	return (anchorFreq << 25) | (targetFreq << 18) | (freqDiff << 12) | (timeDiffU << 6) | uint32(magQuant)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func roundFloat(v float64) float64 {
	if v < 0 {
		return float64(int64(v - 0.5))
	}
	return float64(int64(v + 0.5))
}
