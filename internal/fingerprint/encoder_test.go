package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/waveprint/mixid/internal/models"
)

func testConfig() Config {
	return DefaultConfig(22050)
}

func TestEncodeIsDeterministic(t *testing.T) {
	peaks := []models.Peak{
		{TimeFrame: 0, FreqBin: 40, Magnitude: -10},
		{TimeFrame: 5, FreqBin: 42, Magnitude: -20},
		{TimeFrame: 10, FreqBin: 38, Magnitude: -15},
	}

	a := Encode(testConfig(), peaks)
	b := Encode(testConfig(), peaks)
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)
}

func TestEncodeRespectsTargetZone(t *testing.T) {
	cfg := testConfig()
	anchor := models.Peak{TimeFrame: 0, FreqBin: 40, Magnitude: -10}

	cases := []struct {
		name  string
		other models.Peak
		want  int
	}{
		{"dt below t_min", models.Peak{TimeFrame: 1, FreqBin: 41, Magnitude: -10}, 0},
		{"dt above t_max", models.Peak{TimeFrame: 31, FreqBin: 41, Magnitude: -10}, 0},
		{"df above f_max", models.Peak{TimeFrame: 10, FreqBin: 49, Magnitude: -10}, 0},
		{"df below f_min", models.Peak{TimeFrame: 10, FreqBin: 31, Magnitude: -10}, 0},
		{"valid pair", models.Peak{TimeFrame: 12, FreqBin: 44, Magnitude: -12}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fps := Encode(cfg, []models.Peak{anchor, tc.other})
			assert.Len(t, fps, tc.want)
		})
	}
}

func TestEncodeHonorsFanOut(t *testing.T) {
	// All candidate targets share one time frame, so dt between them is 0
	// (below t_min) and none pair with each other; only the anchor can
	// pair with them, isolating fan-out to exactly min(fanOut, 5) hashes.
	cfg := testConfig()
	cfg.FanOut = 2
	peaks := []models.Peak{{TimeFrame: 0, FreqBin: 40, Magnitude: -10}}
	for i := 0; i < 5; i++ {
		peaks = append(peaks, models.Peak{TimeFrame: 10, FreqBin: int16(41 + i), Magnitude: -10})
	}
	fps := Encode(cfg, peaks)
	assert.Len(t, fps, 2)
}

func TestHashBitLayoutChangesWithEachField(t *testing.T) {
	anchor := models.Peak{TimeFrame: 0, FreqBin: 40, Magnitude: -10}
	target := models.Peak{TimeFrame: 5, FreqBin: 44, Magnitude: -20}
	base := computeHash(anchor, target, 5, 4)

	withDiffAnchorFreq := computeHash(models.Peak{TimeFrame: 0, FreqBin: 41, Magnitude: -10}, target, 5, 4)
	withDiffTargetFreq := computeHash(anchor, models.Peak{TimeFrame: 5, FreqBin: 45, Magnitude: -20}, 5, 4)
	withDiffFreqDiff := computeHash(anchor, target, 5, 5)
	withDiffTimeDiff := computeHash(anchor, target, 6, 4)
	withDiffMagRatio := computeHash(anchor, models.Peak{TimeFrame: 5, FreqBin: 44, Magnitude: -40}, 5, 4)

	assert.NotEqual(t, base, withDiffAnchorFreq)
	assert.NotEqual(t, base, withDiffTargetFreq)
	assert.NotEqual(t, base, withDiffFreqDiff)
	assert.NotEqual(t, base, withDiffTimeDiff)
	assert.NotEqual(t, base, withDiffMagRatio)
}

func TestHashTimeDiffCapsAt63(t *testing.T) {
	anchor := models.Peak{TimeFrame: 0, FreqBin: 40, Magnitude: -10}
	target := models.Peak{TimeFrame: 100, FreqBin: 44, Magnitude: -10}
	atCap := computeHash(anchor, target, 63, 4)
	beyondCap := computeHash(anchor, target, 100, 4)
	assert.Equal(t, atCap, beyondCap)
}

func TestMsPerFrameFormula(t *testing.T) {
	cfg := Config{SampleRate: 22050, Hop: 512}
	assert.InDelta(t, 512.0/22050.0*1000.0, cfg.MsPerFrame(), 1e-9)
}
