package matcher

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func unitCol(vals ...float64) []float64 {
	var sum float64
	for _, v := range vals {
		sum += v * v
	}
	if sum == 0 {
		return vals
	}
	norm := make([]float64, len(vals))
	for i, v := range vals {
		norm[i] = v / math.Sqrt(sum)
	}
	return norm
}

// TestBestSustainedRunSelfMatch: sliding a feature matrix against itself
// must find a run spanning every column with similarity ~1.0.
func TestBestSustainedRunSelfMatch(t *testing.T) {
	frames := [][]float64{
		unitCol(1, 0, 0),
		unitCol(0, 1, 0),
		unitCol(0, 0, 1),
		unitCol(1, 1, 0),
		unitCol(0, 1, 1),
	}
	run, avg := BestSustainedRun(frames, frames, 1, len(frames), 0.99)
	assert.Equal(t, len(frames), run)
	assert.InDelta(t, 1.0, avg, 1e-6)
}

func TestBestSustainedRunBreaksOnDissimilarFrame(t *testing.T) {
	q := [][]float64{
		unitCol(1, 0, 0),
		unitCol(1, 0, 0),
		unitCol(1, 0, 0),
	}
	ref := [][]float64{
		unitCol(1, 0, 0),
		unitCol(0, 1, 0), // dissimilar frame breaks the run
		unitCol(1, 0, 0),
	}
	run, _ := BestSustainedRun(q, ref, 1, 1, 0.9)
	assert.Equal(t, 1, run)
}

func TestBestSustainedRunShorterThanMinOverlapSkipped(t *testing.T) {
	ref := [][]float64{unitCol(1, 0)}
	q := [][]float64{unitCol(1, 0), unitCol(1, 0)}
	run, avg := BestSustainedRun(q, ref, 1, 30, 0.8)
	assert.Zero(t, run)
	assert.Zero(t, avg)
}

func TestBestSustainedRunEmptyInputs(t *testing.T) {
	run, avg := BestSustainedRun(nil, nil, 1, 1, 0.8)
	assert.Zero(t, run)
	assert.Zero(t, avg)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-0.5))
	assert.Equal(t, 1.0, clamp01(1.5))
	assert.Equal(t, 0.5, clamp01(0.5))
}
