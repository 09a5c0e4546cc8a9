package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func f(v float64) *float64 { return &v }

func TestWindowSamplesFullFileWhenNoBounds(t *testing.T) {
	samples := make([]float32, 1000)
	got := windowSamples(samples, 100, nil, nil)
	assert.Len(t, got, 1000)
}

func TestWindowSamplesOffsetAndDuration(t *testing.T) {
	samples := make([]float32, 1000)
	for i := range samples {
		samples[i] = float32(i)
	}
	got := windowSamples(samples, 100, f(1.0), f(2.0))
	// offset=1s@100Hz=100 samples in, duration=2s=200 samples.
	assert.Len(t, got, 200)
	assert.Equal(t, float32(100), got[0])
}

func TestWindowSamplesBeyondEndOfStreamReturnsEmpty(t *testing.T) {
	samples := make([]float32, 100)
	got := windowSamples(samples, 100, f(5.0), nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestResampleLinearSameRateIsNoop(t *testing.T) {
	samples := []float32{1, 2, 3}
	got := resampleLinear(samples, 22050, 22050)
	assert.Equal(t, samples, got)
}

func TestResampleLinearDownsamplesByRatio(t *testing.T) {
	samples := make([]float32, 100)
	got := resampleLinear(samples, 100, 50)
	assert.Len(t, got, 50)
}

func TestResampleLinearEmptyInput(t *testing.T) {
	got := resampleLinear(nil, 44100, 22050)
	assert.Empty(t, got)
}

func TestBytesToFloat32RoundTrip(t *testing.T) {
	want := []float32{1.5, -2.25, 0.0}
	raw := make([]byte, len(want)*4)
	for i, v := range want {
		bits := math.Float32bits(v)
		raw[i*4] = byte(bits)
		raw[i*4+1] = byte(bits >> 8)
		raw[i*4+2] = byte(bits >> 16)
		raw[i*4+3] = byte(bits >> 24)
	}
	got := bytesToFloat32(raw)
	assert.Equal(t, want, got)
}

func TestFilepathExt(t *testing.T) {
	assert.Equal(t, ".wav", filepathExt("/music/track.wav"))
	assert.Equal(t, "", filepathExt("no-extension"))
}

func TestCheckFFmpegMissingBinary(t *testing.T) {
	err := CheckFFmpeg("definitely-not-a-real-binary-xyz")
	assert.Error(t, err)
}
