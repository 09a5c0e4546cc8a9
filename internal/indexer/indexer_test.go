package indexer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveprint/mixid/internal/audio"
	"github.com/waveprint/mixid/internal/features"
	"github.com/waveprint/mixid/internal/fingerprint"
	"github.com/waveprint/mixid/internal/storage"
)

func TestIndexNoUnindexedTracksIsNoop(t *testing.T) {
	store, err := storage.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	fpCfg := fingerprint.DefaultConfig(22050)
	ix := New(store, audio.NewLoader(), fpCfg, features.NewSummarizer(fpCfg.SampleRate, fpCfg.Hop))

	var progressCalls int
	result, err := ix.Index(context.Background(), Options{}, func(Progress) { progressCalls++ })
	require.NoError(t, err)
	assert.Zero(t, result.Indexed)
	assert.Empty(t, result.Errors)
	assert.Zero(t, progressCalls)
}

func TestEstimateETAZeroDoneIsZero(t *testing.T) {
	assert.Zero(t, estimateETA(time.Second, 0, 10))
}

func TestEstimateETAExtrapolatesRemaining(t *testing.T) {
	eta := estimateETA(10*time.Second, 2, 10)
	assert.Equal(t, 40*time.Second, eta)
}

func TestEstimateETANoRemainingIsZero(t *testing.T) {
	eta := estimateETA(10*time.Second, 10, 10)
	assert.Zero(t, eta)
}
