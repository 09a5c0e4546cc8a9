// Package fingerprint implements the constant-Q peak extractor and
// the anchor/target hash encoder.
package fingerprint

import (
	"math"
	"sort"

	"github.com/waveprint/mixid/internal/models"
)

// Config carries the tunable parameters for peak extraction and hashing.
// Constructed explicitly at call sites; no package-level state.
type Config struct {
	SampleRate       int
	Hop              int
	NBins            int
	BinsPerOctave    int
	MinFreqHz        float64
	PeakNeighborTime int
	PeakNeighborFreq int
	MaxPeaks         int
	ThresholdAboveDB float64

	// Fingerprint encoder target zone.
	TMin   int
	TMax   int
	FMin   int
	FMax   int
	FanOut int
}

// DefaultConfig returns the standard extraction and hashing parameters.
func DefaultConfig(sampleRate int) Config {
	return Config{
		SampleRate:       sampleRate,
		Hop:              512,
		NBins:            84,
		BinsPerOctave:    12,
		MinFreqHz:        32.70319566257483, // C1, librosa's conventional CQT floor
		PeakNeighborTime: 5,
		PeakNeighborFreq: 5,
		MaxPeaks:         1000,
		ThresholdAboveDB: 20,
		TMin:             2,
		TMax:             30,
		FMin:             -8,
		FMax:             8,
		FanOut:           3,
	}
}

// MsPerFrame is the authoritative frame-to-time conversion.
func (c Config) MsPerFrame() float64 {
	return float64(c.Hop) / float64(c.SampleRate) * 1000.0
}

// kernel is a precomputed analysis window for one CQT bin: a Hann-tapered
// complex exponential whose length is chosen for constant-Q resolution.
// Precomputing these once per (sr, n_bins, bins_per_octave) tuple (and
// caching them on the Extractor) avoids rebuilding them per track, the
// same idea as caching a mel filterbank on a feature extractor.
type kernel struct {
	real, imag []float64
	length     int
}

// Extractor computes a log-frequency magnitude spectrogram and extracts
// constellation peaks from it.
type Extractor struct {
	cfg     Config
	kernels []kernel
	freqs   []float64
}

// NewExtractor precomputes the CQT kernel bank for cfg.
func NewExtractor(cfg Config) *Extractor {
	e := &Extractor{cfg: cfg}
	e.buildKernels()
	return e
}

func (e *Extractor) buildKernels() {
	c := e.cfg
	q := 1.0 / (math.Pow(2, 1.0/float64(c.BinsPerOctave)) - 1.0)
	e.freqs = make([]float64, c.NBins)
	e.kernels = make([]kernel, c.NBins)

	for b := 0; b < c.NBins; b++ {
		f := c.MinFreqHz * math.Pow(2, float64(b)/float64(c.BinsPerOctave))
		e.freqs[b] = f

		length := int(math.Round(q * float64(c.SampleRate) / f))
		if length < 4 {
			length = 4
		}
		re := make([]float64, length)
		im := make([]float64, length)
		for n := 0; n < length; n++ {
			win := 0.5 - 0.5*math.Cos(2*math.Pi*float64(n)/float64(length-1)) // Hann
			phase := -2 * math.Pi * q * float64(n) / float64(length)
			re[n] = win * math.Cos(phase)
			im[n] = win * math.Sin(phase)
		}
		e.kernels[b] = kernel{real: re, imag: im, length: length}
	}
}

// Spectrogram computes the per-frame, per-bin magnitude in dB
// (max-referenced). This is a direct-DFT-per-bin constant-Q transform
// (Brown 1991 naive kernel), not the faster sparse-kernel CQT.
func (e *Extractor) Spectrogram(samples []float32) [][]float64 {
	c := e.cfg
	if len(samples) == 0 {
		return nil
	}
	nFrames := len(samples)/c.Hop + 1
	spec := make([][]float64, nFrames)

	for t := 0; t < nFrames; t++ {
		center := t * c.Hop
		row := make([]float64, c.NBins)
		for b, k := range e.kernels {
			half := k.length / 2
			start := center - half
			var sumRe, sumIm float64
			for n := 0; n < k.length; n++ {
				idx := start + n
				if idx < 0 || idx >= len(samples) {
					continue
				}
				s := float64(samples[idx])
				sumRe += s * k.real[n]
				sumIm += s * k.imag[n]
			}
			mag := math.Hypot(sumRe, sumIm) / float64(k.length)
			row[b] = mag
		}
		spec[t] = row
	}

	amplitudeToDBMaxRef(spec)
	return spec
}

// amplitudeToDBMaxRef converts a magnitude matrix to dB referenced to its
// own peak, matching librosa's amplitude_to_db(ref=max) convention.
func amplitudeToDBMaxRef(spec [][]float64) {
	maxAmp := 1e-10
	for _, row := range spec {
		for _, v := range row {
			if v > maxAmp {
				maxAmp = v
			}
		}
	}
	for _, row := range spec {
		for i, v := range row {
			if v < 1e-10 {
				v = 1e-10
			}
			row[i] = 20 * math.Log10(v/maxAmp)
		}
	}
}

// ExtractPeaks finds local maxima above a dynamic threshold and caps the
// result at cfg.MaxPeaks.
func (e *Extractor) ExtractPeaks(spec [][]float64) []models.Peak {
	if len(spec) == 0 {
		return nil
	}
	c := e.cfg
	threshold := medianOfMatrix(spec) + c.ThresholdAboveDB

	var peaks []models.Peak
	nFrames := len(spec)
	nBins := len(spec[0])

	for t := 0; t < nFrames; t++ {
		for b := 0; b < nBins; b++ {
			v := spec[t][b]
			if v <= threshold {
				continue
			}
			if !isLocalMax(spec, t, b, c.PeakNeighborTime, c.PeakNeighborFreq) {
				continue
			}
			peaks = append(peaks, models.Peak{
				TimeFrame: int32(t),
				FreqBin:   int16(b),
				Magnitude: float32(v),
			})
		}
	}

	if len(peaks) > c.MaxPeaks {
		sort.Slice(peaks, func(i, j int) bool { return peaks[i].Magnitude > peaks[j].Magnitude })
		peaks = peaks[:c.MaxPeaks]
	}

	sort.Slice(peaks, func(i, j int) bool {
		if peaks[i].TimeFrame != peaks[j].TimeFrame {
			return peaks[i].TimeFrame < peaks[j].TimeFrame
		}
		return peaks[i].Magnitude > peaks[j].Magnitude
	})
	return peaks
}

func isLocalMax(spec [][]float64, t, b, neighborTime, neighborFreq int) bool {
	v := spec[t][b]
	nFrames := len(spec)
	nBins := len(spec[0])
	for dt := -neighborTime; dt <= neighborTime; dt++ {
		tt := t + dt
		if tt < 0 || tt >= nFrames {
			continue
		}
		for db := -neighborFreq; db <= neighborFreq; db++ {
			bb := b + db
			if bb < 0 || bb >= nBins {
				continue
			}
			if dt == 0 && db == 0 {
				continue
			}
			if spec[tt][bb] > v {
				return false
			}
		}
	}
	return true
}

func medianOfMatrix(spec [][]float64) float64 {
	var all []float64
	for _, row := range spec {
		all = append(all, row...)
	}
	if len(all) == 0 {
		return 0
	}
	sort.Float64s(all)
	mid := len(all) / 2
	if len(all)%2 == 0 {
		return (all[mid-1] + all[mid]) / 2
	}
	return all[mid]
}
