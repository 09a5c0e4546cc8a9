// Package features computes per-track compact MFCC and chroma summaries
// and the frame-level feature matrices Stage-2 slides over.
package features

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	fftSize        = 2048
	numMFCC        = 20
	numMelFilters  = 40
	numChroma      = 12
	referenceA4    = 440.0
)

// Summarizer computes fixed-shape per-track feature vectors. Its FFT plan
// and mel filterbank are built once per sample rate and reused across
// tracks, the same caching idiom as a precomputed CQT kernel bank.
type Summarizer struct {
	sampleRate int
	hop        int
	fft        *fourier.FFT
	window     []float64
	melFilters [][]float64
}

// NewSummarizer builds a Summarizer for sampleRate that advances hop
// samples per analysis frame; the CLI and Stage-2 use 2048. No default is
// applied, so hop must be positive.
func NewSummarizer(sampleRate, hop int) *Summarizer {
	s := &Summarizer{
		sampleRate: sampleRate,
		hop:        hop,
		fft:        fourier.NewFFT(fftSize),
		window:     hannWindow(fftSize),
	}
	s.melFilters = createMelFilterbank(numMelFilters, fftSize, sampleRate)
	return s
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// MFCCSummary returns [mean_1..mean_20, std_1..std_20], zero vector for
// zero-length audio.
func (s *Summarizer) MFCCSummary(y []float32) []float64 {
	frames := s.mfccFrames(y)
	return meanStd(frames, numMFCC)
}

// ChromaSummary returns [mean_1..mean_12, std_1..std_12].
func (s *Summarizer) ChromaSummary(y []float32) []float64 {
	frames := s.chromaFrames(y)
	return meanStd(frames, numChroma)
}

func meanStd(frames [][]float64, dim int) []float64 {
	out := make([]float64, dim*2)
	if len(frames) == 0 {
		return out
	}
	for d := 0; d < dim; d++ {
		var sum float64
		for _, f := range frames {
			sum += f[d]
		}
		mean := sum / float64(len(frames))
		out[d] = mean

		var varSum float64
		for _, f := range frames {
			diff := f[d] - mean
			varSum += diff * diff
		}
		out[dim+d] = math.Sqrt(varSum / float64(len(frames)))
	}
	return out
}

// mfccFrames computes one 20-dim MFCC vector per hop-sized analysis frame.
func (s *Summarizer) mfccFrames(y []float32) [][]float64 {
	if len(y) == 0 {
		return nil
	}
	var frames [][]float64
	for start := 0; start+fftSize <= len(y) || start == 0; start += s.hop {
		spectrum := s.powerSpectrum(y, start)
		if spectrum == nil {
			break
		}
		frames = append(frames, s.computeMFCC(spectrum))
		if start+s.hop >= len(y) {
			break
		}
	}
	return frames
}

func (s *Summarizer) chromaFrames(y []float32) [][]float64 {
	if len(y) == 0 {
		return nil
	}
	var frames [][]float64
	for start := 0; start+fftSize <= len(y) || start == 0; start += s.hop {
		spectrum := s.powerSpectrum(y, start)
		if spectrum == nil {
			break
		}
		frames = append(frames, s.computeChroma(spectrum))
		if start+s.hop >= len(y) {
			break
		}
	}
	return frames
}

// powerSpectrum windows and FFTs one fftSize-sample frame starting at start.
func (s *Summarizer) powerSpectrum(y []float32, start int) []float64 {
	if len(y) == 0 {
		return nil
	}
	buf := make([]float64, fftSize)
	for i := 0; i < fftSize; i++ {
		idx := start + i
		if idx < len(y) {
			buf[i] = float64(y[idx]) * s.window[i]
		}
	}
	coeffs := s.fft.Coefficients(nil, buf)
	spectrum := make([]float64, fftSize/2+1)
	for i := range spectrum {
		c := coeffs[i]
		spectrum[i] = real(c)*real(c) + imag(c)*imag(c)
	}
	return spectrum
}

// computeMFCC applies the mel filterbank then a DCT-II.
func (s *Summarizer) computeMFCC(spectrum []float64) []float64 {
	melEnergies := make([]float64, numMelFilters)
	for i, filt := range s.melFilters {
		var e float64
		for k, w := range filt {
			if w == 0 || k >= len(spectrum) {
				continue
			}
			e += spectrum[k] * w
		}
		if e < 1e-10 {
			e = 1e-10
		}
		melEnergies[i] = math.Log(e)
	}

	mfcc := make([]float64, numMFCC)
	for i := 0; i < numMFCC; i++ {
		var sum float64
		for j := 0; j < numMelFilters; j++ {
			sum += melEnergies[j] * math.Cos(math.Pi*float64(i)*(float64(j)+0.5)/float64(numMelFilters))
		}
		mfcc[i] = sum
	}
	return mfcc
}

// createMelFilterbank builds numFilters triangular filters spaced evenly
// in mel scale across the FFT bins.
func createMelFilterbank(numFilters, fftSize, sampleRate int) [][]float64 {
	nyquist := float64(sampleRate) / 2
	lowMel := hzToMel(0)
	highMel := hzToMel(nyquist)

	melPoints := make([]float64, numFilters+2)
	for i := range melPoints {
		melPoints[i] = lowMel + (highMel-lowMel)*float64(i)/float64(numFilters+1)
	}

	binPoints := make([]int, numFilters+2)
	for i, m := range melPoints {
		hz := melToHz(m)
		binPoints[i] = int(math.Floor((float64(fftSize) + 1) * hz / float64(sampleRate)))
	}

	nBins := fftSize/2 + 1
	filters := make([][]float64, numFilters)
	for i := 0; i < numFilters; i++ {
		filt := make([]float64, nBins)
		left, center, right := binPoints[i], binPoints[i+1], binPoints[i+2]
		for b := left; b < center && b < nBins; b++ {
			if center > left {
				filt[b] = float64(b-left) / float64(center-left)
			}
		}
		for b := center; b < right && b < nBins; b++ {
			if right > center {
				filt[b] = float64(right-b) / float64(right-center)
			}
		}
		filters[i] = filt
	}
	return filters
}

func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// computeChroma folds spectral energy into 12 pitch classes relative to
// A4 = 440 Hz.
func (s *Summarizer) computeChroma(spectrum []float64) []float64 {
	chroma := make([]float64, numChroma)
	binHz := float64(s.sampleRate) / float64(fftSize)

	for k := 1; k < len(spectrum); k++ {
		freq := float64(k) * binHz
		if freq < 20 || freq > 5000 {
			continue
		}
		pitchClass := pitchClassOf(freq)
		chroma[pitchClass] += spectrum[k]
	}

	total := 0.0
	for _, v := range chroma {
		total += v
	}
	if total > 0 {
		for i := range chroma {
			chroma[i] /= total
		}
	}
	return chroma
}

func pitchClassOf(freqHz float64) int {
	semitonesFromA4 := 12 * math.Log2(freqHz/referenceA4)
	pc := int(math.Round(semitonesFromA4)) % 12
	if pc < 0 {
		pc += 12
	}
	// A4 is pitch class 9 (A) on a C-rooted 0..11 scale.
	pc = (pc + 9) % 12
	return pc
}

// CombinedFrameFeatures returns one column per analysis frame: 12 chroma
// dims followed by 20 MFCC dims, each column L2-unit-normalized. Used by
// Stage-2's sustained-run scorer.
func (s *Summarizer) CombinedFrameFeatures(y []float32) [][]float64 {
	if len(y) == 0 {
		return nil
	}
	var cols [][]float64
	for start := 0; start+fftSize <= len(y) || start == 0; start += s.hop {
		spectrum := s.powerSpectrum(y, start)
		if spectrum == nil {
			break
		}
		chroma := s.computeChroma(spectrum)
		mfcc := s.computeMFCC(spectrum)
		col := make([]float64, numChroma+numMFCC)
		copy(col, chroma)
		copy(col[numChroma:], mfcc)
		if norm := Normalize(col); norm != nil {
			cols = append(cols, norm)
		} else {
			cols = append(cols, col)
		}
		if start+s.hop >= len(y) {
			break
		}
	}
	return cols
}

// ChromaFrameFeatures returns one L2-normalized 12-dim chroma column per
// analysis frame.
func (s *Summarizer) ChromaFrameFeatures(y []float32) [][]float64 {
	if len(y) == 0 {
		return nil
	}
	var cols [][]float64
	for start := 0; start+fftSize <= len(y) || start == 0; start += s.hop {
		spectrum := s.powerSpectrum(y, start)
		if spectrum == nil {
			break
		}
		chroma := s.computeChroma(spectrum)
		if norm := Normalize(chroma); norm != nil {
			cols = append(cols, norm)
		} else {
			cols = append(cols, chroma)
		}
		if start+s.hop >= len(y) {
			break
		}
	}
	return cols
}

// CosineSimilarity computes cosine similarity between two equal-length
// vectors, used for Stage-2 screening.
func CosineSimilarity(a, b []float64) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// L2Norm returns the Euclidean norm of v.
func L2Norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Normalize returns v scaled to unit L2 norm, or nil if v has zero norm.
func Normalize(v []float64) []float64 {
	n := L2Norm(v)
	if n == 0 {
		return nil
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / n
	}
	return out
}
