// Package audio decodes arbitrary audio files into mono float32 PCM at a
// target sample rate, the sole input the peak extractor and feature
// summarizer operate on.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/waveprint/mixid/internal/errors"
)

// Loader decodes files to mono PCM. It holds no per-call state; callers
// decide whether to cache the result.
type Loader struct {
	// FFmpegPath overrides the ffmpeg binary lookup, for tests.
	FFmpegPath string
}

// NewLoader returns a Loader using "ffmpeg" from PATH.
func NewLoader() *Loader {
	return &Loader{FFmpegPath: "ffmpeg"}
}

// Load decodes path to mono float32 samples at sr, optionally windowed by
// offsetS/durationS. A nil offset/duration loads the whole file. Returns
// an empty (not nil) buffer if the window lies beyond end-of-stream.
func (l *Loader) Load(ctx context.Context, path string, sr int, offsetS, durationS *float64) ([]float32, error) {
	if strings.EqualFold(filepathExt(path), ".wav") {
		samples, err := l.loadWAV(path, sr)
		if err == nil {
			return windowSamples(samples, sr, offsetS, durationS), nil
		}
		// Fall through to ffmpeg for WAV variants go-audio/wav can't parse
		// (e.g. float PCM, extended fmt chunks).
	}
	return l.loadViaFFmpeg(ctx, path, sr, offsetS, durationS)
}

func filepathExt(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx == -1 {
		return ""
	}
	return path[idx:]
}

// loadWAV decodes a standard PCM WAV file directly, avoiding an ffmpeg
// round-trip for the common case of library tracks already stored as WAV.
func (l *Loader) loadWAV(path string, sr int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.IO(path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, errors.Decode(path, err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return []float32{}, nil
	}

	mono := downmixToMono(buf)
	if int(dec.SampleRate) != sr {
		mono = resampleLinear(mono, int(dec.SampleRate), sr)
	}
	return mono, nil
}

// downmixToMono averages channels of a decoded integer PCM buffer into a
// single float32 stream scaled to [-1, 1].
func downmixToMono(buf *audio.IntBuffer) []float32 {
	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	maxVal := float64(int(1) << (uint(buf.SourceBitDepth) - 1))
	if buf.SourceBitDepth == 0 {
		maxVal = float64(1 << 15)
	}

	frames := len(buf.Data) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		out[i] = float32((sum / float64(channels)) / maxVal)
	}
	return out
}

// loadViaFFmpeg transcodes any ffmpeg-readable format to raw f32le mono
// PCM at sr by capturing ffmpeg's stdout.
func (l *Loader) loadViaFFmpeg(ctx context.Context, path string, sr int, offsetS, durationS *float64) ([]float32, error) {
	bin := l.FFmpegPath
	if bin == "" {
		bin = "ffmpeg"
	}

	args := []string{"-hide_banner", "-loglevel", "error"}
	if offsetS != nil {
		args = append(args, "-ss", strconv.FormatFloat(*offsetS, 'f', 3, 64))
	}
	args = append(args, "-i", path)
	if durationS != nil {
		args = append(args, "-t", strconv.FormatFloat(*durationS, 'f', 3, 64))
	}
	args = append(args,
		"-ac", "1",
		"-ar", strconv.Itoa(sr),
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-",
	)

	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, errors.Decode(path, fmt.Errorf("ffmpeg: %w: %s", err, stderr.String()))
	}

	raw := stdout.Bytes()
	if len(raw) == 0 {
		return []float32{}, nil
	}
	return bytesToFloat32(raw), nil
}

// windowSamples slices samples to the [offsetS, offsetS+durationS) window.
// A window beyond end-of-stream yields an empty, non-nil slice.
func windowSamples(samples []float32, sr int, offsetS, durationS *float64) []float32 {
	start := 0
	if offsetS != nil {
		start = int(*offsetS * float64(sr))
	}
	if start >= len(samples) {
		return []float32{}
	}
	if start < 0 {
		start = 0
	}

	end := len(samples)
	if durationS != nil {
		windowed := start + int(*durationS*float64(sr))
		if windowed < end {
			end = windowed
		}
	}
	return samples[start:end]
}

// resampleLinear performs simple linear-interpolation resampling: enough
// for constellation fingerprinting, which tolerates small time-axis
// error, but not suited to high-fidelity playback.
func resampleLinear(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || len(samples) == 0 {
		return samples
	}
	ratio := float64(srcRate) / float64(dstRate)
	outLen := int(float64(len(samples)) / ratio)
	out := make([]float32, outLen)
	for i := range out {
		srcPos := float64(i) * ratio
		idx := int(srcPos)
		frac := srcPos - float64(idx)
		if idx+1 < len(samples) {
			out[i] = samples[idx]*float32(1-frac) + samples[idx+1]*float32(frac)
		} else {
			out[i] = samples[idx]
		}
	}
	return out
}

// bytesToFloat32 reinterprets a little-endian f32le byte stream as samples.
func bytesToFloat32(raw []byte) []float32 {
	n := len(raw) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := uint32(raw[i*4]) | uint32(raw[i*4+1])<<8 | uint32(raw[i*4+2])<<16 | uint32(raw[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}

// CheckFFmpeg verifies the ffmpeg binary is reachable.
func CheckFFmpeg(bin string) error {
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.Command(bin, "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}
	return nil
}
