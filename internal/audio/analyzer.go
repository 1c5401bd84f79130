// Package audio decodes synthesized audio and derives true timing from it.
// Provider-reported durations are not trusted anywhere in the pipeline; the
// only authoritative duration is sample_count / sample_rate from an actual
// decode, with a text-length heuristic as the designed degradation path.
package audio

import (
	"errors"
	"fmt"
	"math"

	"github.com/charmbracelet/log"
)

// Decode errors. Callers are expected to treat any decode failure as a
// degradation trigger, not a request failure.
var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrCorruptAudio      = errors.New("corrupt audio data")
	ErrEmptyAudio        = errors.New("empty audio data")
)

// Analysis is the result of decoding one clip.
type Analysis struct {
	// Duration in seconds, computed as sample count over sample rate.
	Duration float64
	// Envelope holds one RMS energy value per animation frame interval.
	Envelope []float64
	// SampleRate of the decoded PCM stream.
	SampleRate int
}

// pcmClip is decoded mono-mixed PCM used internally for envelope extraction.
type pcmClip struct {
	samples    []float64 // mono samples in [-1,1]
	sampleRate int
}

// Analyzer decodes provider audio and computes duration plus an amplitude
// envelope windowed to the animation frame interval.
type Analyzer struct {
	frameRate float64
	logger    *log.Logger
}

// NewAnalyzer creates an analyzer whose envelope windows span 1/frameRate
// seconds each, matching the lip-sync frame grid.
func NewAnalyzer(frameRate float64, logger *log.Logger) *Analyzer {
	if frameRate <= 0 {
		frameRate = 30
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Analyzer{frameRate: frameRate, logger: logger.WithPrefix("audio")}
}

// Analyze decodes data in the declared format and returns the measured
// duration and envelope. format is the audio format tag ("wav", "mp3",
// "pcm_s16le"); sampleRate and channels describe headerless PCM and are
// ignored for self-describing formats.
func (a *Analyzer) Analyze(data []byte, format string, sampleRate, channels int) (*Analysis, error) {
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}

	var (
		clip *pcmClip
		err  error
	)
	switch format {
	case "wav":
		clip, err = decodeWAV(data)
	case "mp3":
		clip, err = decodeMP3(data)
	case "pcm_s16le":
		clip, err = decodePCM16(data, sampleRate, channels)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	duration := float64(len(clip.samples)) / float64(clip.sampleRate)
	envelope := a.envelope(clip)

	a.logger.Debug("measured audio",
		"format", format, "duration", duration,
		"sample_rate", clip.sampleRate, "windows", len(envelope))

	return &Analysis{
		Duration:   duration,
		Envelope:   envelope,
		SampleRate: clip.sampleRate,
	}, nil
}

// envelope computes RMS energy over fixed windows sized to one animation
// frame interval.
func (a *Analyzer) envelope(clip *pcmClip) []float64 {
	windowSize := int(float64(clip.sampleRate) / a.frameRate)
	if windowSize < 1 {
		windowSize = 1
	}

	n := (len(clip.samples) + windowSize - 1) / windowSize
	env := make([]float64, 0, n)

	for start := 0; start < len(clip.samples); start += windowSize {
		end := start + windowSize
		if end > len(clip.samples) {
			end = len(clip.samples)
		}
		var sum float64
		for _, s := range clip.samples[start:end] {
			sum += s * s
		}
		env = append(env, math.Sqrt(sum/float64(end-start)))
	}

	return env
}
