package lipsync

import (
	"math"

	"github.com/charmbracelet/log"
)

// DefaultFrameRate is the authoritative animation sampling rate. The envelope
// window size and the text-driven fallback both derive their timing from it.
const DefaultFrameRate = 30.0

// closedMouth is the openness value frames are clamped toward at the track
// edges so the mouth starts and ends closed.
const closedMouth = 0.0

// edgeFrames is how many frames at each end of the track are clamped.
const edgeFrames = 2

// Config controls track generation.
type Config struct {
	// FrameRate in frames per second. Zero selects DefaultFrameRate.
	FrameRate float64

	// Gamma is the exponent of the concave shaping curve applied to the
	// normalized envelope. Values below 1 lift quiet audio so it does not
	// read as a closed mouth. Zero selects 0.5 (square root).
	Gamma float64

	// Smoothing is the exponential moving average coefficient in (0,1];
	// lower values smooth more. Zero selects 0.55.
	Smoothing float64
}

func (c Config) withDefaults() Config {
	if c.FrameRate <= 0 {
		c.FrameRate = DefaultFrameRate
	}
	if c.Gamma <= 0 {
		c.Gamma = 0.5
	}
	if c.Smoothing <= 0 || c.Smoothing > 1 {
		c.Smoothing = 0.55
	}
	return c
}

// Generator produces animation tracks at a fixed frame rate.
type Generator struct {
	cfg    Config
	logger *log.Logger
}

// NewGenerator creates a generator with the given configuration.
func NewGenerator(cfg Config, logger *log.Logger) *Generator {
	if logger == nil {
		logger = log.Default()
	}
	return &Generator{cfg: cfg.withDefaults(), logger: logger.WithPrefix("lipsync")}
}

// FrameRate returns the authoritative frame rate of generated tracks.
func (g *Generator) FrameRate() float64 {
	return g.cfg.FrameRate
}

// frameCount returns the number of frames covering the duration. The track
// always has at least one frame so a zero-duration utterance still renders a
// closed mouth.
func (g *Generator) frameCount(duration float64) int {
	n := int(math.Ceil(duration * g.cfg.FrameRate))
	if n < 1 {
		n = 1
	}
	return n
}

// FromEnvelope builds an audio-driven track. envelope holds one RMS value per
// animation frame interval; duration is the authoritative audio duration in
// seconds.
func (g *Generator) FromEnvelope(envelope []float64, duration float64) *Track {
	n := g.frameCount(duration)

	// Normalize against the loudest window so openness spans [0,1]
	// regardless of synthesis gain.
	var peak float64
	for _, v := range envelope {
		if v > peak {
			peak = v
		}
	}

	frames := make([]Frame, n)
	prev := 0.0
	for i := range frames {
		var raw float64
		if peak > 0 && i < len(envelope) {
			raw = envelope[i] / peak
		}

		// Concave shaping then EMA smoothing against the previous frame to
		// suppress flicker.
		shaped := math.Pow(raw, g.cfg.Gamma)
		open := g.cfg.Smoothing*shaped + (1-g.cfg.Smoothing)*prev
		prev = open

		frames[i] = g.frame(i, open)
	}

	g.clampEdges(frames)

	g.logger.Debug("generated audio-driven track",
		"frames", n, "duration", duration, "windows", len(envelope))

	return &Track{Frames: frames, Duration: duration, FrameRate: g.cfg.FrameRate}
}

// FromText builds the text-driven fallback track. The text is segmented into
// syllable-like units spread evenly across the duration; each unit produces
// one open-close mouth cycle sampled on the same frame grid as the
// audio-driven path. The result avoids a static mouth but makes no claim of
// phonetic accuracy.
func (g *Generator) FromText(text string, duration float64) *Track {
	n := g.frameCount(duration)
	syllables := CountSyllables(text)
	if syllables < 1 {
		syllables = 1
	}

	// One cycle per syllable across the whole track.
	framesPerSyllable := float64(n) / float64(syllables)
	if framesPerSyllable < 2 {
		// Faster than the grid can express; cap the oscillation at the
		// Nyquist rate of the frame grid.
		framesPerSyllable = 2
	}

	const peakOpen = 0.7 // bounded amplitude for synthetic motion

	frames := make([]Frame, n)
	for i := range frames {
		phase := math.Mod(float64(i), framesPerSyllable) / framesPerSyllable
		open := peakOpen * math.Sin(phase*math.Pi)
		frames[i] = g.frame(i, open)
	}

	g.clampEdges(frames)

	g.logger.Debug("generated text-driven fallback track",
		"frames", n, "duration", duration, "syllables", syllables)

	return &Track{Frames: frames, Duration: duration, FrameRate: g.cfg.FrameRate}
}

// frame builds a single frame at index i with the given openness.
func (g *Generator) frame(i int, open float64) Frame {
	open = clamp01(open)
	return Frame{
		Timestamp: float64(i) / g.cfg.FrameRate,
		Params: map[string]float64{
			ParamMouthOpen: open,
			// A wider mouth at higher openness reads more natural on 2D rigs.
			ParamMouthForm: clamp01(0.3 + 0.4*open),
		},
	}
}

// clampEdges forces the first and last frames toward the closed mouth.
func (g *Generator) clampEdges(frames []Frame) {
	n := len(frames)
	for i := 0; i < edgeFrames && i < n; i++ {
		frames[i].Params[ParamMouthOpen] = closedMouth
		frames[n-1-i].Params[ParamMouthOpen] = closedMouth
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
