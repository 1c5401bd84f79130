// Package speech converts a chat utterance into synthesized audio, a
// frame-accurate mouth animation track, and an avatar expression selection.
package speech

import (
	"strings"
	"time"

	"github.com/saju-labs/voicemotion/internal/lipsync"
)

// AudioFormat identifies the container/encoding of synthesized audio bytes.
type AudioFormat string

const (
	// FormatWAV is RIFF/WAVE with 16-bit PCM samples.
	FormatWAV AudioFormat = "wav"
	// FormatMP3 is MPEG-1/2 Layer III.
	FormatMP3 AudioFormat = "mp3"
	// FormatPCM16 is headerless little-endian signed 16-bit PCM.
	FormatPCM16 AudioFormat = "pcm_s16le"
)

// DurationSource records how the authoritative duration was obtained.
type DurationSource string

const (
	// DurationMeasured means the duration came from decoding the audio.
	DurationMeasured DurationSource = "measured"
	// DurationEstimated means the audio could not be decoded and the
	// duration was derived from text length. Consumers should relax
	// synchronization tolerances for estimated results.
	DurationEstimated DurationSource = "estimated"
)

// SynthesisRequest describes one utterance to synthesize. A request is
// transient; it exists for a single Synthesize call.
type SynthesisRequest struct {
	Text     string // required, non-empty
	Language string // BCP-47 style tag, e.g. "ko-KR"
	Voice    string // optional pinned voice; empty selects the provider default

	// Prosody multipliers, 1.0 = neutral.
	Speed  float64
	Pitch  float64
	Volume float64

	// EmotionHint is an upstream semantic signal passed to the emotion
	// bridge, e.g. "joy" or "mystical". May be empty.
	EmotionHint string

	// Feature flags.
	EnableLipSync     bool
	EnableExpressions bool
	EnableMotions     bool

	// Telemetry/cache correlation only. Never part of the fingerprint.
	SessionID string
	UserID    string
}

// NormalizedText returns the request text in the canonical form used for
// fingerprinting: trimmed with interior whitespace runs collapsed.
func (r *SynthesisRequest) NormalizedText() string {
	return strings.Join(strings.Fields(r.Text), " ")
}

// withDefaults fills unset multipliers so that zero-valued requests behave
// like neutral ones.
func (r SynthesisRequest) withDefaults() SynthesisRequest {
	if r.Speed == 0 {
		r.Speed = 1.0
	}
	if r.Pitch == 0 {
		r.Pitch = 1.0
	}
	if r.Volume == 0 {
		r.Volume = 1.0
	}
	return r
}

// SynthesisResult is the unified output of the pipeline. A result is created
// once per cache miss, then shared immutably by any number of cache hits.
type SynthesisResult struct {
	Audio  []byte
	Format AudioFormat

	// Duration is authoritative: when DurationSource is DurationMeasured it
	// was computed from decoded samples, not from provider metadata.
	Duration       float64
	DurationSource DurationSource

	Provider string
	Voice    string
	Language string

	// LipSync is present when the request enabled lip-sync.
	LipSync *lipsync.Track

	// Expression and Motion are avatar pose names from the emotion bridge.
	Expression string
	Motion     string
	// Intensity of the mapped emotion in [0,1].
	Intensity float64

	Latency  time.Duration
	CacheHit bool
}

// Clone returns a shallow copy with CacheHit set, sharing the immutable audio
// and track data. Used when serving the same result to multiple callers.
func (r *SynthesisResult) Clone(cacheHit bool) *SynthesisResult {
	out := *r
	out.CacheHit = cacheHit
	return &out
}

// SizeBytes approximates the memory footprint of the result for cache
// accounting.
func (r *SynthesisResult) SizeBytes() int64 {
	size := int64(len(r.Audio))
	if r.LipSync != nil {
		size += r.LipSync.SizeBytes()
	}
	return size
}
