package speech

import "context"

// CostTier classifies what a provider invocation costs the operator.
type CostTier string

const (
	// CostFree providers have no per-request cost.
	CostFree CostTier = "free"
	// CostPaid providers bill per character or request.
	CostPaid CostTier = "paid"
)

// Capability is a provider's immutable profile, registered once at startup.
type Capability struct {
	// ID is the provider identifier, e.g. "edge" or "google".
	ID string
	// Cost tier of an invocation.
	Cost CostTier
	// Quality tier; higher is better. Used for operator visibility only;
	// selection order comes from the configured chain, not quality.
	Quality int
	// Voices maps a language tag to the voices offered for it.
	Voices map[string][]string
	// DefaultVoices maps a language tag to the voice used when the request
	// does not pin one. Languages absent here fall back to the first
	// declared voice.
	DefaultVoices map[string]string
	// MaxTextLen is the provider's input limit in runes. Zero means no limit.
	MaxTextLen int
	// RequestsPerMinute is the rate budget enforced before invocation.
	// Zero disables rate limiting for the provider.
	RequestsPerMinute int
}

// SupportsLanguage reports whether the capability declares the language.
func (c Capability) SupportsLanguage(language string) bool {
	_, ok := c.Voices[language]
	return ok
}

// VoiceFor resolves the voice to use for a language. A pinned voice must be
// declared; an empty pin selects the default (or first declared) voice.
func (c Capability) VoiceFor(language, pinned string) (string, bool) {
	voices, ok := c.Voices[language]
	if !ok || len(voices) == 0 {
		return "", false
	}
	if pinned != "" {
		for _, v := range voices {
			if v == pinned {
				return v, true
			}
		}
		return "", false
	}
	if def, ok := c.DefaultVoices[language]; ok {
		return def, true
	}
	return voices[0], true
}

// ProviderRequest is the narrow invocation contract handed to a provider.
// All selection and fallback logic is provider-agnostic; providers only see
// the resolved voice.
type ProviderRequest struct {
	Text     string
	Language string
	Voice    string
	Speed    float64
	Pitch    float64
	Volume   float64
}

// ProviderAudio is raw synthesized audio as returned by a provider.
type ProviderAudio struct {
	Data   []byte
	Format AudioFormat
	// SampleRate and Channels describe headerless PCM payloads; they are
	// ignored for self-describing containers.
	SampleRate int
	Channels   int
	// ReportedDuration is the provider's self-reported duration in seconds.
	// It is kept for telemetry only and never trusted for synchronization:
	// several backends report values measurably off from the decoded audio.
	ReportedDuration float64
}

// Provider is the single capability interface every synthesis backend
// implements. Transport and protocol details stay behind it.
type Provider interface {
	// ID returns the provider identifier, matching Capability().ID.
	ID() string

	// Capability returns the immutable capability profile.
	Capability() Capability

	// Synthesize converts text to raw audio. Implementations must honor ctx
	// cancellation and deadline.
	Synthesize(ctx context.Context, req ProviderRequest) (*ProviderAudio, error)
}
