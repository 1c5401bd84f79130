package providers

import (
	"context"
	"fmt"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"github.com/charmbracelet/log"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"

	"github.com/saju-labs/voicemotion/speech"
)

// GoogleClient is the slice of the Cloud TTS client the provider needs.
// Narrowed for tests.
type GoogleClient interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...interface{}) (*texttospeechpb.SynthesizeSpeechResponse, error)
}

// realGoogleClient adapts the generated client to GoogleClient.
type realGoogleClient struct {
	c *texttospeech.Client
}

func (r *realGoogleClient) SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, _ ...interface{}) (*texttospeechpb.SynthesizeSpeechResponse, error) {
	return r.c.SynthesizeSpeech(ctx, req)
}

// GoogleConfig configures the Google Cloud TTS provider. Credentials come
// from the ambient application-default environment.
type GoogleConfig struct {
	// RequestsPerMinute for the registry's rate budget. Zero disables.
	RequestsPerMinute int
	// Client overrides the real Cloud client in tests.
	Client GoogleClient
}

// GoogleProvider synthesizes through Google Cloud Text-to-Speech. Paid tier,
// requested as LINEAR16 so the returned audio is a self-describing WAV.
type GoogleProvider struct {
	client GoogleClient
	rpm    int
	logger *log.Logger
}

// NewGoogle creates the provider, dialing the Cloud client unless one is
// injected.
func NewGoogle(ctx context.Context, cfg GoogleConfig, logger *log.Logger) (*GoogleProvider, error) {
	if logger == nil {
		logger = log.Default()
	}
	client := cfg.Client
	if client == nil {
		c, err := texttospeech.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create cloud tts client: %w", err)
		}
		client = &realGoogleClient{c: c}
	}
	return &GoogleProvider{
		client: client,
		rpm:    cfg.RequestsPerMinute,
		logger: logger.WithPrefix("google"),
	}, nil
}

// ID implements speech.Provider.
func (p *GoogleProvider) ID() string { return "google" }

// Capability implements speech.Provider.
func (p *GoogleProvider) Capability() speech.Capability {
	return speech.Capability{
		ID:      "google",
		Cost:    speech.CostPaid,
		Quality: 3,
		Voices: map[string][]string{
			"ko-KR": {"ko-KR-Neural2-A", "ko-KR-Neural2-B", "ko-KR-Standard-A"},
			"en-US": {"en-US-Neural2-F", "en-US-Neural2-D"},
			"ja-JP": {"ja-JP-Neural2-B"},
		},
		DefaultVoices: map[string]string{
			"ko-KR": "ko-KR-Neural2-A",
			"en-US": "en-US-Neural2-F",
			"ja-JP": "ja-JP-Neural2-B",
		},
		MaxTextLen:        4800,
		RequestsPerMinute: p.rpm,
	}
}

// Synthesize implements speech.Provider.
func (p *GoogleProvider) Synthesize(ctx context.Context, req speech.ProviderRequest) (*speech.ProviderAudio, error) {
	// Cloud speaking rate is clamped to [0.25, 4.0]; pitch is in semitones
	// around zero, mapped from the request's multiplier.
	rate := req.Speed
	if rate < 0.25 {
		rate = 0.25
	}
	if rate > 4.0 {
		rate = 4.0
	}
	pitch := (req.Pitch - 1.0) * 10 // multiplier -> semitones, clamped below
	if pitch < -20 {
		pitch = -20
	}
	if pitch > 20 {
		pitch = 20
	}

	start := time.Now()
	resp, err := p.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: req.Text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: req.Language,
			Name:         req.Voice,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_LINEAR16,
			SpeakingRate:  rate,
			Pitch:         pitch,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", speech.ErrProviderUnavailable, err)
	}
	if len(resp.AudioContent) == 0 {
		return nil, fmt.Errorf("%w: empty response", speech.ErrProviderUnavailable)
	}

	p.logger.Debug("synthesized",
		"voice", req.Voice, "bytes", len(resp.AudioContent),
		"latency", time.Since(start))

	return &speech.ProviderAudio{
		Data:   resp.AudioContent,
		Format: speech.FormatWAV,
	}, nil
}
