// Package providers contains the concrete synthesis backends. Each one hides
// its transport behind the speech.Provider capability interface; selection
// and fallback never depend on anything in this package.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/saju-labs/voicemotion/speech"
)

const defaultEdgeURL = "http://127.0.0.1:5500/synthesize"

// EdgeConfig configures the edge-tts gateway provider, a free neural TTS
// service reached over a local HTTP bridge.
type EdgeConfig struct {
	// BaseURL of the bridge's synthesize endpoint.
	BaseURL string
	// Timeout for the HTTP client. Zero selects 15s.
	Timeout time.Duration
	// RequestsPerMinute for the registry's rate budget. Zero disables.
	RequestsPerMinute int
	// HTTPClient overrides the default client. Tests inject one backed by
	// httptest.
	HTTPClient *http.Client
}

// EdgeProvider synthesizes through an edge-tts HTTP bridge.
type EdgeProvider struct {
	baseURL string
	client  *http.Client
	rpm     int
	logger  *log.Logger
}

// NewEdge creates the edge provider.
func NewEdge(cfg EdgeConfig, logger *log.Logger) *EdgeProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultEdgeURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &EdgeProvider{
		baseURL: cfg.BaseURL,
		client:  client,
		rpm:     cfg.RequestsPerMinute,
		logger:  logger.WithPrefix("edge"),
	}
}

// ID implements speech.Provider.
func (p *EdgeProvider) ID() string { return "edge" }

// Capability implements speech.Provider.
func (p *EdgeProvider) Capability() speech.Capability {
	return speech.Capability{
		ID:      "edge",
		Cost:    speech.CostFree,
		Quality: 2,
		Voices: map[string][]string{
			"ko-KR": {"ko-KR-SunHiNeural", "ko-KR-InJoonNeural"},
			"en-US": {"en-US-AriaNeural", "en-US-GuyNeural"},
			"ja-JP": {"ja-JP-NanamiNeural"},
		},
		DefaultVoices: map[string]string{
			"ko-KR": "ko-KR-SunHiNeural",
			"en-US": "en-US-AriaNeural",
			"ja-JP": "ja-JP-NanamiNeural",
		},
		MaxTextLen:        1000,
		RequestsPerMinute: p.rpm,
	}
}

// edgeRequest is the bridge's JSON request body.
type edgeRequest struct {
	Text   string  `json:"text"`
	Voice  string  `json:"voice"`
	Rate   float64 `json:"rate"`
	Pitch  float64 `json:"pitch"`
	Volume float64 `json:"volume"`
}

// edgeError is the bridge's JSON error body.
type edgeError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Synthesize implements speech.Provider. The bridge returns raw MP3 on
// success and a JSON error body otherwise.
func (p *EdgeProvider) Synthesize(ctx context.Context, req speech.ProviderRequest) (*speech.ProviderAudio, error) {
	body, err := json.Marshal(edgeRequest{
		Text:   req.Text,
		Voice:  req.Voice,
		Rate:   req.Speed,
		Pitch:  req.Pitch,
		Volume: req.Volume,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", speech.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, speech.ErrQuotaExceeded
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", speech.ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusBadRequest:
		var e edgeError
		if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Code == "voice_not_found" {
			return nil, speech.ErrVoiceNotFound
		}
		return nil, fmt.Errorf("%w: bad request", speech.ErrProviderUnavailable)
	default:
		return nil, fmt.Errorf("%w: status %d", speech.ErrProviderUnavailable, resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	p.logger.Debug("synthesized", "voice", req.Voice, "bytes", len(audio))

	return &speech.ProviderAudio{
		Data:   audio,
		Format: speech.FormatMP3,
	}, nil
}
