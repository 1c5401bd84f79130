// Package mock provides a synthesis provider for tests. It emits real WAV
// bytes with a speech-like amplitude contour so the analyzer and lip-sync
// paths run against decodable audio.
package mock

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/saju-labs/voicemotion/speech"
)

const sampleRate = 22050

// Provider implements speech.Provider for testing.
type Provider struct {
	id         string
	capability speech.Capability
	delay      time.Duration

	mu           sync.Mutex
	failures     int   // fail the next N calls
	failWith     error // error to fail with
	corruptAudio bool  // emit undecodable bytes

	calls atomic.Int64
}

// Option configures a mock provider.
type Option func(*Provider)

// WithDelay sets a simulated synthesis latency.
func WithDelay(d time.Duration) Option {
	return func(p *Provider) { p.delay = d }
}

// WithCapability replaces the default capability profile.
func WithCapability(c speech.Capability) Option {
	return func(p *Provider) { p.capability = c }
}

// New creates a mock provider with the given id.
func New(id string, opts ...Option) *Provider {
	p := &Provider{
		id: id,
		capability: speech.Capability{
			ID:   id,
			Cost: speech.CostFree,
			Voices: map[string][]string{
				"ko-KR": {id + "-ko-female", id + "-ko-male"},
				"en-US": {id + "-en-female"},
			},
			DefaultVoices: map[string]string{
				"ko-KR": id + "-ko-female",
				"en-US": id + "-en-female",
			},
			MaxTextLen: 500,
		},
	}
	p.capability.ID = id
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID implements speech.Provider.
func (p *Provider) ID() string { return p.id }

// Capability implements speech.Provider.
func (p *Provider) Capability() speech.Capability { return p.capability }

// FailNext makes the next n calls fail with err.
func (p *Provider) FailNext(n int, err error) {
	p.mu.Lock()
	p.failures = n
	p.failWith = err
	p.mu.Unlock()
}

// CorruptAudio makes the provider emit bytes no decoder accepts.
func (p *Provider) CorruptAudio(enable bool) {
	p.mu.Lock()
	p.corruptAudio = enable
	p.mu.Unlock()
}

// Calls returns how many Synthesize invocations have been made.
func (p *Provider) Calls() int64 { return p.calls.Load() }

// Synthesize implements speech.Provider.
func (p *Provider) Synthesize(ctx context.Context, req speech.ProviderRequest) (*speech.ProviderAudio, error) {
	p.calls.Add(1)

	p.mu.Lock()
	if p.failures > 0 {
		p.failures--
		err := p.failWith
		p.mu.Unlock()
		return nil, err
	}
	corrupt := p.corruptAudio
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if corrupt {
		return &speech.ProviderAudio{
			Data:   []byte("not audio at all"),
			Format: speech.FormatWAV,
		}, nil
	}

	speed := req.Speed
	if speed <= 0 {
		speed = 1.0
	}
	// Roughly 80ms of audio per rune, scaled by the speed multiplier.
	duration := float64(utf8.RuneCountInString(req.Text)) * 0.08 / speed
	if duration < 0.2 {
		duration = 0.2
	}

	data := speechLikeWAV(duration)
	return &speech.ProviderAudio{
		Data:             data,
		Format:           speech.FormatWAV,
		SampleRate:       sampleRate,
		Channels:         1,
		ReportedDuration: duration * 1.07, // deliberately off, like real backends
	}, nil
}

// speechLikeWAV renders mono 16-bit WAV: a tone with a syllable-rate
// amplitude contour and silent leader/trailer.
func speechLikeWAV(duration float64) []byte {
	n := int(duration * sampleRate)
	pcm := make([]byte, n*2)

	silent := int(0.04 * sampleRate) // 40ms of silence at each edge
	for i := 0; i < n; i++ {
		var s float64
		if i >= silent && i < n-silent {
			t := float64(i) / sampleRate
			envelope := 0.5 + 0.5*math.Sin(2*math.Pi*4*t) // 4Hz syllable pulse
			s = 0.6 * envelope * math.Sin(2*math.Pi*220*t)
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(s*32767)))
	}

	var buf bytes.Buffer
	dataLen := uint32(len(pcm))
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(pcm)
	return buf.Bytes()
}
