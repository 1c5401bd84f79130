package providers

import (
	"context"
	"errors"
	"testing"

	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"

	"github.com/saju-labs/voicemotion/speech"
)

type fakeGoogleClient struct {
	lastReq *texttospeechpb.SynthesizeSpeechRequest
	resp    *texttospeechpb.SynthesizeSpeechResponse
	err     error
}

func (f *fakeGoogleClient) SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, _ ...interface{}) (*texttospeechpb.SynthesizeSpeechResponse, error) {
	f.lastReq = req
	return f.resp, f.err
}

func newGoogleWithFake(t *testing.T, fake *fakeGoogleClient) *GoogleProvider {
	t.Helper()
	p, err := NewGoogle(context.Background(), GoogleConfig{Client: fake}, nil)
	if err != nil {
		t.Fatalf("NewGoogle: %v", err)
	}
	return p
}

func TestGoogle_Synthesize(t *testing.T) {
	fake := &fakeGoogleClient{
		resp: &texttospeechpb.SynthesizeSpeechResponse{AudioContent: []byte("linear16")},
	}
	p := newGoogleWithFake(t, fake)

	audio, err := p.Synthesize(context.Background(), speech.ProviderRequest{
		Text:     "안녕하세요",
		Language: "ko-KR",
		Voice:    "ko-KR-Neural2-A",
		Speed:    1.0,
		Pitch:    1.0,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if string(audio.Data) != "linear16" || audio.Format != speech.FormatWAV {
		t.Errorf("audio = %q format %q", audio.Data, audio.Format)
	}

	req := fake.lastReq
	if req.GetInput().GetText() != "안녕하세요" {
		t.Errorf("input text = %q", req.GetInput().GetText())
	}
	if req.GetVoice().GetLanguageCode() != "ko-KR" || req.GetVoice().GetName() != "ko-KR-Neural2-A" {
		t.Errorf("voice selection = %+v", req.GetVoice())
	}
	if req.GetAudioConfig().GetAudioEncoding() != texttospeechpb.AudioEncoding_LINEAR16 {
		t.Errorf("encoding = %v", req.GetAudioConfig().GetAudioEncoding())
	}
	if req.GetAudioConfig().GetPitch() != 0 {
		t.Errorf("neutral pitch multiplier mapped to %v semitones", req.GetAudioConfig().GetPitch())
	}
}

func TestGoogle_ProsodyMapping(t *testing.T) {
	tests := []struct {
		speed, pitch   float64
		wantRate       float64
		wantPitchSemis float64
	}{
		{1.0, 1.0, 1.0, 0},
		{0.1, 1.0, 0.25, 0}, // clamped low
		{9.0, 1.0, 4.0, 0},  // clamped high
		{1.0, 1.5, 1.0, 5},  // multiplier above neutral raises pitch
		{1.0, 0.5, 1.0, -5}, // below neutral lowers it
		{1.0, 5.0, 1.0, 20}, // semitone clamp
		{1.0, -5.0, 1.0, -20},
	}

	for _, tt := range tests {
		fake := &fakeGoogleClient{
			resp: &texttospeechpb.SynthesizeSpeechResponse{AudioContent: []byte("x")},
		}
		p := newGoogleWithFake(t, fake)

		_, err := p.Synthesize(context.Background(), speech.ProviderRequest{
			Text: "hi", Language: "en-US", Voice: "en-US-Neural2-F",
			Speed: tt.speed, Pitch: tt.pitch,
		})
		if err != nil {
			t.Fatal(err)
		}

		cfg := fake.lastReq.GetAudioConfig()
		if cfg.GetSpeakingRate() != tt.wantRate {
			t.Errorf("speed %v: rate = %v, want %v", tt.speed, cfg.GetSpeakingRate(), tt.wantRate)
		}
		if cfg.GetPitch() != tt.wantPitchSemis {
			t.Errorf("pitch %v: semitones = %v, want %v", tt.pitch, cfg.GetPitch(), tt.wantPitchSemis)
		}
	}
}

func TestGoogle_Errors(t *testing.T) {
	upstream := errors.New("rpc unavailable")
	p := newGoogleWithFake(t, &fakeGoogleClient{err: upstream})

	_, err := p.Synthesize(context.Background(), speech.ProviderRequest{
		Text: "hi", Language: "en-US", Voice: "en-US-Neural2-F",
	})
	if !errors.Is(err, speech.ErrProviderUnavailable) {
		t.Fatalf("error = %v, want ErrProviderUnavailable", err)
	}

	// An empty response body is a provider failure too.
	p = newGoogleWithFake(t, &fakeGoogleClient{resp: &texttospeechpb.SynthesizeSpeechResponse{}})
	_, err = p.Synthesize(context.Background(), speech.ProviderRequest{
		Text: "hi", Language: "en-US", Voice: "en-US-Neural2-F",
	})
	if !errors.Is(err, speech.ErrProviderUnavailable) {
		t.Fatalf("empty response error = %v, want ErrProviderUnavailable", err)
	}
}

func TestGoogle_Capability(t *testing.T) {
	p := newGoogleWithFake(t, &fakeGoogleClient{})
	c := p.Capability()

	if c.Cost != speech.CostPaid {
		t.Errorf("cost = %q, want paid", c.Cost)
	}
	if c.MaxTextLen != 4800 {
		t.Errorf("max text len = %d", c.MaxTextLen)
	}
	if v, ok := c.VoiceFor("ko-KR", "ko-KR-Standard-A"); !ok || v != "ko-KR-Standard-A" {
		t.Errorf("pinned voice = %q, %v", v, ok)
	}
}
