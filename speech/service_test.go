package speech_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/saju-labs/voicemotion/speech"
	"github.com/saju-labs/voicemotion/speech/providers/mock"
)

func newService(t *testing.T, cfg speech.Config, providers ...speech.Provider) *speech.Service {
	t.Helper()

	r := speech.NewRegistry(cfg.Chain, cfg.ProviderTimeout, nil)
	for _, p := range providers {
		if err := r.Register(p); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	svc, err := speech.New(cfg, r, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func fullRequest() speech.SynthesisRequest {
	return speech.SynthesisRequest{
		Text:              "안녕하세요 오늘의 운세입니다",
		Language:          "ko-KR",
		EmotionHint:       "joy",
		EnableLipSync:     true,
		EnableExpressions: true,
		EnableMotions:     true,
		SessionID:         "session-1",
	}
}

func TestService_FullPipeline(t *testing.T) {
	p := mock.New("edge")
	svc := newService(t, speech.Config{}, p)

	res, err := svc.Synthesize(context.Background(), fullRequest())
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if res.Provider != "edge" {
		t.Errorf("provider = %q", res.Provider)
	}
	if res.Voice != "edge-ko-female" {
		t.Errorf("voice = %q, want the ko-KR default", res.Voice)
	}
	if res.Format != speech.FormatWAV {
		t.Errorf("format = %q", res.Format)
	}
	if len(res.Audio) == 0 {
		t.Fatal("no audio returned")
	}
	if res.CacheHit {
		t.Error("first synthesis reported as cache hit")
	}

	// The duration must come from decoding the audio, not the provider's
	// deliberately skewed self-report.
	if res.DurationSource != speech.DurationMeasured {
		t.Fatalf("duration source = %q, want measured", res.DurationSource)
	}
	if res.Duration <= 0 {
		t.Fatalf("duration = %v", res.Duration)
	}

	// Animation track invariants.
	track := res.LipSync
	if track == nil {
		t.Fatal("lip-sync track missing")
	}
	if track.Duration != res.Duration {
		t.Errorf("track duration %v != audio duration %v", track.Duration, res.Duration)
	}
	wantFrames := res.Duration * 30
	if d := math.Abs(float64(len(track.Frames)) - wantFrames); d > 1 {
		t.Errorf("frames = %d, want about %.1f", len(track.Frames), wantFrames)
	}
	for _, i := range []int{0, 1, len(track.Frames) - 2, len(track.Frames) - 1} {
		if open := track.MouthOpenAt(i); open >= 0.05 {
			t.Errorf("edge frame %d openness %.3f", i, open)
		}
	}
	var peak float64
	for i := range track.Frames {
		if open := track.MouthOpenAt(i); open > peak {
			peak = open
		}
	}
	if peak < 0.3 {
		t.Errorf("peak openness %.3f, mouth barely moves on speech-like audio", peak)
	}

	// Emotion bridge output.
	if res.Expression != "exp_smile" || res.Motion != "bounce" {
		t.Errorf("pose = %q/%q, want exp_smile/bounce", res.Expression, res.Motion)
	}
	if res.Intensity != 0.8 {
		t.Errorf("intensity = %v, want 0.8", res.Intensity)
	}
}

func TestService_CacheRoundTrip(t *testing.T) {
	p := mock.New("edge")
	svc := newService(t, speech.Config{}, p)

	first, err := svc.Synthesize(context.Background(), fullRequest())
	if err != nil {
		t.Fatalf("first synthesis: %v", err)
	}
	second, err := svc.Synthesize(context.Background(), fullRequest())
	if err != nil {
		t.Fatalf("second synthesis: %v", err)
	}

	if first.CacheHit {
		t.Error("first result marked as cache hit")
	}
	if !second.CacheHit {
		t.Error("second result not marked as cache hit")
	}
	if !bytes.Equal(first.Audio, second.Audio) {
		t.Error("cached audio differs from the original")
	}
	if second.Duration != first.Duration || second.Provider != first.Provider {
		t.Error("cached metadata differs from the original")
	}
	if p.Calls() != 1 {
		t.Errorf("provider invoked %d times, want 1", p.Calls())
	}
	if svc.UpstreamCalls() != 1 {
		t.Errorf("upstream calls = %d, want 1", svc.UpstreamCalls())
	}

	stats := svc.CacheStats()
	if stats.Hits < 1 {
		t.Errorf("cache stats = %+v, want at least one hit", stats)
	}
}

func TestService_AgedEntryRegenerated(t *testing.T) {
	p := mock.New("edge")
	svc := newService(t, speech.Config{CacheMaxAge: 50 * time.Millisecond}, p)

	first, err := svc.Synthesize(context.Background(), fullRequest())
	if err != nil {
		t.Fatalf("first synthesis: %v", err)
	}

	time.Sleep(150 * time.Millisecond)

	second, err := svc.Synthesize(context.Background(), fullRequest())
	if err != nil {
		t.Fatalf("second synthesis: %v", err)
	}

	if second.CacheHit {
		t.Error("entry older than the age bound served as a cache hit")
	}
	if p.Calls() != 2 {
		t.Errorf("provider invoked %d times, want 2 after cache expiry", p.Calls())
	}
	if !bytes.Equal(first.Audio, second.Audio) {
		t.Error("regenerated audio differs from the original")
	}
}

func TestService_PruneReclaimsAgedEntries(t *testing.T) {
	p := mock.New("edge")
	svc := newService(t, speech.Config{CacheMaxAge: 50 * time.Millisecond}, p)

	if _, err := svc.Synthesize(context.Background(), fullRequest()); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got := svc.CacheStats().Entries; got != 1 {
		t.Fatalf("entries = %d, want 1 after first synthesis", got)
	}

	// The background sweep runs at least every 100ms; the aged entry must
	// disappear without any lookup touching it.
	deadline := time.Now().Add(2 * time.Second)
	for svc.CacheStats().Entries != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("aged entry still resident, stats = %+v", svc.CacheStats())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestService_MissCountedOnce(t *testing.T) {
	p := mock.New("edge")
	svc := newService(t, speech.Config{}, p)

	if _, err := svc.Synthesize(context.Background(), fullRequest()); err != nil {
		t.Fatalf("first synthesis: %v", err)
	}
	if got := svc.CacheStats().Misses; got != 1 {
		t.Fatalf("misses = %d after one synthesis, want exactly 1", got)
	}

	if _, err := svc.Synthesize(context.Background(), fullRequest()); err != nil {
		t.Fatalf("second synthesis: %v", err)
	}

	s := svc.CacheStats()
	if s.Hits != 1 || s.Misses != 1 {
		t.Errorf("stats = %+v, want exactly one hit and one miss", s)
	}
	if got := s.HitRate(); got != 0.5 {
		t.Errorf("hit rate = %v, want 0.5", got)
	}
}

func TestService_ConcurrentRequestsCollapse(t *testing.T) {
	// The provider is slow enough that all 50 callers arrive while the first
	// flight is still in progress.
	p := mock.New("edge", mock.WithDelay(80*time.Millisecond))
	svc := newService(t, speech.Config{}, p)

	const callers = 50
	var wg sync.WaitGroup
	results := make([]*speech.SynthesisResult, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Synthesize(context.Background(), fullRequest())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if !bytes.Equal(results[i].Audio, results[0].Audio) {
			t.Fatalf("caller %d received different audio", i)
		}
	}
	if p.Calls() != 1 {
		t.Errorf("provider invoked %d times for identical concurrent requests, want 1", p.Calls())
	}
	if svc.UpstreamCalls() != 1 {
		t.Errorf("upstream calls = %d, want 1", svc.UpstreamCalls())
	}
}

func TestService_FallbackOnQuotaFailure(t *testing.T) {
	primary := mock.New("primary")
	backup := mock.New("backup")
	primary.FailNext(1, speech.ErrQuotaExceeded)

	svc := newService(t, speech.Config{Chain: []string{"primary", "backup"}}, primary, backup)

	res, err := svc.Synthesize(context.Background(), speech.SynthesisRequest{
		Text:     "안녕하세요",
		Language: "ko-KR",
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if res.Provider != "backup" {
		t.Errorf("provider = %q, want backup after primary quota failure", res.Provider)
	}
	if primary.Calls() != 1 || backup.Calls() != 1 {
		t.Errorf("calls = %d/%d, want 1/1", primary.Calls(), backup.Calls())
	}
}

func TestService_UndecodableAudioDegradesToEstimate(t *testing.T) {
	p := mock.New("edge")
	p.CorruptAudio(true)
	svc := newService(t, speech.Config{}, p)

	res, err := svc.Synthesize(context.Background(), fullRequest())
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	// A decode failure is a degradation, never a request failure.
	if res.DurationSource != speech.DurationEstimated {
		t.Fatalf("duration source = %q, want estimated", res.DurationSource)
	}
	if res.Duration <= 0 {
		t.Errorf("estimated duration = %v", res.Duration)
	}
	if len(res.Audio) == 0 {
		t.Error("audio dropped during degradation")
	}

	// Lip-sync falls back to the text-driven track.
	if res.LipSync == nil {
		t.Fatal("lip-sync track missing in degraded mode")
	}
	if res.LipSync.Duration != res.Duration {
		t.Errorf("track duration %v != estimated duration %v", res.LipSync.Duration, res.Duration)
	}
	var peak float64
	for i := range res.LipSync.Frames {
		if open := res.LipSync.MouthOpenAt(i); open > peak {
			peak = open
		}
	}
	if peak < 0.3 {
		t.Errorf("peak openness %.3f, text fallback should still move the mouth", peak)
	}
}

func TestService_EmptyText(t *testing.T) {
	svc := newService(t, speech.Config{}, mock.New("edge"))

	for _, text := range []string{"", "   ", "\t\n"} {
		_, err := svc.Synthesize(context.Background(), speech.SynthesisRequest{
			Text: text, Language: "ko-KR",
		})
		if !errors.Is(err, speech.ErrEmptyText) {
			t.Errorf("text %q: error = %v, want ErrEmptyText", text, err)
		}
	}
}

func TestService_UnsupportedLanguage(t *testing.T) {
	svc := newService(t, speech.Config{}, mock.New("edge"))

	_, err := svc.Synthesize(context.Background(), speech.SynthesisRequest{
		Text: "bonjour", Language: "fr-FR",
	})
	if !errors.Is(err, speech.ErrProviderUnsupported) {
		t.Fatalf("error = %v, want ErrProviderUnsupported", err)
	}
}

func TestService_Closed(t *testing.T) {
	svc := newService(t, speech.Config{}, mock.New("edge"))
	if err := svc.Close(); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Synthesize(context.Background(), fullRequest())
	if !errors.Is(err, speech.ErrServiceClosed) {
		t.Fatalf("error = %v, want ErrServiceClosed", err)
	}

	// Closing twice is harmless.
	if err := svc.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestService_FreezesRegistry(t *testing.T) {
	r := speech.NewRegistry(nil, 0, nil)
	if err := r.Register(mock.New("edge")); err != nil {
		t.Fatal(err)
	}
	if _, err := speech.New(speech.Config{}, r, nil, nil); err != nil {
		t.Fatal(err)
	}

	if err := r.Register(mock.New("late")); err == nil {
		t.Fatal("registration accepted after the service froze the registry")
	}
}

func TestService_FlagsControlOutputs(t *testing.T) {
	svc := newService(t, speech.Config{}, mock.New("edge"))

	req := speech.SynthesisRequest{
		Text:              "안녕하세요",
		Language:          "ko-KR",
		EmotionHint:       "joy",
		EnableExpressions: true,
		// lip-sync and motions disabled
	}
	res, err := svc.Synthesize(context.Background(), req)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if res.LipSync != nil {
		t.Error("lip-sync track generated with the flag off")
	}
	if res.Expression != "exp_smile" {
		t.Errorf("expression = %q", res.Expression)
	}
	if res.Motion != "" {
		t.Errorf("motion = %q with the flag off", res.Motion)
	}
}

func TestService_CallerCancelDoesNotStrandFlight(t *testing.T) {
	p := mock.New("edge", mock.WithDelay(60*time.Millisecond))
	svc := newService(t, speech.Config{}, p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.Synthesize(ctx, fullRequest())
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled caller error = %v, want context.Canceled", err)
	}

	// The detached flight still completes and populates the cache.
	deadline := time.After(2 * time.Second)
	for svc.CacheStats().Entries == 0 {
		select {
		case <-deadline:
			t.Fatal("flight did not populate the cache after caller cancel")
		case <-time.After(10 * time.Millisecond):
		}
	}

	res, err := svc.Synthesize(context.Background(), fullRequest())
	if err != nil {
		t.Fatalf("followup synthesis: %v", err)
	}
	if !res.CacheHit {
		t.Error("followup request missed the cache")
	}
	if p.Calls() != 1 {
		t.Errorf("provider invoked %d times, want 1", p.Calls())
	}
}

func TestService_InvalidConfig(t *testing.T) {
	r := speech.NewRegistry(nil, 0, nil)
	if _, err := speech.New(speech.Config{FrameRate: 500}, r, nil, nil); !errors.Is(err, speech.ErrInvalidConfig) {
		t.Fatalf("error = %v, want ErrInvalidConfig", err)
	}
	if _, err := speech.New(speech.Config{}, nil, nil, nil); !errors.Is(err, speech.ErrInvalidConfig) {
		t.Fatalf("nil registry error = %v, want ErrInvalidConfig", err)
	}
}
