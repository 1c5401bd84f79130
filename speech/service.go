package speech

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/saju-labs/voicemotion/internal/audio"
	"github.com/saju-labs/voicemotion/internal/cache"
	"github.com/saju-labs/voicemotion/internal/emotion"
	"github.com/saju-labs/voicemotion/internal/lipsync"
)

// Service is the synthesis orchestrator. It owns the provider registry, the
// analyzer, the lip-sync generator, the emotion bridge and the result cache,
// and is constructed explicitly and injected into callers. There is no
// ambient global instance.
type Service struct {
	registry  *Registry
	analyzer  *audio.Analyzer
	generator *lipsync.Generator
	bridge    *emotion.Bridge
	cache     *cache.Cache

	group     singleflight.Group
	closed    atomic.Bool
	pruneStop chan struct{}

	upstreamCalls atomic.Int64

	logger *log.Logger
}

// New creates the orchestrator service. The registry must have all providers
// registered; New freezes it. vocab may be nil when no model descriptor is
// available.
func New(cfg Config, registry *Registry, vocab *emotion.Vocabulary, logger *log.Logger) (*Service, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, NewError(ErrInvalidConfig, "service", "new")
	}
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithPrefix("speech")

	resultCache, err := cache.New(cache.Config{
		MaxEntries:  cfg.CacheMaxEntries,
		MaxBytes:    cfg.CacheMaxBytes,
		MaxAge:      cfg.CacheMaxAge,
		Compression: cfg.CacheCompression,
	}, logger)
	if err != nil {
		return nil, NewError(err, "service", "init cache")
	}

	registry.freeze()

	s := &Service{
		registry:  registry,
		analyzer:  audio.NewAnalyzer(cfg.FrameRate, logger),
		generator: lipsync.NewGenerator(lipsync.Config{
			FrameRate: cfg.FrameRate,
			Gamma:     cfg.LipSyncGamma,
			Smoothing: cfg.LipSyncSmoothing,
		}, logger),
		bridge: emotion.NewBridge(vocab, logger),
		cache:  resultCache,
		logger: logger,
	}

	if cfg.CacheMaxAge > 0 {
		s.pruneStop = make(chan struct{})
		go s.pruneLoop(cfg.CacheMaxAge)
	}

	logger.Info("speech service ready",
		"providers", registry.ProviderIDs(), "frame_rate", cfg.FrameRate)
	return s, nil
}

// pruneLoop reclaims aged entries in the background so they do not sit in
// memory until a lookup touches them or size pressure evicts them.
func (s *Service) pruneLoop(maxAge time.Duration) {
	interval := maxAge / 2
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.cache.Prune(); n > 0 {
				s.logger.Debug("pruned aged cache entries", "count", n)
			}
		case <-s.pruneStop:
			return
		}
	}
}

// Close shuts the service down. In-flight requests finish; new requests fail
// with ErrServiceClosed.
func (s *Service) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.pruneStop != nil {
		close(s.pruneStop)
	}
	s.cache.Clear()
	s.logger.Info("speech service closed")
	return nil
}

// CacheStats exposes result cache counters for operators.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// UpstreamCalls returns how many provider invocations have completed the
// synthesis stage. Test hooks and telemetry only.
func (s *Service) UpstreamCalls() int64 {
	return s.upstreamCalls.Load()
}

// Synthesize runs the full pipeline for one request.
//
// The cache fingerprint is computed before any provider is touched. On a hit
// the cached result returns immediately with CacheHit set and no provider
// call. On a miss, concurrent requests sharing the fingerprint are collapsed
// into exactly one upstream synthesis; every waiter receives the same result.
// If the caller's context is canceled mid-flight, the synthesis still runs to
// completion to populate the cache, but nothing is delivered to that caller.
func (s *Service) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	if s.closed.Load() {
		return nil, NewError(ErrServiceClosed, "service", "synthesize")
	}
	if req.NormalizedText() == "" {
		return nil, NewError(ErrEmptyText, "service", "synthesize")
	}

	req = req.withDefaults()
	fp := Fingerprint(req)

	if res, ok := s.lookup(fp); ok {
		s.logger.Debug("cache hit", "fingerprint", fp, "session", req.SessionID)
		return res, nil
	}

	// Collapse concurrent identical requests into one flight. The flight
	// runs detached from any single caller's context so a disconnect cannot
	// strand the other waiters, and the finished result still lands in the
	// cache for later identical requests.
	ch := s.group.DoChan(fp, func() (any, error) {
		return s.synthesizeMiss(context.WithoutCancel(ctx), req, fp)
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*SynthesisResult), nil
	case <-ctx.Done():
		return nil, NewError(ctx.Err(), "service", "synthesize")
	}
}

// lookup assembles a shared result from the cache, counting the access in
// the hit/miss stats. A malformed entry is treated as a miss and regenerated.
func (s *Service) lookup(fp string) (*SynthesisResult, bool) {
	meta, audioBytes, ok := s.cache.Get(fp)
	return s.assemble(fp, meta, audioBytes, ok)
}

// peek is lookup without the stats accounting, for the re-check inside a
// flight where the caller's lookup already recorded the miss.
func (s *Service) peek(fp string) (*SynthesisResult, bool) {
	meta, audioBytes, ok := s.cache.Peek(fp)
	return s.assemble(fp, meta, audioBytes, ok)
}

func (s *Service) assemble(fp string, meta any, audioBytes []byte, ok bool) (*SynthesisResult, bool) {
	if !ok {
		return nil, false
	}
	cached, ok := meta.(*SynthesisResult)
	if !ok {
		s.logger.Warn("cache entry has unexpected type, regenerating", "fingerprint", fp)
		return nil, false
	}
	out := cached.Clone(true)
	out.Audio = audioBytes
	return out, true
}

// synthesizeMiss walks the pipeline stages for a cache miss.
func (s *Service) synthesizeMiss(ctx context.Context, req SynthesisRequest, fp string) (*SynthesisResult, error) {
	// A previous flight may have populated the entry between the caller's
	// lookup and this flight starting.
	if res, ok := s.peek(fp); ok {
		return res, nil
	}

	requestID := uuid.NewString()
	start := time.Now()

	tracker := newStageTracker(func(st Stage) {
		s.logger.Debug("stage", "request", requestID, "stage", st.String())
	})

	tracker.advance(StageSelectingProvider)
	tracker.advance(StageSynthesizing)

	inv, err := s.registry.Invoke(ctx, ProviderRequest{
		Text:     req.NormalizedText(),
		Language: req.Language,
		Voice:    req.Voice,
		Speed:    req.Speed,
		Pitch:    req.Pitch,
		Volume:   req.Volume,
	})
	if err != nil {
		tracker.advance(StageFailed)
		return nil, err
	}
	s.upstreamCalls.Add(1)

	result := &SynthesisResult{
		Audio:    inv.Audio.Data,
		Format:   inv.Audio.Format,
		Provider: inv.Provider,
		Voice:    inv.Voice,
		Language: req.Language,
	}

	tracker.advance(StageMeasuring)
	analysis, err := s.analyzer.Analyze(
		inv.Audio.Data, string(inv.Audio.Format),
		inv.Audio.SampleRate, inv.Audio.Channels)

	var envelope []float64
	if err != nil {
		// Designed degradation, not an error path: fall back to the
		// text-length heuristic and tell downstream consumers to relax
		// their synchronization tolerances.
		result.Duration = audio.EstimateDuration(req.Text, req.Language, req.Speed)
		result.DurationSource = DurationEstimated
		s.logger.Warn("audio decode failed, using estimated duration",
			"request", requestID, "provider", inv.Provider,
			"duration", result.Duration, "err", err)
	} else {
		result.Duration = analysis.Duration
		result.DurationSource = DurationMeasured
		envelope = analysis.Envelope
	}

	if req.EnableLipSync {
		tracker.advance(StageLipSync)
		if len(envelope) > 0 {
			result.LipSync = s.generator.FromEnvelope(envelope, result.Duration)
		} else {
			result.LipSync = s.generator.FromText(req.NormalizedText(), result.Duration)
		}
	}

	if req.EnableExpressions || req.EnableMotions {
		tracker.advance(StageExpressionMapping)
		pose := s.bridge.Map(req.EmotionHint)
		if req.EnableExpressions {
			result.Expression = pose.Expression
		}
		if req.EnableMotions {
			result.Motion = pose.Motion
		}
		result.Intensity = pose.Intensity
	}

	result.Latency = time.Since(start)

	tracker.advance(StageCaching)
	s.store(fp, result)
	tracker.advance(StageDone)

	s.logger.Info("synthesis complete",
		"request", requestID,
		"provider", result.Provider,
		"voice", result.Voice,
		"duration", result.Duration,
		"duration_source", string(result.DurationSource),
		"audio_bytes", len(result.Audio),
		"latency", result.Latency,
		"session", req.SessionID,
	)

	return result, nil
}

// store caches the result with the audio payload held separately so the
// cache can compress it at rest. Cache write failures (e.g. an oversized
// clip) are non-fatal.
func (s *Service) store(fp string, result *SynthesisResult) {
	meta := result.Clone(false)
	meta.Audio = nil
	if err := s.cache.Put(fp, meta, result.Audio, result.SizeBytes()); err != nil {
		if !errors.Is(err, cache.ErrItemTooLarge) {
			s.logger.Warn("cache write failed", "fingerprint", fp, "err", err)
		}
	}
}
