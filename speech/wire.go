package speech

import "github.com/saju-labs/voicemotion/internal/lipsync"

// WireFrame is one animation frame at the external boundary.
type WireFrame struct {
	Timestamp float64            `json:"timestamp"`
	Params    map[string]float64 `json:"params"`
}

// WireLipSync is the animation track at the external boundary.
type WireLipSync struct {
	Frames    []WireFrame `json:"frames"`
	Duration  float64     `json:"duration"`
	FrameRate float64     `json:"frame_rate"`
}

// WireResult is the response schema delivered to the chat collaborator.
// Every numeric field is a plain float64, int64 or bool: library-specific
// numeric wrapper types have broken the wire format before, so conversion to
// primitives happens here and only here.
type WireResult struct {
	Audio          []byte       `json:"audio"`
	AudioFormat    string       `json:"audio_format"`
	Duration       float64      `json:"duration"`
	DurationSource string       `json:"duration_source"`
	ProviderUsed   string       `json:"provider_used"`
	VoiceUsed      string       `json:"voice_used"`
	Language       string       `json:"language"`
	LipSyncTrack   *WireLipSync `json:"lip_sync_track,omitempty"`
	ExpressionName string       `json:"expression_name,omitempty"`
	MotionName     string       `json:"motion_name,omitempty"`
	Intensity      float64      `json:"intensity"`
	LatencyMS      float64      `json:"latency_ms"`
	CacheHit       bool         `json:"cache_hit"`
}

// Wire converts the result to its boundary representation.
func (r *SynthesisResult) Wire() *WireResult {
	out := &WireResult{
		Audio:          r.Audio,
		AudioFormat:    string(r.Format),
		Duration:       r.Duration,
		DurationSource: string(r.DurationSource),
		ProviderUsed:   r.Provider,
		VoiceUsed:      r.Voice,
		Language:       r.Language,
		ExpressionName: r.Expression,
		MotionName:     r.Motion,
		Intensity:      r.Intensity,
		LatencyMS:      float64(r.Latency.Milliseconds()),
		CacheHit:       r.CacheHit,
	}
	if r.LipSync != nil {
		out.LipSyncTrack = wireTrack(r.LipSync)
	}
	return out
}

func wireTrack(t *lipsync.Track) *WireLipSync {
	frames := make([]WireFrame, len(t.Frames))
	for i, f := range t.Frames {
		// Copy the param maps so a consumer mutating the payload cannot
		// reach back into the cached track.
		params := make(map[string]float64, len(f.Params))
		for k, v := range f.Params {
			params[k] = v
		}
		frames[i] = WireFrame{Timestamp: f.Timestamp, Params: params}
	}
	return &WireLipSync{
		Frames:    frames,
		Duration:  t.Duration,
		FrameRate: t.FrameRate,
	}
}
