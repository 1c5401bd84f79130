// Package lipsync generates fixed-rate mouth animation tracks from audio
// envelopes, with a text-driven fallback when no usable envelope exists.
package lipsync

// ParamMouthOpen is the primary animation parameter: mouth openness in [0,1].
const ParamMouthOpen = "mouth_open"

// ParamMouthForm is a secondary parameter shaping the mouth width, derived
// from the openness curve. Renderers without the parameter ignore it.
const ParamMouthForm = "mouth_form"

// Frame is one sample of the animation track.
type Frame struct {
	// Timestamp in seconds from the start of the audio.
	Timestamp float64 `json:"timestamp"`
	// Params maps animation parameter names to values. Values crossing the
	// external boundary are plain float64s.
	Params map[string]float64 `json:"params"`
}

// Track is an ordered, fixed-frame-rate animation track.
type Track struct {
	Frames    []Frame `json:"frames"`
	Duration  float64 `json:"duration"`   // seconds, matches the audio duration
	FrameRate float64 `json:"frame_rate"` // frames per second
}

// MouthOpenAt returns the mouth openness of frame i, or 0 when out of range.
func (t *Track) MouthOpenAt(i int) float64 {
	if i < 0 || i >= len(t.Frames) {
		return 0
	}
	return t.Frames[i].Params[ParamMouthOpen]
}

// SizeBytes approximates the in-memory footprint for cache accounting:
// per-frame timestamp plus map entries of (smallish) key and float64 value.
func (t *Track) SizeBytes() int64 {
	var size int64
	for _, f := range t.Frames {
		size += 8
		size += int64(len(f.Params)) * 24
	}
	return size
}
