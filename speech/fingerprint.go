package speech

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Fingerprint computes the stable cache key for a request. It covers every
// field that changes the synthesized output: normalized text, voice,
// language, prosody multipliers, emotion hint and the feature flags.
// Session and user identifiers are deliberately excluded.
func Fingerprint(req SynthesisRequest) string {
	req = req.withDefaults()
	data := fmt.Sprintf("%s|%s|%s|%.2f|%.2f|%.2f|%s|%t|%t|%t",
		req.NormalizedText(),
		req.Language,
		req.Voice,
		req.Speed,
		req.Pitch,
		req.Volume,
		req.EmotionHint,
		req.EnableLipSync,
		req.EnableExpressions,
		req.EnableMotions,
	)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}
