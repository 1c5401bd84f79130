package audio

import (
	"strings"
	"unicode/utf8"
)

// speakingRates maps a language prefix to typical characters spoken per
// second. Syllabic scripts carry more information per rune, so their rates
// are lower than Latin text.
var speakingRates = map[string]float64{
	"ko": 5.5,
	"ja": 6.0,
	"zh": 4.5,
	"en": 15.0,
	"es": 14.0,
	"de": 13.0,
	"fr": 14.0,
}

// defaultSpeakingRate covers languages without a tuned constant.
const defaultSpeakingRate = 12.0

// minEstimatedDuration keeps degenerate inputs from producing zero-length
// animation tracks.
const minEstimatedDuration = 0.4

// EstimateDuration returns a heuristic duration in seconds for text spoken in
// the given language, used when the synthesized audio cannot be decoded.
// speed is the request's rate multiplier.
func EstimateDuration(text, language string, speed float64) float64 {
	rate := defaultSpeakingRate
	prefix := language
	if i := strings.IndexAny(language, "-_"); i > 0 {
		prefix = language[:i]
	}
	if r, ok := speakingRates[strings.ToLower(prefix)]; ok {
		rate = r
	}

	if speed <= 0 {
		speed = 1.0
	}

	chars := utf8.RuneCountInString(strings.TrimSpace(text))
	d := float64(chars) / (rate * speed)
	if d < minEstimatedDuration {
		d = minEstimatedDuration
	}
	return d
}
