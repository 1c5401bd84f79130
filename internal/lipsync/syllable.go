package lipsync

import "unicode"

// CountSyllables estimates the number of syllable-like units in text. Hangul
// and CJK ideographs are one syllable per rune; Latin-script runs are counted
// by vowel groups. The estimate only drives the fallback mouth oscillation,
// so coarse is fine.
func CountSyllables(text string) int {
	count := 0
	prevVowel := false
	inWord := false
	wordHadVowel := false

	flushWord := func() {
		if inWord && !wordHadVowel {
			// Consonant-only token (e.g. "hmm") still moves the mouth once.
			count++
		}
		inWord = false
		wordHadVowel = false
		prevVowel = false
	}

	for _, r := range text {
		switch {
		case isHangulSyllable(r), unicode.Is(unicode.Han, r),
			unicode.Is(unicode.Hiragana, r), unicode.Is(unicode.Katakana, r):
			flushWord()
			count++
		case unicode.IsLetter(r):
			inWord = true
			if isLatinVowel(r) {
				if !prevVowel {
					count++
					wordHadVowel = true
				}
				prevVowel = true
			} else {
				prevVowel = false
			}
		case unicode.IsDigit(r):
			flushWord()
			count++
		default:
			flushWord()
		}
	}
	flushWord()

	return count
}

// isHangulSyllable reports whether r is a precomposed Hangul syllable block.
func isHangulSyllable(r rune) bool {
	return r >= 0xAC00 && r <= 0xD7A3
}

func isLatinVowel(r rune) bool {
	switch unicode.ToLower(r) {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	}
	return false
}
