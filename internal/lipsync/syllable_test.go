package lipsync

import "testing"

func TestCountSyllables(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"안녕하세요", 5},
		{"오늘의 운세", 5},
		{"こんにちは", 5},
		{"今日", 2},
		{"hello", 2},
		{"hello world", 3},
		{"queue", 1},
		{"beautiful", 3},
		{"hmm", 1},
		{"a", 1},
		{"3 cats", 2},
		{"2026", 4},
		{"hello, 세계!", 4},
		{"don't", 2},
	}

	for _, tt := range tests {
		if got := CountSyllables(tt.text); got != tt.want {
			t.Errorf("CountSyllables(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
