package audio

import (
	"bytes"
	"fmt"
	"io"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// decodeMP3 decodes an MPEG Layer III stream. go-mp3 always emits
// interleaved stereo 16-bit little-endian PCM regardless of the source
// channel count.
func decodeMP3(data []byte) (*pcmClip, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptAudio, err)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptAudio, err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("%w: decoder produced no samples", ErrCorruptAudio)
	}

	return pcm16ToClip(pcm, dec.SampleRate(), 2)
}
