package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// decodeWAV parses a RIFF/WAVE container and mixes the PCM payload down to
// mono float64 samples. Only integer PCM at 8 or 16 bits is supported, which
// covers every registered provider's WAV output.
func decodeWAV(data []byte) (*pcmClip, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("%w: short RIFF header", ErrCorruptAudio)
	}
	if !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return nil, fmt.Errorf("%w: not a RIFF/WAVE stream", ErrCorruptAudio)
	}

	var (
		sampleRate    int
		channels      int
		bitsPerSample int
		audioFormat   int
		pcm           []byte
		haveFmt       bool
	)

	// Walk the chunk list. Chunks are word-aligned.
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if size < 0 || body+size > len(data) {
			return nil, fmt.Errorf("%w: chunk %q overruns buffer", ErrCorruptAudio, id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: fmt chunk too small", ErrCorruptAudio)
			}
			audioFormat = int(binary.LittleEndian.Uint16(data[body : body+2]))
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			pcm = data[body : body+size]
		}

		offset = body + size
		if size%2 == 1 {
			offset++ // padding byte
		}
	}

	if !haveFmt {
		return nil, fmt.Errorf("%w: missing fmt chunk", ErrCorruptAudio)
	}
	if pcm == nil {
		return nil, fmt.Errorf("%w: missing data chunk", ErrCorruptAudio)
	}
	if audioFormat != 1 {
		return nil, fmt.Errorf("%w: compression code %d", ErrUnsupportedFormat, audioFormat)
	}
	if channels < 1 || sampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid fmt parameters", ErrCorruptAudio)
	}

	switch bitsPerSample {
	case 16:
		return pcm16ToClip(pcm, sampleRate, channels)
	case 8:
		return pcm8ToClip(pcm, sampleRate, channels), nil
	default:
		return nil, fmt.Errorf("%w: %d-bit PCM", ErrUnsupportedFormat, bitsPerSample)
	}
}

// decodePCM16 wraps headerless little-endian signed 16-bit PCM.
func decodePCM16(data []byte, sampleRate, channels int) (*pcmClip, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: raw PCM without a declared sample rate", ErrCorruptAudio)
	}
	if channels < 1 {
		channels = 1
	}
	return pcm16ToClip(data, sampleRate, channels)
}

// pcm16ToClip converts interleaved 16-bit PCM to mono float64 samples.
func pcm16ToClip(pcm []byte, sampleRate, channels int) (*pcmClip, error) {
	bytesPerFrame := 2 * channels
	if len(pcm)%bytesPerFrame != 0 {
		return nil, fmt.Errorf("%w: PCM length %d not aligned to %d-byte frames",
			ErrCorruptAudio, len(pcm), bytesPerFrame)
	}

	frames := len(pcm) / bytesPerFrame
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var acc float64
		for c := 0; c < channels; c++ {
			off := i*bytesPerFrame + c*2
			s := int16(binary.LittleEndian.Uint16(pcm[off : off+2]))
			acc += float64(s) / 32768.0
		}
		samples[i] = acc / float64(channels)
	}

	return &pcmClip{samples: samples, sampleRate: sampleRate}, nil
}

// pcm8ToClip converts unsigned 8-bit PCM to mono float64 samples.
func pcm8ToClip(pcm []byte, sampleRate, channels int) *pcmClip {
	frames := len(pcm) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var acc float64
		for c := 0; c < channels; c++ {
			acc += (float64(pcm[i*channels+c]) - 128.0) / 128.0
		}
		samples[i] = acc / float64(channels)
	}
	return &pcmClip{samples: samples, sampleRate: sampleRate}
}
