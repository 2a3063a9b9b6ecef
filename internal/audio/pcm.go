package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// Buffer is decoded multi-channel audio, one normalized float32 slice
// per channel, samples in [-1, 1].
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// Frames returns the per-channel sample count.
func (b *Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate == 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// DecodeBase64 decodes a base64 payload of interleaved little-endian
// signed 16-bit PCM into a Buffer. A trailing partial frame is dropped.
// The only failure mode is malformed base64.
func DecodeBase64(payload string, sampleRate, channelCount int) (*Buffer, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode pcm chunk: %w", err)
	}

	samples := len(raw) / 2
	frames := samples / channelCount

	buf := &Buffer{
		SampleRate: sampleRate,
		Channels:   make([][]float32, channelCount),
	}
	for ch := range buf.Channels {
		buf.Channels[ch] = make([]float32, frames)
	}

	for i := 0; i < frames; i++ {
		for ch := 0; ch < channelCount; ch++ {
			off := (i*channelCount + ch) * 2
			s := int16(binary.LittleEndian.Uint16(raw[off : off+2]))
			v := float32(s) / 32768.0
			// -32768/32768 == -1 exactly, but clamp anyway so later
			// gain math never sees an out-of-range sample.
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			buf.Channels[ch][i] = v
		}
	}
	return buf, nil
}
