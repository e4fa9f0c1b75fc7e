package audio

import "encoding/binary"

const (
	// SampleRate of the speech gateway output.
	SampleRate = 24000
	// Channels of the speech gateway output.
	Channels = 1
)

// Buffer holds decoded, normalised samples ready for playback.
type Buffer struct {
	Samples    []float32 `json:"-"`
	SampleRate int       `json:"sampleRate"`
	Channels   int       `json:"channels"`
}

// Duration returns the clip length in milliseconds.
func (b Buffer) Duration() int64 {
	if b.SampleRate == 0 || b.Channels == 0 {
		return 0
	}
	frames := int64(len(b.Samples) / b.Channels)
	return frames * 1000 / int64(b.SampleRate)
}

// DecodePCM16 converts raw 16-bit little-endian mono PCM into samples in [-1, 1).
// A trailing odd byte is ignored.
func DecodePCM16(raw []byte) Buffer {
	frames := len(raw) / 2
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		v := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		samples[i] = float32(v) / 32768.0
	}
	return Buffer{Samples: samples, SampleRate: SampleRate, Channels: Channels}
}
