package audio

import (
	"bytes"
	"encoding/binary"
	"math"
)

// EncodeWAV 将采样重新打包为 16-bit PCM 的 WAV 容器，供浏览器直接播放。
func EncodeWAV(b Buffer) []byte {
	channels := b.Channels
	if channels <= 0 {
		channels = Channels
	}
	rate := b.SampleRate
	if rate <= 0 {
		rate = SampleRate
	}

	const bitsPerSample = 16
	dataSize := len(b.Samples) * 2
	blockAlign := channels * bitsPerSample / 8

	buf := bytes.NewBuffer(make([]byte, 0, 44+dataSize))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(rate))
	binary.Write(buf, binary.LittleEndian, uint32(rate*blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	for _, s := range b.Samples {
		binary.Write(buf, binary.LittleEndian, toInt16(s))
	}

	return buf.Bytes()
}

func toInt16(s float32) int16 {
	v := math.Round(float64(s) * 32768.0)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
