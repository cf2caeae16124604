package audio

import (
	"bytes"
	"encoding/binary"
)


// wavBitsPerSample is fixed at 16 because every WAV this package produces
// wraps Capturer's PCM16 output (see float32BytesToPCM16); there is no
// float32 or 8-bit export path.
const wavBitsPerSample = 16

// NewWavBuffer wraps raw 16-bit PCM in a minimal WAV container, assuming a
// single channel — the shape Capturer.ExportRecent feeds it for debug-only
// captures of the mono capture pipeline.
func NewWavBuffer(pcm []byte, sampleRate int) []byte {
	return newWavBuffer(pcm, sampleRate, 1)
}

func newWavBuffer(pcm []byte, sampleRate, channels int) []byte {
	blockAlign := channels * wavBitsPerSample / 8
	byteRate := sampleRate * blockAlign

	buf := new(bytes.Buffer)

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))                 // fmt chunk size
	binary.Write(buf, binary.LittleEndian, uint16(1))                  // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(wavBitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
