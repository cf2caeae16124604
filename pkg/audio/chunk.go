// Package audio implements the capture and playback audio pipelines:
// fixed-size 16kHz mono PCM16 capture chunks delivered to a sink, and a
// FIFO-buffered 48kHz mono float32 playback engine.
package audio

import "time"

const (
	// CaptureSampleRate is the mono PCM16 capture rate.
	CaptureSampleRate = 16000
	// ChunkMs is the nominal duration of one captured chunk.
	ChunkMs = 80
	// ChunkSamples is the fixed capture block size: 80ms at 16kHz.
	ChunkSamples = CaptureSampleRate * ChunkMs / 1000
	// ChunkBytes is the wire size of one captured chunk (16-bit mono).
	ChunkBytes = ChunkSamples * 2
)

// ChunkDuration is the nominal duration represented by one captured chunk.
const ChunkDuration = ChunkMs * time.Millisecond

// Chunk is one 80ms slice of captured mono 16kHz PCM16 audio.
type Chunk struct {
	PCM        []byte
	CapturedAt time.Time
}

// SilentChunk returns a zero-filled chunk of the standard capture size,
// used by the paced sender to pad the wire timeline across pacing gaps.
func SilentChunk() []byte {
	return make([]byte, ChunkBytes)
}
