package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// PrebufferCapacity bounds how much captured audio is retained before a
// session becomes ready to receive it (~2.4s at 80ms/chunk).
const PrebufferCapacity = 30

// levelReportEvery controls how often the audio-level summary is logged.
const levelReportEvery = 50

// Sink receives captured chunks once a live session is wired up.
type Sink interface {
	PushChunk(pcm []byte)
}

// Prebuffer is a capacity-bounded FIFO ring retaining captured chunks while
// no session is ready to accept them. Overflow drops the oldest entry.
type Prebuffer struct {
	mu     sync.Mutex
	chunks [][]byte
}

func NewPrebuffer() *Prebuffer { return &Prebuffer{} }

func (p *Prebuffer) Push(pcm []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.chunks) >= PrebufferCapacity {
		p.chunks = p.chunks[1:]
	}
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	p.chunks = append(p.chunks, cp)
}

// Drain atomically empties the buffer, returning chunks in capture order.
func (p *Prebuffer) Drain() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.chunks
	p.chunks = nil
	return out
}

func (p *Prebuffer) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.chunks)
}

// Logger is the minimal logging seam this package depends on (matches
// pkg/translatorlog.Logger's shape without importing it, keeping pkg/audio
// free of a dependency on the rest of the module's package graph).
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Capturer opens a microphone input device at 16kHz mono float32 and emits
// fixed 80ms PCM16 chunks to a Sink, pre-buffering until the sink is wired
// to a live session.
type Capturer struct {
	mu        sync.Mutex
	device    *malgo.Device
	sink      Sink
	prebuffer *Prebuffer
	logger    Logger

	chunkCount int
	levelSum   float64

	recentMu  sync.Mutex
	recent    []byte
	recentCap int
}

// NewCapturer builds a Capturer. recentSeconds > 0 retains that much
// captured audio for diagnostics (see Capturer.ExportRecent); 0 disables
// retention.
func NewCapturer(logger Logger, recentSeconds int) *Capturer {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Capturer{
		prebuffer: NewPrebuffer(),
		logger:    logger,
		recentCap: recentSeconds * CaptureSampleRate * 2,
	}
}

// SetSink wires the capturer to a live session's send path, draining the
// pre-buffer first so leading audio survives session setup. The set and
// the drain happen under the same lock onSamples uses to push or
// pre-buffer a captured chunk, so a concurrent capture callback can never
// observe the new sink before the drained backlog has been forwarded to
// it: either it runs entirely before this call (its chunk lands in the
// pre-buffer and is drained in order) or entirely after (its chunk goes
// straight to sink once the drain is already done).
func (c *Capturer) SetSink(sink Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sink = sink
	for _, pcm := range c.prebuffer.Drain() {
		sink.PushChunk(pcm)
	}
}

// ClearSink disconnects the sink; subsequent chunks accumulate in the
// pre-buffer again.
func (c *Capturer) ClearSink() {
	c.mu.Lock()
	c.sink = nil
	c.mu.Unlock()
}

// BufferedChunks reports how many chunks are currently held in the
// pre-buffer, for health polling. It is always zero while a sink is wired.
func (c *Capturer) BufferedChunks() int {
	return c.prebuffer.Len()
}

// Open starts capture on the device at the given index, or the system
// default when index is nil.
func (c *Capturer) Open(mctx *malgo.AllocatedContext, deviceIndex *int) error {
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1
	cfg.SampleRate = CaptureSampleRate
	cfg.PeriodSizeInFrames = ChunkSamples

	if deviceIndex != nil {
		infos, err := mctx.Devices(malgo.Capture)
		if err != nil {
			return fmt.Errorf("enumerate capture devices: %w", err)
		}
		if *deviceIndex < 0 || *deviceIndex >= len(infos) {
			return fmt.Errorf("capture device index %d out of range (%d devices)", *deviceIndex, len(infos))
		}
		cfg.Capture.DeviceID = infos[*deviceIndex].ID.Pointer()
	}

	device, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{Data: c.onSamples})
	if err != nil {
		return fmt.Errorf("init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		return fmt.Errorf("start capture device: %w", err)
	}

	c.mu.Lock()
	c.device = device
	c.mu.Unlock()
	return nil
}

// Close stops and releases the capture device. Safe to call more than
// once.
func (c *Capturer) Close() {
	c.mu.Lock()
	device := c.device
	c.device = nil
	c.mu.Unlock()

	if device != nil {
		device.Uninit()
	}
}

// ExportRecent returns a WAV-wrapped copy of the most recently retained
// captured audio, or nil if retention is disabled or nothing has been
// captured yet. Debug-only; never on the capture hot path.
func (c *Capturer) ExportRecent() []byte {
	c.recentMu.Lock()
	defer c.recentMu.Unlock()
	if len(c.recent) == 0 {
		return nil
	}
	pcm := make([]byte, len(c.recent))
	copy(pcm, c.recent)
	return NewWavBuffer(pcm, CaptureSampleRate)
}

func (c *Capturer) onSamples(_ []byte, pInput []byte, _ uint32) {
	pcm := float32BytesToPCM16(pInput)

	c.mu.Lock()
	if c.sink != nil {
		c.sink.PushChunk(pcm)
	} else {
		c.prebuffer.Push(pcm)
	}
	c.mu.Unlock()

	c.retain(pcm)
	c.logLevel(pcm)
}

func (c *Capturer) retain(pcm []byte) {
	if c.recentCap <= 0 {
		return
	}
	c.recentMu.Lock()
	defer c.recentMu.Unlock()
	c.recent = append(c.recent, pcm...)
	if over := len(c.recent) - c.recentCap; over > 0 {
		c.recent = c.recent[over:]
	}
}

func (c *Capturer) logLevel(pcm []byte) {
	level := rms16(pcm)

	c.mu.Lock()
	c.chunkCount++
	c.levelSum += level
	count := c.chunkCount
	var avg float64
	report := count >= levelReportEvery
	if report {
		avg = c.levelSum / float64(count)
		c.chunkCount = 0
		c.levelSum = 0
	}
	c.mu.Unlock()

	if report {
		c.logger.Info("audio input level", "avgRMS", fmt.Sprintf("%.4f", avg))
	}
}

func float32BytesToPCM16(raw []byte) []byte {
	n := len(raw) / 4
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		f := math.Float32frombits(bits)
		if f > 1.0 {
			f = 1.0
		} else if f < -1.0 {
			f = -1.0
		}
		s := int16(f * 32767)
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(s))
	}
	return out
}

func rms16(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		f := float64(s) / 32768.0
		sum += f * f
	}
	return math.Sqrt(sum / float64(n))
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
