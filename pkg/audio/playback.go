package audio

import (
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

const (
	// PlaybackSampleRate is the mono float32 playback rate.
	PlaybackSampleRate = 48000
	// PlaybackFIFOCapacity is the hard cap on buffered frames; beyond it
	// the oldest frame is dropped.
	PlaybackFIFOCapacity = 50
	// underrunFadeSamples bounds the fade written when the FIFO empties
	// mid-callback.
	underrunFadeSamples = 16
	// enqueueFadeSamples bounds the end-of-sentence fade shaped into each
	// enqueued vector.
	enqueueFadeSamples = 96
)

// Player is a FIFO-buffered float32 playback engine. The device callback
// runs on an audio-subsystem OS thread and must never block; all state
// changes go through a short critical section guarded by mu.
type Player struct {
	mu           sync.Mutex
	device       *malgo.Device
	fifo         [][]float32
	lastSample   float32
	running      bool
	totalSamples uint64
	logger       Logger
}

func NewPlayer(logger Logger) *Player {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Player{logger: logger}
}

// Open starts playback on the device at the given index, or the system
// default when index is nil.
func (p *Player) Open(mctx *malgo.AllocatedContext, deviceIndex *int) error {
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = 1
	cfg.SampleRate = PlaybackSampleRate
	cfg.PeriodSizeInFrames = PlaybackSampleRate / 100 // 10ms block

	if deviceIndex != nil {
		infos, err := mctx.Devices(malgo.Playback)
		if err != nil {
			return fmt.Errorf("enumerate playback devices: %w", err)
		}
		if *deviceIndex < 0 || *deviceIndex >= len(infos) {
			return fmt.Errorf("playback device index %d out of range (%d devices)", *deviceIndex, len(infos))
		}
		cfg.Playback.DeviceID = infos[*deviceIndex].ID.Pointer()
	}

	device, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{Data: p.onSamples})
	if err != nil {
		return fmt.Errorf("init playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		return fmt.Errorf("start playback device: %w", err)
	}

	p.mu.Lock()
	p.device = device
	p.running = true
	p.mu.Unlock()
	return nil
}

// Close stops the device and clears the FIFO.
func (p *Player) Close() {
	p.mu.Lock()
	device := p.device
	p.device = nil
	p.running = false
	p.fifo = nil
	p.lastSample = 0
	p.mu.Unlock()

	if device != nil {
		device.Uninit()
	}
}

// Enqueue appends one TTS sentence's worth of float32 PCM to the FIFO,
// shaping the trailing samples with a cosine fade to avoid an
// end-of-sentence click. The oldest frame is dropped if the
// FIFO is at capacity.
func (p *Player) Enqueue(samples []float32) {
	if len(samples) == 0 {
		return
	}
	frame := make([]float32, len(samples))
	copy(frame, samples)
	fadeOutCosine(frame, enqueueFadeSamples)

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.fifo) >= PlaybackFIFOCapacity {
		p.fifo = p.fifo[1:]
		p.logger.Warn("playback FIFO full, dropping oldest frame", "capacity", PlaybackFIFOCapacity)
	}
	p.fifo = append(p.fifo, frame)
	p.totalSamples += uint64(len(frame))
}

// Depth reports the current FIFO occupancy, for the health monitor.
func (p *Player) Depth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fifo)
}

// TotalSamples reports the cumulative sample count ever enqueued, for the
// health monitor.
func (p *Player) TotalSamples() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalSamples
}

func fadeOutCosine(samples []float32, maxFade int) {
	n := maxFade
	if n > len(samples) {
		n = len(samples)
	}
	if n == 0 {
		return
	}
	start := len(samples) - n
	for i := 0; i < n; i++ {
		t := float64(i+1) / float64(n) * (math.Pi / 2)
		samples[start+i] *= float32(math.Cos(t))
	}
}

func (p *Player) onSamples(pOutput []byte, _ []byte, frameCount uint32) {
	need := int(frameCount)
	out := make([]float32, need)

	p.mu.Lock()
	filled := 0
	for filled < need && len(p.fifo) > 0 {
		chunk := p.fifo[0]
		take := need - filled
		if take > len(chunk) {
			take = len(chunk)
		}
		copy(out[filled:filled+take], chunk[:take])
		if take > 0 {
			p.lastSample = chunk[take-1]
		}
		if take < len(chunk) {
			p.fifo[0] = chunk[take:]
		} else {
			p.fifo = p.fifo[1:]
		}
		filled += take
	}

	if filled > 0 && filled < need {
		// FIFO ran dry mid-callback: fade the tail from the last played
		// sample toward zero rather than snapping to silence.
		fade := underrunFadeSamples
		if fade > need-filled {
			fade = need - filled
		}
		last := p.lastSample
		for i := 0; i < fade; i++ {
			t := float64(i+1) / float64(fade)
			out[filled+i] = last * float32(math.Cos(t*math.Pi/2))
		}
		p.lastSample = 0
	} else if filled == 0 {
		// FIFO was already empty at callback start: pure silence, no
		// extrapolation.
		p.lastSample = 0
	}
	p.mu.Unlock()

	writeFloat32LE(pOutput, out)
}

func writeFloat32LE(dst []byte, samples []float32) {
	for i, s := range samples {
		bits := math.Float32bits(s)
		dst[i*4+0] = byte(bits)
		dst[i*4+1] = byte(bits >> 8)
		dst[i*4+2] = byte(bits >> 16)
		dst[i*4+3] = byte(bits >> 24)
	}
}
