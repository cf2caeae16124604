package audio

import (
	"math"
	"sync"
	"testing"
)

type collectingSink struct {
	chunks [][]byte
}

func (s *collectingSink) PushChunk(pcm []byte) {
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	s.chunks = append(s.chunks, cp)
}

func TestPrebufferDrainsInCaptureOrder(t *testing.T) {
	pb := NewPrebuffer()
	for i := 0; i < 5; i++ {
		pb.Push([]byte{byte(i)})
	}

	got := pb.Drain()
	if len(got) != 5 {
		t.Fatalf("expected 5 chunks, got %d", len(got))
	}
	for i, chunk := range got {
		if chunk[0] != byte(i) {
			t.Fatalf("chunk %d out of order: got %v", i, chunk)
		}
	}

	if pb.Len() != 0 {
		t.Fatalf("expected drained buffer to be empty, got len %d", pb.Len())
	}
}

func TestPrebufferDropsOldestOnOverflow(t *testing.T) {
	pb := NewPrebuffer()
	for i := 0; i < PrebufferCapacity+3; i++ {
		pb.Push([]byte{byte(i)})
	}

	got := pb.Drain()
	if len(got) != PrebufferCapacity {
		t.Fatalf("expected capped at %d chunks, got %d", PrebufferCapacity, len(got))
	}
	if got[0][0] != byte(3) {
		t.Fatalf("expected oldest 3 chunks dropped, first remaining chunk = %v", got[0])
	}
}

// TestSetSinkDrainIsAtomicWithSinkAssignment guards against a capture
// callback racing SetSink: whichever of "the pending capture" and "the
// pre-buffer drain" runs first under the lock, the sink must never see the
// newly captured chunk before the drained backlog.
func TestSetSinkDrainIsAtomicWithSinkAssignment(t *testing.T) {
	for trial := 0; trial < 200; trial++ {
		c := NewCapturer(nil, 0)
		for i := 0; i < 5; i++ {
			c.prebuffer.Push([]byte{byte(i)})
		}

		sink := &collectingSink{}

		var start sync.WaitGroup
		start.Add(2)
		var run sync.WaitGroup
		run.Add(2)

		go func() {
			start.Done()
			start.Wait()
			defer run.Done()
			c.onSamples(nil, float32LEBytes([]float32{0.25}), 1)
		}()
		go func() {
			start.Done()
			start.Wait()
			defer run.Done()
			c.SetSink(sink)
		}()
		run.Wait()

		// The five pre-buffered chunks must always precede whatever the
		// racing onSamples call contributed, regardless of which goroutine
		// the lock favored.
		if len(sink.chunks) < 5 {
			t.Fatalf("trial %d: expected at least the 5 pre-buffered chunks, got %d", trial, len(sink.chunks))
		}
		for i := 0; i < 5; i++ {
			if sink.chunks[i][0] != byte(i) {
				t.Fatalf("trial %d: pre-buffered chunk %d out of order: got %v", trial, i, sink.chunks[i])
			}
		}
	}
}

func TestFloat32BytesToPCM16Clips(t *testing.T) {
	raw := float32LEBytes([]float32{0, 0.5, -0.5, 1.5, -1.5})
	pcm := float32BytesToPCM16(raw)
	if len(pcm) != 10 {
		t.Fatalf("expected 10 bytes (5 samples), got %d", len(pcm))
	}

	samples := pcm16Samples(pcm)
	want := []int16{0, 16383, -16383, 32767, -32767}
	for i, w := range want {
		if samples[i] != w {
			t.Errorf("sample %d: got %d, want %d", i, samples[i], w)
		}
	}
}

func float32LEBytes(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		bits := math.Float32bits(s)
		out[i*4+0] = byte(bits)
		out[i*4+1] = byte(bits >> 8)
		out[i*4+2] = byte(bits >> 16)
		out[i*4+3] = byte(bits >> 24)
	}
	return out
}

func pcm16Samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8)
	}
	return out
}
