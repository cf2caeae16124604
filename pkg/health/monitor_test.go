package health

import (
	"strings"
	"testing"
)

func TestRecordErrorTruncatesAndCapsRing(t *testing.T) {
	m := NewMonitor(nil)

	long := strings.Repeat("x", errorMessageMaxLen+50)
	m.RecordError(long)

	snap := m.Snapshot()
	if len(snap.RecentErrors[0].Message) != errorMessageMaxLen {
		t.Fatalf("expected message truncated to %d chars, got %d", errorMessageMaxLen, len(snap.RecentErrors[0].Message))
	}

	for i := 0; i < errorRingCapacity+5; i++ {
		m.RecordError("err")
	}
	snap = m.Snapshot()
	if len(snap.RecentErrors) != errorRingCapacity {
		t.Fatalf("expected ring capped at %d, got %d", errorRingCapacity, len(snap.RecentErrors))
	}
	if snap.ErrorCount != errorRingCapacity+6 {
		t.Fatalf("expected error count to keep counting past the ring cap, got %d", snap.ErrorCount)
	}
}

func TestResetCountersClearsCountsAndRingButNotLatency(t *testing.T) {
	m := NewMonitor(nil)
	m.RecordError("boom")
	m.RecordSentence()
	m.RecordReconnect()
	m.UpdateLatency(42)

	m.ResetCounters()
	snap := m.Snapshot()

	if snap.ErrorCount != 0 || snap.SentenceCount != 0 || snap.ReconnectCount != 0 {
		t.Fatalf("expected counters reset, got %+v", snap)
	}
	if len(snap.RecentErrors) != 0 {
		t.Fatalf("expected error ring cleared, got %v", snap.RecentErrors)
	}
	if snap.MeanPingLatencyMs != 42 {
		t.Fatalf("expected latency mean to survive reset, got %v", snap.MeanPingLatencyMs)
	}
}

func TestSnapshotIsIndependentOfLiveState(t *testing.T) {
	m := NewMonitor(nil)
	m.RecordSentence()

	snap := m.Snapshot()
	m.RecordSentence()

	if snap.SentenceCount != 1 {
		t.Fatalf("expected snapshot to be frozen at 1, got %d", snap.SentenceCount)
	}
}
