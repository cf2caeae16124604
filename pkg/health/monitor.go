// Package health tracks process and pipeline resource usage for the
// translation engine: memory, thread count, queue/buffer depths, latency
// trends, and a capped recent-error log, sampled on a fixed interval and
// exposed through a single locked Snapshot.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/lokutor-ai/lokutor-s2s/pkg/translatorlog"
)

const (
	sampleInterval     = 5 * time.Second
	latencyWindowSize  = 100
	errorRingCapacity  = 10
	errorMessageMaxLen = 200

	memoryPercentThreshold = 80.0
	threadCountThreshold   = 50
	audioBufferThreshold   = 80
	sendQueueThreshold     = 400
	errorCountThreshold    = 10
	reconnectThreshold     = 5
)

// recordedError is one entry of the capped recent-error ring.
type recordedError struct {
	At      time.Time
	Message string
}

// Snapshot is an immutable copy of a Monitor's state at one instant,
// returned by Monitor.Snapshot for callers (status printers, dashboards)
// that must not hold the monitor's lock.
type Snapshot struct {
	MemoryBytes        uint64
	MemoryPercent      float64
	Threads            int
	UptimeSeconds      float64
	AudioBufferDepth   int
	SendQueueDepth     int
	PlaybackDepth      int
	SentenceCount      int
	ReconnectCount     int
	ErrorCount         int
	MeanAudioLatencyMs float64
	MeanPingLatencyMs  float64
	ActiveTaskCount    int
	SessionState       string
	RecentErrors       []recordedError
}

// Monitor is the mutex-protected aggregate described above. All mutating
// methods are safe to call concurrently from the capture, session, and
// supervisor goroutines that feed it.
type Monitor struct {
	logger translatorlog.Logger

	mu            sync.Mutex
	startedAt     time.Time
	memoryBytes   uint64
	memoryPercent float64
	threads       int

	audioBufferDepth int
	sendQueueDepth   int
	playbackDepth    int

	sentenceCount  int
	reconnectCount int
	errorCount     int

	activeTasks  int
	sessionState string

	audioLatency *rollingMean
	pingLatency  *rollingMean

	errors []recordedError

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewMonitor constructs a Monitor. Call Start to begin the 5-second sampler.
func NewMonitor(logger translatorlog.Logger) *Monitor {
	if logger == nil {
		logger = translatorlog.NoOpLogger{}
	}
	return &Monitor{
		logger:       logger,
		startedAt:    time.Now(),
		audioLatency: newRollingMean(latencyWindowSize),
		pingLatency:  newRollingMean(latencyWindowSize),
		stopCh:       make(chan struct{}),
	}
}

// Start runs the sampler loop until ctx is done or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	go m.sampleLoop(ctx)
}

// Stop ends the sampler loop. Safe to call multiple times.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Monitor) sampleLoop(ctx context.Context) {
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()

	m.sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

// sample refreshes memory/thread/uptime and logs threshold warnings. A
// failure to read /proc (e.g. non-Linux) just leaves the prior values in
// place; it is not treated as an error.
func (m *Monitor) sample() {
	stats, err := readProcessStats()
	if err != nil {
		return
	}
	total, err := totalSystemMemoryBytes()
	if err != nil || total == 0 {
		total = 0
	}

	m.mu.Lock()
	m.memoryBytes = stats.rssBytes
	m.threads = stats.threads
	if total > 0 {
		m.memoryPercent = float64(stats.rssBytes) / float64(total) * 100
	}
	m.checkThresholdsLocked()
	m.mu.Unlock()
}

// checkThresholdsLocked must be called with mu held. It logs (does not
// fail) whenever a resource-pressure threshold is crossed.
func (m *Monitor) checkThresholdsLocked() {
	if m.memoryPercent > memoryPercentThreshold {
		m.logger.Warn("memory usage above threshold", "percent", m.memoryPercent)
	}
	if m.threads > threadCountThreshold {
		m.logger.Warn("thread count above threshold", "threads", m.threads)
	}
	if m.audioBufferDepth > audioBufferThreshold {
		m.logger.Warn("audio buffer depth above threshold", "depth", m.audioBufferDepth)
	}
	if m.sendQueueDepth > sendQueueThreshold {
		m.logger.Warn("send queue depth above threshold", "depth", m.sendQueueDepth)
	}
	if m.errorCount > errorCountThreshold {
		m.logger.Warn("error count above threshold", "count", m.errorCount)
	}
	if m.reconnectCount > reconnectThreshold {
		m.logger.Warn("reconnect count above threshold", "count", m.reconnectCount)
	}
}

// UpdateSessionState records the session's current lifecycle tag verbatim,
// surfaced through Snapshot.SessionState.
func (m *Monitor) UpdateSessionState(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionState = state
}

// UpdateActiveTasks records the session's live background-goroutine count
// (sender, receiver, heartbeat), surfaced through Snapshot.ActiveTaskCount.
func (m *Monitor) UpdateActiveTasks(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeTasks = count
}

// UpdateSendQueueDepth records the paced sender's current queue depth.
func (m *Monitor) UpdateSendQueueDepth(depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendQueueDepth = depth
	m.checkThresholdsLocked()
}

// UpdatePlaybackDepth records the playback FIFO's current depth.
func (m *Monitor) UpdatePlaybackDepth(depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playbackDepth = depth
}

// UpdateAudioBufferDepth records the capture pre-buffer's current depth.
func (m *Monitor) UpdateAudioBufferDepth(depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audioBufferDepth = depth
	m.checkThresholdsLocked()
}

// UpdateLatency feeds one heartbeat round-trip sample into the rolling
// ping-latency mean.
func (m *Monitor) UpdateLatency(pingMs float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingLatency.add(pingMs)
}

// UpdateAudioLatency feeds one capture-to-send latency sample into the
// rolling audio-latency mean.
func (m *Monitor) UpdateAudioLatency(audioMs float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audioLatency.add(audioMs)
}

// RecordError appends to the capped recent-error ring and bumps the error
// counter.
func (m *Monitor) RecordError(message string) {
	if len(message) > errorMessageMaxLen {
		message = message[:errorMessageMaxLen]
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount++
	m.errors = append(m.errors, recordedError{At: time.Now(), Message: message})
	if len(m.errors) > errorRingCapacity {
		m.errors = m.errors[len(m.errors)-errorRingCapacity:]
	}
	m.checkThresholdsLocked()
}

// RecordSentence bumps the count of TTS sentences played back.
func (m *Monitor) RecordSentence() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sentenceCount++
}

// RecordReconnect bumps the count of supervisor-driven reconnects.
func (m *Monitor) RecordReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnectCount++
	m.checkThresholdsLocked()
}

// Snapshot clones the monitor's state under lock.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	errs := make([]recordedError, len(m.errors))
	copy(errs, m.errors)

	return Snapshot{
		MemoryBytes:        m.memoryBytes,
		MemoryPercent:      m.memoryPercent,
		Threads:            m.threads,
		UptimeSeconds:      time.Since(m.startedAt).Seconds(),
		AudioBufferDepth:   m.audioBufferDepth,
		SendQueueDepth:     m.sendQueueDepth,
		PlaybackDepth:      m.playbackDepth,
		SentenceCount:      m.sentenceCount,
		ReconnectCount:     m.reconnectCount,
		ErrorCount:         m.errorCount,
		MeanAudioLatencyMs: m.audioLatency.mean(),
		MeanPingLatencyMs:  m.pingLatency.mean(),
		ActiveTaskCount:    m.activeTasks,
		SessionState:       m.sessionState,
		RecentErrors:       errs,
	}
}

// ResetCounters zeroes the reconnect/error/sentence counters and clears the
// error ring, without touching the rolling latency means or live depths.
func (m *Monitor) ResetCounters() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnectCount = 0
	m.errorCount = 0
	m.sentenceCount = 0
	m.errors = nil
}
