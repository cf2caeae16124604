// Package supervisor drives the reconnect loop that keeps a translation
// session open: it opens a session, waits for it to end, and decides how
// long to wait before trying again based on a simple exponential backoff
// with a cooldown after repeated failures.
package supervisor

import (
	"context"
	"time"

	"github.com/lokutor-ai/lokutor-s2s/pkg/translatorlog"
)

// These are package vars rather than consts solely so tests can shrink the
// timings; production callers never touch them.
var (
	initialBackoff   = 1 * time.Second
	maxBackoff       = 16 * time.Second
	pauseDuration    = 60 * time.Second
	failureThreshold = 5
)

// SessionHandle is the subset of *session.Session the watchdog depends on,
// defined locally to avoid an import cycle and to keep the watchdog
// testable against a fake.
type SessionHandle interface {
	Done() <-chan struct{}
	Err() error
	Close()
}

// OpenFunc opens one session attempt.
type OpenFunc func(ctx context.Context) (SessionHandle, error)

// ReconnectRecorder is the health-monitor surface the watchdog reports
// successful reconnects to.
type ReconnectRecorder interface {
	RecordReconnect()
}

// Watchdog owns the reconnect backoff state for one supervised session
// slot. It is not safe for concurrent use of Run from multiple goroutines;
// one Watchdog drives one session lifecycle at a time.
type Watchdog struct {
	open   OpenFunc
	logger translatorlog.Logger
	health ReconnectRecorder

	backoff  time.Duration
	failures int
}

// New builds a Watchdog. open is called once per reconnect attempt; health
// may be nil.
func New(open OpenFunc, logger translatorlog.Logger, health ReconnectRecorder) *Watchdog {
	if logger == nil {
		logger = translatorlog.NoOpLogger{}
	}
	return &Watchdog{
		open:    open,
		logger:  logger,
		health:  health,
		backoff: initialBackoff,
	}
}

// Run loops until ctx is done: sleep the current backoff, open a session,
// wait for it to end, then adjust the backoff based on whether it ended
// cleanly. A run of failureThreshold consecutive failures triggers a
// pauseDuration cooldown before the backoff resets and retries resume.
func (w *Watchdog) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if w.failures >= failureThreshold {
			w.logger.Warn("repeated session failures, pausing before retrying",
				"failures", w.failures, "pause", pauseDuration)
			if !w.sleep(ctx, pauseDuration) {
				return
			}
			w.failures = 0
			w.backoff = initialBackoff
			continue
		}

		if !w.sleep(ctx, w.backoff) {
			return
		}

		sess, err := w.open(ctx)
		if err != nil {
			w.onFailure(err)
			continue
		}

		if w.health != nil {
			w.health.RecordReconnect()
		}
		w.onSuccess()

		select {
		case <-sess.Done():
			endErr := sess.Err()
			sess.Close()
			if endErr != nil {
				w.onFailure(endErr)
			} else {
				w.onSuccess()
			}
		case <-ctx.Done():
			sess.Close()
			return
		}
	}
}

// sleep waits for d or ctx cancellation, reporting whether it completed
// normally (false means the caller should return immediately).
func (w *Watchdog) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *Watchdog) onSuccess() {
	w.backoff = initialBackoff
	w.failures = 0
}

func (w *Watchdog) onFailure(err error) {
	w.failures++
	w.backoff *= 2
	if w.backoff > maxBackoff {
		w.backoff = maxBackoff
	}
	w.logger.Warn("session ended in failure, backing off",
		"error", err, "backoff", w.backoff, "consecutiveFailures", w.failures)
}
