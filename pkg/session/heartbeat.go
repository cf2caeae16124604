package session

import (
	"context"
	"errors"
	"time"
)

const (
	heartbeatInterval    = 30 * time.Second
	heartbeatPongTimeout = 10 * time.Second
)

// runHeartbeat pings the connection on a fixed interval and feeds the
// round-trip time into the health monitor. A pong timeout is logged and
// the session is kept alive; any other ping failure means the connection
// is gone and the goroutine exits (the receiver's read loop will observe
// the same failure and end the session).
func (s *Session) runHeartbeat(ctx context.Context) {
	defer s.wg.Done()
	defer s.taskExited()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.ping(ctx) {
				return
			}
		}
	}
}

// ping sends one ping and reports whether the heartbeat loop should keep
// running.
func (s *Session) ping(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, heartbeatPongTimeout)
	defer cancel()

	start := time.Now()
	err := s.conn.Ping(pingCtx)
	if err == nil {
		if s.health != nil {
			s.health.UpdateLatency(float64(time.Since(start).Milliseconds()))
		}
		return true
	}

	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		s.logger.Warn("heartbeat pong timeout", "sessionID", s.id)
		return true
	}

	s.logger.Warn("heartbeat ping failed, connection likely closed", "sessionID", s.id, "error", err)
	return false
}
