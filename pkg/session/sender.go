package session

import (
	"context"
	"fmt"
	"time"

	"github.com/lokutor-ai/lokutor-s2s/pkg/audio"
	"github.com/lokutor-ai/lokutor-s2s/pkg/protocol"
)

// pollInterval bounds how long the sender waits for a queued chunk before
// falling back to a silence-padded one, keeping the outbound cadence
// steady even when capture has nothing new.
const pollInterval = 10 * time.Millisecond

// driftResetThreshold is how far the wall clock is allowed to run ahead of
// the scheduled send time before the sender gives up on catching up and
// rebases instead.
const driftResetThreshold = 500 * time.Millisecond

// runSender is the paced sender: it drains sendQueue on an 80ms cadence,
// padding with silence when nothing is queued, so the outbound audio
// timeline never gaps even under bursty capture.
func (s *Session) runSender(ctx context.Context) {
	defer s.wg.Done()
	defer s.taskExited()

	var nextSendTime time.Time
	initialized := false

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var pcm []byte
		select {
		case pcm = <-s.sendQueue:
		case <-time.After(pollInterval):
			pcm = audio.SilentChunk()
		case <-ctx.Done():
			return
		}

		if !initialized {
			nextSendTime = time.Now()
			initialized = true
		}

		if err := s.writeTaskRequest(ctx, pcm); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("paced sender write failed", "error", err)
			s.fail(fmt.Errorf("%w: %v", ErrTransportFailed, err))
			return
		}

		nextSendTime = nextSendTime.Add(audio.ChunkDuration)

		now := time.Now()
		if now.Sub(nextSendTime) > driftResetThreshold {
			s.logger.Warn("paced sender drift exceeded threshold, resetting time base",
				"driftMs", now.Sub(nextSendTime).Milliseconds())
			nextSendTime = now
		}

		if wait := time.Until(nextSendTime); wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			}
		}

		if s.health != nil {
			s.health.UpdateSendQueueDepth(len(s.sendQueue))
		}
	}
}

func (s *Session) writeTaskRequest(ctx context.Context, pcm []byte) error {
	return writeEvent(ctx, s.conn, protocol.NewTaskRequest(s.id, pcm))
}
