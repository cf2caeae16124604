package session

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/lokutor-ai/lokutor-s2s/pkg/protocol"
)

// recoverableMarkers are substrings of a SessionFailed/SessionCanceled
// message that indicate a transient condition the supervisor should retry
// quickly, rather than a hard protocol error worth surfacing loudly.
var recoverableMarkers = []string{"AudioSendSlow", "audio not enough"}

// runReceiver reads frames off the socket and dispatches them: TTS audio is
// reassembled and handed to playback, subtitle fragments are joined and
// handed to the subscriber, and terminal events end the session.
func (s *Session) runReceiver(ctx context.Context) {
	defer s.wg.Done()
	defer s.taskExited()

	var sentence *SentenceAssembly
	var sourceSub, translationSub SubtitleAssembly

	for {
		ev, err := readEvent(ctx, s.conn)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("receiver read/decode failed", "error", err)
			if s.health != nil {
				s.health.RecordError(err.Error())
			}
			s.fail(fmt.Errorf("%w: %v", ErrTransportFailed, err))
			return
		}

		switch ev.Type {
		case protocol.EventAudioMuted:
			s.logger.Info("audio muted", "durationMs", ev.MutedDurationMs)

		case protocol.EventTTSSentenceStart:
			if sentence != nil {
				s.logger.Warn("dropping unfinished TTS sentence", "sequence", sentence.Sequence)
			}
			sentence = newSentenceAssembly(ev.Sequence)

		case protocol.EventTTSResponse:
			if sentence != nil {
				sentence.append(ev.Data)
			}

		case protocol.EventTTSSentenceEnd:
			if sentence != nil {
				s.flushSentence(sentence)
				sentence = nil
			}

		case protocol.EventSourceSubtitleStart:
			sourceSub.clear()

		case protocol.EventSourceSubtitleResponse:
			sourceSub.append(strings.TrimSpace(ev.Text))

		case protocol.EventSourceSubtitleEnd:
			s.notifySource(sourceSub.joinEmpty())
			sourceSub.clear()

		case protocol.EventTranslationSubtitleStart:
			translationSub.clear()

		case protocol.EventTranslationSubtitleResponse:
			translationSub.append(strings.TrimSpace(ev.Text))

		case protocol.EventTranslationSubtitleEnd:
			s.notifyTranslation(translationSub.joinSpace())
			translationSub.clear()

		case protocol.EventSessionFailed, protocol.EventSessionCanceled:
			s.handleTerminalFailure(ev)
			return

		case protocol.EventSessionFinished:
			s.logger.Info("session finished", "sessionID", s.id)
			s.fail(nil)
			return

		default:
			s.logger.Debug("unhandled event", "type", ev.Type.String())
		}
	}
}

// handleTerminalFailure logs and records a SessionFailed/SessionCanceled
// event. Whether the message matches a recoverable pattern only affects how
// loudly it's logged; the session always ends and the supervisor always
// decides the reconnect pace from its own failure budget.
func (s *Session) handleTerminalFailure(ev *protocol.Event) {
	recoverable := isRecoverableFailure(ev.Message)
	if recoverable {
		s.logger.Warn("session reported recoverable failure", "message", ev.Message, "type", ev.Type.String())
	} else {
		s.logger.Error("session reported failure", "message", ev.Message, "type", ev.Type.String())
	}
	if s.health != nil {
		s.health.RecordError(ev.Message)
	}
	s.fail(fmt.Errorf("%w: %s", ErrSessionFailed, ev.Message))
}

func isRecoverableFailure(message string) bool {
	for _, marker := range recoverableMarkers {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}

// flushSentence converts an assembled TTS sentence from PCM16LE to float32
// and hands it to playback, then records it in the sentence counter.
func (s *Session) flushSentence(a *SentenceAssembly) {
	samples := pcm16LEToFloat32(a.buf)
	if s.playback != nil {
		s.playback.Enqueue(samples)
	}
	if s.health != nil {
		s.health.RecordSentence()
	}
}

func pcm16LEToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		out[i] = float32(sample) / 32768.0
	}
	return out
}

// notifySource and notifyTranslation guard the subscriber callbacks with a
// recover so a panicking implementation can never take the session down.
func (s *Session) notifySource(text string) {
	if s.subscriber == nil {
		return
	}
	defer s.recoverSubscriberPanic("OnSourceSentence")
	s.subscriber.OnSourceSentence(text)
}

func (s *Session) notifyTranslation(text string) {
	if s.subscriber == nil {
		return
	}
	defer s.recoverSubscriberPanic("OnTranslationSentence")
	s.subscriber.OnTranslationSentence(text)
}

func (s *Session) recoverSubscriberPanic(callback string) {
	if r := recover(); r != nil {
		s.logger.Error("subscriber callback panicked", "callback", callback, "recovered", r)
	}
}
