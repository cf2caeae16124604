package protocol

// NewStartSession builds the handshake frame sent once per session open:
// 16 kHz/16-bit/mono source audio metadata, 48 kHz mono target audio, s2s
// mode, and denoising enabled.
func NewStartSession(sessionID, sourceLanguage, targetLanguage string) Event {
	return Event{
		Type:      EventStartSession,
		SessionID: sessionID,
		SourceAudio: &SourceAudio{
			Format:  "wav",
			Rate:    16000,
			Bits:    16,
			Channel: 1,
		},
		TargetAudio: &TargetAudio{
			Format:  "pcm",
			Rate:    48000,
			Channel: 1,
		},
		Request: &Request{
			Mode:           "s2s",
			SourceLanguage: sourceLanguage,
			TargetLanguage: targetLanguage,
		},
		User: &User{
			UID: "simple_realtime",
			DID: "simple_realtime",
		},
		Denoise: true,
	}
}

// NewTaskRequest wraps one captured or silence-padded chunk for delivery by
// the paced sender.
func NewTaskRequest(sessionID string, pcm []byte) Event {
	return Event{
		Type:      EventTaskRequest,
		SessionID: sessionID,
		SourceAudio: &SourceAudio{
			BinaryData: pcm,
		},
	}
}

// NewFinishSession exists for completeness with the wire protocol; the
// core does not send it (sessions are torn down by closing the socket).
func NewFinishSession(sessionID string) Event {
	return Event{Type: EventFinishSession, SessionID: sessionID}
}
