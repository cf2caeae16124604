// Package protocol implements the binary event frames exchanged with the
// remote speech-to-speech translation service: a 4-byte bit-packed header,
// a 4-byte big-endian payload length, and a JSON-serialized payload. The
// layout mirrors the length-prefixed binary framing used by comparable
// Volcengine/ByteDance streaming speech APIs.
package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// EventType discriminates the verbs exchanged over the session WebSocket.
type EventType uint16

const (
	EventUnknown EventType = iota

	// Client -> server.
	EventStartSession
	EventTaskRequest
	EventFinishSession

	// Server -> client.
	EventSessionStarted
	EventSessionFailed
	EventSessionCanceled
	EventSessionFinished
	EventAudioMuted
	EventTTSSentenceStart
	EventTTSResponse
	EventTTSSentenceEnd
	EventSourceSubtitleStart
	EventSourceSubtitleResponse
	EventSourceSubtitleEnd
	EventTranslationSubtitleStart
	EventTranslationSubtitleResponse
	EventTranslationSubtitleEnd
)

var eventNames = map[EventType]string{
	EventUnknown:                     "Unknown",
	EventStartSession:                "StartSession",
	EventTaskRequest:                 "TaskRequest",
	EventFinishSession:               "FinishSession",
	EventSessionStarted:              "SessionStarted",
	EventSessionFailed:               "SessionFailed",
	EventSessionCanceled:             "SessionCanceled",
	EventSessionFinished:             "SessionFinished",
	EventAudioMuted:                  "AudioMuted",
	EventTTSSentenceStart:            "TTSSentenceStart",
	EventTTSResponse:                 "TTSResponse",
	EventTTSSentenceEnd:              "TTSSentenceEnd",
	EventSourceSubtitleStart:         "SourceSubtitleStart",
	EventSourceSubtitleResponse:      "SourceSubtitleResponse",
	EventSourceSubtitleEnd:           "SourceSubtitleEnd",
	EventTranslationSubtitleStart:    "TranslationSubtitleStart",
	EventTranslationSubtitleResponse: "TranslationSubtitleResponse",
	EventTranslationSubtitleEnd:      "TranslationSubtitleEnd",
}

func (t EventType) String() string {
	if name, ok := eventNames[t]; ok {
		return name
	}
	return fmt.Sprintf("EventType(%d)", uint16(t))
}

// SourceAudio describes the microphone stream format carried on StartSession
// and the raw chunk carried on each TaskRequest.
type SourceAudio struct {
	Format     string `json:"format,omitempty"`
	Rate       int    `json:"rate,omitempty"`
	Bits       int    `json:"bits,omitempty"`
	Channel    int    `json:"channel,omitempty"`
	BinaryData []byte `json:"binary_data,omitempty"`
}

// TargetAudio describes the format the service renders TTS audio in.
type TargetAudio struct {
	Format  string `json:"format,omitempty"`
	Rate    int    `json:"rate,omitempty"`
	Channel int    `json:"channel,omitempty"`
}

// Request carries the translation mode and language pair.
type Request struct {
	Mode           string `json:"mode,omitempty"`
	SourceLanguage string `json:"source_language,omitempty"`
	TargetLanguage string `json:"target_language,omitempty"`
}

// User identifies the caller to the remote service.
type User struct {
	UID string `json:"uid,omitempty"`
	DID string `json:"did,omitempty"`
}

// Event is the tagged union carried by every frame exchanged with the
// service. request_meta/response_meta fields (SessionID, Sequence, Message)
// are flattened onto the struct since the discriminator already makes the
// direction unambiguous.
type Event struct {
	Type            EventType    `json:"event"`
	SessionID       string       `json:"session_id,omitempty"`
	Sequence        int64        `json:"sequence,omitempty"`
	Message         string       `json:"message,omitempty"`
	SourceAudio     *SourceAudio `json:"source_audio,omitempty"`
	TargetAudio     *TargetAudio `json:"target_audio,omitempty"`
	Request         *Request     `json:"request,omitempty"`
	User            *User        `json:"user,omitempty"`
	Denoise         bool         `json:"denoise,omitempty"`
	Data            []byte       `json:"data,omitempty"`
	Text            string       `json:"text,omitempty"`
	MutedDurationMs int64        `json:"muted_duration_ms,omitempty"`
}

// ProtocolError reports a framing failure while decoding a frame off the
// wire. The session treats it as a terminal condition.
type ProtocolError struct {
	RawLen int
	Cause  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol: malformed frame (%d bytes): %v", e.RawLen, e.Cause)
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

const (
	frameVersion           = 0x1
	frameHeaderSizeWords   = 0x1
	frameSerializationJSON = 0x1
	frameHeaderBytes       = 8
)

// header packs version (4 bits), header-size-in-32-bit-words (4 bits),
// reserved (8 bits), serialization method (8 bits) and reserved (8 bits)
// into one big-endian word.
func header() uint32 {
	return uint32(frameVersion)<<28 | uint32(frameHeaderSizeWords)<<24 | uint32(frameSerializationJSON)<<8
}

// Encode serializes ev into a length-prefixed binary frame.
func Encode(ev Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %v: %w", ev.Type, err)
	}

	buf := new(bytes.Buffer)
	buf.Grow(frameHeaderBytes + len(body))
	if err := binary.Write(buf, binary.BigEndian, header()); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.BigEndian, uint32(len(body))); err != nil {
		return nil, err
	}
	buf.Write(body)
	return buf.Bytes(), nil
}

// Decode parses a length-prefixed binary frame into an Event.
func Decode(raw []byte) (*Event, error) {
	if len(raw) < frameHeaderBytes {
		return nil, &ProtocolError{RawLen: len(raw), Cause: fmt.Errorf("frame shorter than %d-byte header", frameHeaderBytes)}
	}

	payloadLen := binary.BigEndian.Uint32(raw[4:8])
	body := raw[frameHeaderBytes:]
	if int(payloadLen) != len(body) {
		return nil, &ProtocolError{RawLen: len(raw), Cause: fmt.Errorf("declared length %d does not match body length %d", payloadLen, len(body))}
	}

	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, &ProtocolError{RawLen: len(raw), Cause: err}
	}
	return &ev, nil
}
