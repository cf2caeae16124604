package session

import "errors"

// Sentinel errors for the transport and protocol-semantic failures a
// session can hit. These are handled locally by the supervisor, which
// decides whether and how fast to reconnect; configuration and device
// errors are a separate class surfaced synchronously by pkg/translator.
var (
	// ErrDialFailed covers WebSocket dial failure after exhausting retries.
	ErrDialFailed = errors.New("session: failed to open websocket after retries")

	// ErrUnexpectedHandshake covers a StartSession response that is not
	// SessionStarted.
	ErrUnexpectedHandshake = errors.New("session: handshake did not receive SessionStarted")

	// ErrSessionFailed wraps a terminal SessionFailed/SessionCanceled event,
	// recoverable or not; it is strictly a protocol-semantic failure, not a
	// transport one.
	ErrSessionFailed = errors.New("session: remote reported failure")

	// ErrTransportFailed wraps an unexpected connection close or a frame
	// that failed to decode while the session was active (as opposed to
	// ErrDialFailed, which only covers the initial connect).
	ErrTransportFailed = errors.New("session: transport failed")

	// ErrShuttingDown marks a session torn down by an explicit Close rather
	// than a transport or protocol failure.
	ErrShuttingDown = errors.New("session: shutting down")
)
