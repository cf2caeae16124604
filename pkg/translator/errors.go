package translator

import "errors"

// ErrDeviceUnavailable wraps a capture or playback device failing to open.
// It is surfaced synchronously from Start, distinct from the session
// package's transport/protocol sentinels, which the supervisor retries on
// its own without involving the caller.
var ErrDeviceUnavailable = errors.New("translator: audio device unavailable")
