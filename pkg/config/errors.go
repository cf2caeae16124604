package config

import "errors"

// ErrConfigInvalid is the sentinel wrapped by every Validate failure so
// callers can distinguish configuration errors from device or transport
// errors.
var ErrConfigInvalid = errors.New("invalid configuration")
