package commitment

import "errors"

// ErrFormat marks malformed merchant, amount, or salt input. Format errors
// are rejected before hashing and are never silently normalized.
var ErrFormat = errors.New("format error")
