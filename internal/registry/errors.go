package registry

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no record exists for a requested identity.
var ErrNotFound = errors.New("server not found")

// ValidationError rejects an announce or admin request with a malformed,
// missing or out-of-range field. The registry is left untouched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

// BannedError rejects an announce from a banned origin.
type BannedError struct {
	Reason string
}

func (e *BannedError) Error() string {
	return "origin banned: " + e.Reason
}
