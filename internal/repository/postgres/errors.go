package postgres

import "errors"

// ErrJobNotFound is returned when a ledger lookup misses. Queue entries can
// outlive their rows after a requeue prune, so dispatchers treat this as a
// drop, not a failure.
var ErrJobNotFound = errors.New("job not found")
