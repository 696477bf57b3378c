package filter

import "errors"

// Errors surfaced by the orchestrator's task transitions.
var (
	errOutOfMem     = errors.New("filter: clone exhausted, REQUIRES_NEW_INSTANCE could not be satisfied")
	errSinkRejected = errors.New("filter: sink rejected configure_pid and has no outputs to fall back to")
)
