package store

import "errors"

var (
	// ErrUnavailable indicates the store could not be reached. Transient;
	// the affected event is retried on the next scheduled pass.
	ErrUnavailable = errors.New("store unavailable")

	// ErrConflict indicates the event's face set changed while a pass was
	// in flight in a way that makes the computed assignments stale. The
	// pass is aborted and the next tick recomputes from fresh state.
	ErrConflict = errors.New("face set changed concurrently")

	// ErrLeaseHeld indicates another run currently holds the processing
	// lease for the event. Expected under overlapping invocations; callers
	// skip the event without treating it as a failure.
	ErrLeaseHeld = errors.New("event lease held")
)
