package taskstate

import "errors"

// Sentinel errors reported through a [Call].
//
// Use [errors.Is] to check them; the underlying cause stays reachable too:
//
//	if err := st.SetJobState("a", v).Err(); errors.Is(err, taskstate.ErrSave) {
//	    // the mapping is intact in memory, the next mutation retries
//	}
var (
	// ErrSave indicates persisting the mapping failed. The error also wraps
	// the filesystem error that caused it.
	ErrSave = errors.New("taskstate: save failed")

	// ErrInvalidState indicates a job state could not be encoded as JSON.
	// The mapping is left unchanged and no write is scheduled.
	ErrInvalidState = errors.New("taskstate: invalid job state")
)
