// Package taskstate persists per-job state for an incremental build task.
//
// A [State] owns an in-memory mapping from job name to an opaque JSON value
// and mirrors it to a single document at <dir>/state.json. Mutations are
// applied to memory immediately; persisting them happens in the background
// and is coalesced so that a burst of updates costs at most one write in
// flight plus one trailing write.
//
// # Basic Usage
//
//	st := taskstate.New(".gbstate/compile", taskstate.Options{Name: "compile"})
//	<-st.LoadAll().Done()
//
//	if raw, ok := st.GetJobState("main.o"); ok {
//	    // compare raw against the current inputs, maybe skip the job
//	}
//
//	call := st.SetJobState("main.o", map[string]string{"hash": "abc"})
//	if err := call.Err(); err != nil {
//	    // durability lost for this run only; memory is still up to date
//	}
//
// # Empty State
//
// An empty mapping is never written. When the last entry is removed the
// document is deleted and its directory pruned if nothing else lives there,
// so "no state" and "never built" look the same on disk.
//
// # Loading
//
// [State.LoadAll] never fails. A missing, unreadable or unparsable document
// resets the mapping to empty. [State.LoadOutcome] tells which of these
// happened.
//
// # Concurrency
//
// All methods are safe for concurrent use. At most one read and one write of
// the document are outstanding per State. Two States over the same directory
// are not coordinated.
package taskstate
