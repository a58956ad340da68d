package taskstate

import (
	"github.com/apex/log"

	"github.com/calvinalkan/buildstate/internal/flight"
	"github.com/calvinalkan/buildstate/internal/fs"
)

// FS is the filesystem a [State] persists through.
type FS = fs.FS

// Call is the completion signal returned by [State.LoadAll],
// [State.SetJobState] and [State.Flush].
type Call = flight.Call

// NewRealFS returns the default [FS] backed by the operating system.
func NewRealFS() FS {
	return fs.NewReal()
}

// Mode selects how job states are laid out on disk.
type Mode uint8

const (
	// ModeSingleFile keeps every job of a task in one state.json.
	ModeSingleFile Mode = iota

	// ModePerJobFile would store one document per job. Not implemented;
	// [New] panics if it is selected.
	ModePerJobFile
)

func (m Mode) String() string {
	switch m {
	case ModeSingleFile:
		return "single"
	case ModePerJobFile:
		return "per-job"
	default:
		return "unknown"
	}
}

// Options configures a [State].
type Options struct {
	// Name identifies the task in log output. Optional.
	Name string

	// Mode is the storage layout. Defaults to [ModeSingleFile].
	Mode Mode

	// FS is the filesystem to persist through. Defaults to [NewRealFS].
	FS FS

	// Logger receives progress and warning lines. Defaults to [log.Log].
	Logger log.Interface

	// Indent is the per-level indentation of state.json. Defaults to two
	// spaces.
	Indent string
}

// LoadOutcome names the branch [State.LoadAll] took.
type LoadOutcome uint8

const (
	// LoadOutcomeNone means no load has completed yet.
	LoadOutcomeNone LoadOutcome = iota
	// LoadOutcomeLoaded means the document was read and parsed.
	LoadOutcomeLoaded
	// LoadOutcomeMissing means there was no document; the mapping is empty.
	LoadOutcomeMissing
	// LoadOutcomeUnreadable means reading failed for another reason; the
	// mapping was reset to empty.
	LoadOutcomeUnreadable
	// LoadOutcomeCorrupt means the document did not parse; the mapping was
	// reset to empty.
	LoadOutcomeCorrupt
)

func (o LoadOutcome) String() string {
	switch o {
	case LoadOutcomeNone:
		return "none"
	case LoadOutcomeLoaded:
		return "loaded"
	case LoadOutcomeMissing:
		return "missing"
	case LoadOutcomeUnreadable:
		return "unreadable"
	case LoadOutcomeCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// Stats counts physical operations performed by a [State].
type Stats struct {
	// Loads is the number of reads of the document.
	Loads int64
	// Writes is the number of attempted document writes.
	Writes int64
	// Prunes is the number of attempted document deletions.
	Prunes int64
	// WriteErrors counts failed writes and prunes.
	WriteErrors int64
	// Coalesced counts save requests that joined an already pending write.
	Coalesced int64
}
