package taskstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/apex/log"

	"github.com/calvinalkan/buildstate/internal/flight"
	"github.com/calvinalkan/buildstate/internal/fs"
)

// FileName is the name of the state document inside a State's directory.
const FileName = "state.json"

const defaultIndent = "  "

// loads and saves dedupe I/O per State. Keyed by owner identity so one
// group serves every State in the process.
var (
	loads flight.Group[*State]
	saves flight.Group[*State]
)

// State is the job-state cache for one task.
//
// Create with [New], populate once with [State.LoadAll], then record
// outcomes with [State.SetJobState].
type State struct {
	dir    string
	name   string
	mode   Mode
	indent string
	fs     FS
	log    log.Interface

	mu      sync.Mutex
	jobs    jobMap
	loaded  bool
	outcome LoadOutcome
	saveErr error // last failed save; nil once a save succeeds

	loadCount   atomic.Int64
	writeCount  atomic.Int64
	pruneCount  atomic.Int64
	writeErrors atomic.Int64
	coalesced   atomic.Int64
}

// New returns a State bound to dir. The mapping starts empty and unloaded.
//
// Panics if dir is empty or opts.Mode is [ModePerJobFile].
func New(dir string, opts Options) *State {
	if dir == "" {
		panic("taskstate: dir is empty")
	}

	if opts.Mode == ModePerJobFile {
		panic("taskstate: per-job file mode is not implemented")
	}

	if opts.Mode != ModeSingleFile {
		panic(fmt.Sprintf("taskstate: unknown mode %d", opts.Mode))
	}

	fsys := opts.FS
	if fsys == nil {
		fsys = fs.NewReal()
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Log
	}

	indent := opts.Indent
	if indent == "" {
		indent = defaultIndent
	}

	return &State{
		dir:    dir,
		name:   opts.Name,
		mode:   opts.Mode,
		indent: indent,
		fs:     fsys,
		log:    logger,
		jobs:   newJobMap(),
	}
}

// Dir returns the directory the State was created with.
func (s *State) Dir() string { return s.dir }

// Name returns the diagnostic name, possibly empty.
func (s *State) Name() string { return s.name }

// Path returns the path of the backing document.
func (s *State) Path() string {
	return filepath.Join(s.dir, FileName)
}

func (s *State) logger() log.Interface {
	return s.log.WithFields(log.Fields{
		"task": s.name,
		"path": s.Path(),
	})
}

// =============================================================================
// Loading
// =============================================================================

// LoadAll reads the document into memory. Concurrent calls share one read.
//
// The returned Call never carries an error: a missing, unreadable or corrupt
// document resets the mapping to empty. See [State.LoadOutcome].
//
// Mutations made before the load completes are replaced by what was read.
func (s *State) LoadAll() *Call {
	c, _ := loads.Do(s, s.load)

	return c
}

func (s *State) load() error {
	s.loadCount.Add(1)

	path := s.Path()
	l := s.logger()

	jobs := newJobMap()
	outcome := LoadOutcomeLoaded

	data, err := s.fs.ReadFile(path)

	switch {
	case errors.Is(err, os.ErrNotExist):
		outcome = LoadOutcomeMissing

		l.Debug("no existing job state")
	case err != nil:
		outcome = LoadOutcomeUnreadable

		l.WithError(err).Warnf("error reading %s (resetting to blank state)", path)
	default:
		parsed, parseErr := decodeJobMap(data)
		if parseErr != nil {
			outcome = LoadOutcomeCorrupt

			l.WithError(parseErr).Warnf("error parsing %s (resetting to blank state)", path)
		} else {
			jobs = parsed

			l.WithField("jobs", jobs.len()).Debug("loaded existing job state")
		}
	}

	s.mu.Lock()
	s.jobs = jobs
	s.loaded = true
	s.outcome = outcome
	s.mu.Unlock()

	return nil
}

// Loaded reports whether a load has completed.
func (s *State) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loaded
}

// LoadOutcome reports how the most recent load ended.
func (s *State) LoadOutcome() LoadOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.outcome
}

// =============================================================================
// Reading
// =============================================================================

// GetAllJobStates returns a copy of the mapping.
func (s *State) GetAllJobStates() map[string]json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]json.RawMessage, s.jobs.len())
	for _, name := range s.jobs.names {
		out[name] = cloneRaw(s.jobs.values[name])
	}

	return out
}

// Names returns the job names in mapping order.
func (s *State) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.jobs.names...)
}

// Len returns the number of recorded jobs.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.jobs.len()
}

// GetJobState returns the recorded state for name. ok is false if the job
// has no state.
func (s *State) GetJobState(name string) (state json.RawMessage, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.jobs.get(name)
	if !ok {
		return nil, false
	}

	return cloneRaw(v), true
}

// GetJobStateInto unmarshals the recorded state for name into dst.
// Returns false without touching dst if the job has no state.
func (s *State) GetJobStateInto(name string, dst any) (bool, error) {
	raw, ok := s.GetJobState(name)
	if !ok {
		return false, nil
	}

	err := json.Unmarshal(raw, dst)
	if err != nil {
		return true, fmt.Errorf("taskstate: decode job %q: %w", name, err)
	}

	return true, nil
}

func cloneRaw(v json.RawMessage) json.RawMessage {
	return append(json.RawMessage(nil), v...)
}

// =============================================================================
// Writing
// =============================================================================

// SetJobState records state for name and schedules a save.
//
// state is marshalled to JSON right away. nil, or anything that encodes to
// null, false, 0 or "", removes the job instead. The in-memory change is
// visible before SetJobState returns.
//
// The returned Call completes once a write that started after this call has
// finished, and carries that write's error. If name is not valid UTF-8 or
// state cannot be marshalled, the mapping is not touched and the Call has
// already failed with [ErrInvalidState].
func (s *State) SetJobState(name string, state any) *Call {
	if !utf8.ValidString(name) {
		return flight.Completed(fmt.Errorf("%w: job name %q is not valid UTF-8", ErrInvalidState, name))
	}

	raw, absent, err := encodeJobState(state)
	if err != nil {
		return flight.Completed(fmt.Errorf("%w: job %q: %w", ErrInvalidState, name, err))
	}

	s.mu.Lock()
	if absent {
		s.jobs.remove(name)
	} else {
		s.jobs.set(name, raw)
	}
	s.mu.Unlock()

	return s.scheduleSave()
}

// DeleteJobState forgets name. Same as SetJobState(name, nil).
func (s *State) DeleteJobState(name string) *Call {
	return s.SetJobState(name, nil)
}

// Flush returns a Call that completes once every save requested so far has
// been written. If nothing is in flight the Call is already completed and
// carries the error of the last save when that save failed, since the
// document is then behind memory.
func (s *State) Flush() *Call {
	if c := saves.Last(s); c != nil {
		return c
	}

	s.mu.Lock()
	err := s.saveErr
	s.mu.Unlock()

	return flight.Completed(err)
}

func (s *State) scheduleSave() *Call {
	c, shared := saves.DoTrailing(s, s.save)
	if shared {
		s.coalesced.Add(1)
	}

	return c
}

// save writes the live mapping, or prunes the document when it is empty.
func (s *State) save() error {
	s.mu.Lock()
	empty := s.jobs.len() == 0

	var (
		data []byte
		err  error
	)

	if !empty {
		data, err = s.jobs.encode(s.indent)
	}
	s.mu.Unlock()

	path := s.Path()
	l := s.logger()

	if err != nil {
		return s.saveFailed(fmt.Errorf("%w: encode %s: %w", ErrSave, path, err))
	}

	if empty {
		s.pruneCount.Add(1)
		l.Debugf("pruning %s", path)

		err = fs.RemovePrune(s.fs, path)
	} else {
		s.writeCount.Add(1)
		l.Debugf("writing %s", path)

		err = fs.WriteFileMkdir(s.fs, path, data)
	}

	if err != nil {
		l.WithError(err).Warn("saving job state failed")

		return s.saveFailed(fmt.Errorf("%w: %s: %w", ErrSave, path, err))
	}

	s.mu.Lock()
	s.saveErr = nil
	s.mu.Unlock()

	return nil
}

func (s *State) saveFailed(err error) error {
	s.writeErrors.Add(1)

	s.mu.Lock()
	s.saveErr = err
	s.mu.Unlock()

	return err
}

// Stats returns a snapshot of the operation counters.
func (s *State) Stats() Stats {
	return Stats{
		Loads:       s.loadCount.Load(),
		Writes:      s.writeCount.Load(),
		Prunes:      s.pruneCount.Load(),
		WriteErrors: s.writeErrors.Load(),
		Coalesced:   s.coalesced.Load(),
	}
}
