package fs

import (
	"io/fs"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
)

// ChaosConfig controls fault injection probabilities.
// Each rate is a float64 from 0.0 (never) to 1.0 (always).
type ChaosConfig struct {
	// Read faults
	ReadFailRate    float64 // Fail ReadFile entirely
	PartialReadRate float64 // Return truncated data from ReadFile

	// Write faults
	WriteFailRate float64 // Fail WriteFileAtomic without touching the file
	TornWriteRate float64 // Leave a truncated file behind, then fail (simulates an interrupted writer)

	// Other faults
	MkdirFailRate   float64 // Fail MkdirAll
	RemoveFailRate  float64 // Fail Remove
	StatFailRate    float64 // Fail Stat/Exists
	ReadDirFailRate float64 // Fail ReadDir
}

// DefaultChaosConfig returns a config with reasonable fault rates for testing.
func DefaultChaosConfig() ChaosConfig {
	return ChaosConfig{
		ReadFailRate:    0.02,
		PartialReadRate: 0.02,
		WriteFailRate:   0.03,
		TornWriteRate:   0.02,
		MkdirFailRate:   0.01,
		RemoveFailRate:  0.02,
		StatFailRate:    0.01,
		ReadDirFailRate: 0.02,
	}
}

// PathState tracks the fault state of a path for consistent error injection.
type PathState int

const (
	// PathNormal means no persistent fault - errors are transient.
	// This is the zero value, so untracked paths are normal.
	PathNormal PathState = iota
	// PathIOError is sticky - the path has a "bad sector" and always returns EIO.
	PathIOError
	// PathReadOnly is sticky for writes - filesystem is read-only, returns EROFS.
	PathReadOnly
)

// ChaosMode controls how Chaos behaves.
type ChaosMode uint8

const (
	// ChaosModePassthrough behaves like the underlying FS.
	// It ignores fault rates and also ignores any sticky path state.
	ChaosModePassthrough ChaosMode = iota

	// ChaosModeInject enables fault-rate injection and sticky path state.
	ChaosModeInject

	// ChaosModeStickyOnly applies only sticky path state. Fault rates are disabled.
	ChaosModeStickyOnly
)

// Chaos wraps an [FS] and injects random failures for testing.
//
// Errors are state-aware: once a path gets EIO (bad sector), it stays broken.
// Errors are also reality-aware: ENOENT is only returned if the file really
// doesn't exist on the underlying filesystem.
//
// All injected errors are real OS errors (syscall.Errno wrapped in
// fs.PathError) so errors.Is and os.IsNotExist behave as with real failures.
// Use [IsInjected] to tell them apart from genuine OS errors.
type Chaos struct {
	fs     FS
	rng    *rand.Rand
	config ChaosConfig
	mode   atomic.Uint32

	mu         sync.RWMutex
	pathStates map[string]PathState

	readFails    atomic.Int64
	partialReads atomic.Int64
	writeFails   atomic.Int64
	tornWrites   atomic.Int64
	mkdirFails   atomic.Int64
	removeFails  atomic.Int64
	statFails    atomic.Int64
	readDirFails atomic.Int64
}

// NewChaos creates a new Chaos filesystem wrapping the given [FS].
// The seed controls random fault injection for reproducibility.
// The initial mode is [ChaosModePassthrough].
func NewChaos(fsys FS, seed int64, config ChaosConfig) *Chaos {
	if fsys == nil {
		panic("fs is nil")
	}

	return &Chaos{
		fs:         fsys,
		rng:        rand.New(rand.NewSource(seed)),
		config:     config,
		pathStates: make(map[string]PathState),
	}
}

// SetMode updates Chaos behavior. Safe to call concurrently with filesystem
// operations. Switching modes never clears sticky path state.
func (c *Chaos) SetMode(m ChaosMode) { c.mode.Store(uint32(m)) }

// ChaosStats contains counts of injected faults.
type ChaosStats struct {
	ReadFails    int64
	PartialReads int64
	WriteFails   int64
	TornWrites   int64
	MkdirFails   int64
	RemoveFails  int64
	StatFails    int64
	ReadDirFails int64
}

// Stats returns the current fault injection counts.
func (c *Chaos) Stats() ChaosStats {
	return ChaosStats{
		ReadFails:    c.readFails.Load(),
		PartialReads: c.partialReads.Load(),
		WriteFails:   c.writeFails.Load(),
		TornWrites:   c.tornWrites.Load(),
		MkdirFails:   c.mkdirFails.Load(),
		RemoveFails:  c.removeFails.Load(),
		StatFails:    c.statFails.Load(),
		ReadDirFails: c.readDirFails.Load(),
	}
}

// TotalFaults returns the total number of injected faults.
func (c *Chaos) TotalFaults() int64 {
	s := c.Stats()

	return s.ReadFails + s.PartialReads + s.WriteFails + s.TornWrites +
		s.MkdirFails + s.RemoveFails + s.StatFails + s.ReadDirFails
}

// SetPathState forces a sticky fault state on a path (for testing).
// It takes effect in [ChaosModeInject] and [ChaosModeStickyOnly].
func (c *Chaos) SetPathState(path string, state PathState) {
	c.setState(path, state)
}

// ResetAllPathStates clears all fault states (for testing).
func (c *Chaos) ResetAllPathStates() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pathStates = make(map[string]PathState)
}

func (c *Chaos) currentMode() ChaosMode {
	return ChaosMode(c.mode.Load())
}

// should returns true with the given probability when chaos is injecting.
func (c *Chaos) should(mode ChaosMode, rate float64) bool {
	if mode != ChaosModeInject {
		return false
	}

	c.mu.Lock()
	result := c.rng.Float64()
	c.mu.Unlock()

	return result < rate
}

// randIntn returns a random int in [0, n) (thread-safe).
func (c *Chaos) randIntn(n int) int {
	c.mu.Lock()
	result := c.rng.Intn(n)
	c.mu.Unlock()

	return result
}

func (c *Chaos) getState(path string) PathState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.pathStates[path]
}

func (c *Chaos) setState(path string, state PathState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if state == PathNormal {
		delete(c.pathStates, path)
	} else {
		c.pathStates[path] = state
	}
}

// stickyErr returns the sticky error for op on path, or 0 if none applies.
func (c *Chaos) stickyErr(mode ChaosMode, path string, write bool) syscall.Errno {
	if mode == ChaosModePassthrough {
		return 0
	}

	switch c.getState(path) {
	case PathIOError:
		return syscall.EIO
	case PathReadOnly:
		if write {
			return syscall.EROFS
		}
	}

	return 0
}

// errToState converts an error to a path state for tracking.
func errToState(err syscall.Errno) PathState {
	switch err {
	case syscall.EIO:
		return PathIOError
	case syscall.EROFS:
		return PathReadOnly
	default:
		return PathNormal
	}
}

// pathError creates an *fs.PathError with the given operation, path, and errno.
// This matches what the real OS returns, so errors.Is() works correctly.
func pathError(op, path string, errno syscall.Errno) error {
	pe := &fs.PathError{Op: op, Path: path, Err: errno}
	markInjectedPathError(pe)

	return pe
}

// pickError selects an error consistent with the real filesystem state and
// records sticky states.
func (c *Chaos) pickError(op string, path string) (syscall.Errno, error) {
	var valid []syscall.Errno

	switch op {
	case "read":
		exists, err := c.fs.Exists(path)
		if err != nil {
			return 0, err
		}

		if exists {
			valid = []syscall.Errno{syscall.EACCES, syscall.EIO, syscall.EINTR}
		} else {
			valid = []syscall.Errno{syscall.ENOENT, syscall.EACCES}
		}

	case "write", "mkdir":
		valid = []syscall.Errno{syscall.EACCES, syscall.EIO, syscall.ENOSPC, syscall.EDQUOT, syscall.EROFS}

	case "remove", "stat":
		exists, err := c.fs.Exists(path)
		if err != nil {
			return 0, err
		}

		if !exists {
			// Can only return ENOENT if the path really doesn't exist.
			return syscall.ENOENT, nil
		}

		valid = []syscall.Errno{syscall.EACCES, syscall.EIO, syscall.EBUSY}

	default:
		valid = []syscall.Errno{syscall.EIO}
	}

	errno := valid[c.randIntn(len(valid))]
	c.setState(path, errToState(errno))

	return errno, nil
}

// fail picks an injected error for op, bumping counter on success.
func (c *Chaos) fail(op, path string, counter *atomic.Int64) error {
	errno, err := c.pickError(op, path)
	if err != nil {
		return err
	}

	counter.Add(1)

	return pathError(op, path, errno)
}

// --- Reading ---

func (c *Chaos) ReadFile(path string) ([]byte, error) {
	mode := c.currentMode()

	if errno := c.stickyErr(mode, path, false); errno != 0 {
		c.readFails.Add(1)

		return nil, pathError("read", path, errno)
	}

	if c.should(mode, c.config.ReadFailRate) {
		return nil, c.fail("read", path, &c.readFails)
	}

	data, err := c.fs.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if c.should(mode, c.config.PartialReadRate) && len(data) > 1 {
		c.partialReads.Add(1)

		return data[:c.randIntn(len(data)-1)+1], nil
	}

	return data, nil
}

func (c *Chaos) ReadDir(path string) ([]os.DirEntry, error) {
	mode := c.currentMode()

	if errno := c.stickyErr(mode, path, false); errno != 0 {
		c.readDirFails.Add(1)

		return nil, pathError("readdir", path, errno)
	}

	if c.should(mode, c.config.ReadDirFailRate) {
		return nil, c.fail("readdir", path, &c.readDirFails)
	}

	return c.fs.ReadDir(path)
}

// --- Writing ---

func (c *Chaos) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	mode := c.currentMode()

	if errno := c.stickyErr(mode, path, true); errno != 0 {
		c.writeFails.Add(1)

		return pathError("write", path, errno)
	}

	if c.should(mode, c.config.WriteFailRate) {
		return c.fail("write", path, &c.writeFails)
	}

	// Torn write: a non-atomic writer died halfway. The truncated bytes
	// land on disk and the caller sees an error.
	if c.should(mode, c.config.TornWriteRate) && len(data) > 1 {
		cutoff := c.randIntn(len(data)-1) + 1

		err := c.fs.WriteFileAtomic(path, data[:cutoff], perm)
		if err != nil {
			return err
		}

		c.tornWrites.Add(1)

		return pathError("write", path, syscall.EIO)
	}

	return c.fs.WriteFileAtomic(path, data, perm)
}

func (c *Chaos) MkdirAll(path string, perm os.FileMode) error {
	mode := c.currentMode()

	if errno := c.stickyErr(mode, path, true); errno != 0 {
		c.mkdirFails.Add(1)

		return pathError("mkdir", path, errno)
	}

	if c.should(mode, c.config.MkdirFailRate) {
		return c.fail("mkdir", path, &c.mkdirFails)
	}

	return c.fs.MkdirAll(path, perm)
}

// --- Metadata ---

func (c *Chaos) Stat(path string) (os.FileInfo, error) {
	mode := c.currentMode()

	if errno := c.stickyErr(mode, path, false); errno != 0 {
		c.statFails.Add(1)

		return nil, pathError("stat", path, errno)
	}

	if c.should(mode, c.config.StatFailRate) {
		return nil, c.fail("stat", path, &c.statFails)
	}

	return c.fs.Stat(path)
}

func (c *Chaos) Exists(path string) (bool, error) {
	_, err := c.Stat(path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}

// --- Mutations ---

func (c *Chaos) Remove(path string) error {
	mode := c.currentMode()

	if errno := c.stickyErr(mode, path, true); errno != 0 {
		c.removeFails.Add(1)

		return pathError("remove", path, errno)
	}

	if c.should(mode, c.config.RemoveFailRate) {
		return c.fail("remove", path, &c.removeFails)
	}

	return c.fs.Remove(path)
}

// Compile-time interface check.
var _ FS = (*Chaos)(nil)
