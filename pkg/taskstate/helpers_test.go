package taskstate_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/apex/log/handlers/memory"

	"github.com/calvinalkan/buildstate/internal/fs"
	"github.com/calvinalkan/buildstate/pkg/taskstate"
)

const waitTimeout = 5 * time.Second

// newState creates a State over dir with a strict FS and a silent logger
// unless opts says otherwise.
func newState(t *testing.T, dir string, opts taskstate.Options) *taskstate.State {
	t.Helper()

	if opts.FS == nil {
		opts.FS = fs.NewStrictTestFS(t, fs.StrictTestFSOptions{FS: fs.NewReal()})
	}

	if opts.Logger == nil {
		opts.Logger = &log.Logger{Handler: discard.New(), Level: log.DebugLevel}
	}

	return taskstate.New(dir, opts)
}

func memoryLogger() (*log.Logger, *memory.Handler) {
	h := memory.New()

	return &log.Logger{Handler: h, Level: log.DebugLevel}, h
}

func mustWait(t *testing.T, c *taskstate.Call) error {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()

	err := c.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("call did not complete within %v", waitTimeout)
	}

	return err
}

func mustLoad(t *testing.T, st *taskstate.State) {
	t.Helper()

	if err := mustWait(t, st.LoadAll()); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
}

func mustSet(t *testing.T, st *taskstate.State, name string, v any) {
	t.Helper()

	if err := mustWait(t, st.SetJobState(name, v)); err != nil {
		t.Fatalf("SetJobState(%q): %v", name, err)
	}
}

// readDoc returns the compacted content of the state document.
func readDoc(t *testing.T, dir string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, taskstate.FileName))
	if err != nil {
		t.Fatalf("read state document: %v", err)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		t.Fatalf("state document is not valid JSON: %v\n%s", err, data)
	}

	return buf.String()
}

func docExists(t *testing.T, dir string) bool {
	t.Helper()

	_, err := os.Stat(filepath.Join(dir, taskstate.FileName))
	if err == nil {
		return true
	}

	if errors.Is(err, os.ErrNotExist) {
		return false
	}

	t.Fatalf("stat state document: %v", err)

	return false
}

func rawStrings(m map[string]json.RawMessage) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = string(v)
	}

	return out
}

// gatedFS delays reads and writes until their gates are closed and records
// how many writes ran and how many overlapped.
type gatedFS struct {
	fs.FS

	readGate  chan struct{}
	writeGate chan struct{}

	readStarted  chan struct{}
	writeStarted chan struct{}

	reads     atomic.Int32
	writes    atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
}

func newGatedFS(inner fs.FS) *gatedFS {
	return &gatedFS{
		FS:           inner,
		readGate:     make(chan struct{}),
		writeGate:    make(chan struct{}),
		readStarted:  make(chan struct{}, 64),
		writeStarted: make(chan struct{}, 64),
	}
}

func (g *gatedFS) ReadFile(path string) ([]byte, error) {
	g.reads.Add(1)
	g.readStarted <- struct{}{}
	<-g.readGate

	return g.FS.ReadFile(path)
}

func (g *gatedFS) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	g.writes.Add(1)

	n := g.active.Add(1)
	for {
		seen := g.maxActive.Load()
		if n <= seen || g.maxActive.CompareAndSwap(seen, n) {
			break
		}
	}

	g.writeStarted <- struct{}{}
	<-g.writeGate

	defer g.active.Add(-1)

	return g.FS.WriteFileAtomic(path, data, perm)
}

func waitSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()

	select {
	case <-ch:
	case <-time.After(waitTimeout):
		t.Fatalf("%s did not start", what)
	}
}
