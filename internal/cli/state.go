package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/calvinalkan/buildstate/pkg/taskstate"
)

// taskDir returns the directory holding the state document of task.
func (a *app) taskDir(task string) (string, error) {
	if task == "" {
		return "", ErrTaskRequired
	}

	if task == "." || task == ".." || strings.ContainsAny(task, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTask, task)
	}

	return filepath.Join(a.cfg.StateDirAbs, task), nil
}

// openState creates the State for task and waits for its load.
func (a *app) openState(ctx context.Context, task string) (*taskstate.State, error) {
	dir, err := a.taskDir(task)
	if err != nil {
		return nil, err
	}

	st := taskstate.New(dir, taskstate.Options{
		Name:   task,
		FS:     a.fs,
		Logger: a.log,
	})

	err = st.LoadAll().Wait(ctx)
	if err != nil {
		return nil, err
	}

	return st, nil
}

// warnLoad records a warning when the document existed but could not be used.
func warnLoad(o *IO, st *taskstate.State) {
	switch st.LoadOutcome() {
	case taskstate.LoadOutcomeCorrupt:
		o.Warn("%s is corrupt, showing empty state", st.Path())
	case taskstate.LoadOutcomeUnreadable:
		o.Warn("%s could not be read, showing empty state", st.Path())
	default:
	}
}
