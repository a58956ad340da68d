package cli

import (
	"context"
	"errors"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/buildstate/pkg/taskstate"
)

// RmCmd returns the rm command.
func RmCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("rm", flag.ContinueOnError),
		Usage: "rm <task> <job>...",
		Short: "Forget job states",
		Long: "Remove one or more jobs from a task's state. The state file is deleted\n" +
			"once no jobs remain.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execRm(ctx, io, a, args)
		},
		Aliases: []string{"del", "delete"},
	}
}

func execRm(ctx context.Context, o *IO, a *app, args []string) error {
	if len(args) == 0 {
		return ErrTaskRequired
	}

	if len(args) == 1 {
		return ErrJobRequired
	}

	st, err := a.openState(ctx, args[0])
	if err != nil {
		return err
	}

	warnLoad(o, st)

	var calls []*taskstate.Call

	seen := make(map[*taskstate.Call]bool)

	for _, job := range args[1:] {
		if _, ok := st.GetJobState(job); !ok {
			o.Warn("job not found: %s", job)

			continue
		}

		c := st.DeleteJobState(job)
		if !seen[c] {
			seen[c] = true
			calls = append(calls, c)
		}
	}

	errs := make([]error, 0, len(calls))
	for _, c := range calls {
		errs = append(errs, c.Wait(ctx))
	}

	return errors.Join(errs...)
}
