package cli

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/buildstate/pkg/taskstate"
)

// TasksCmd returns the tasks command.
func TasksCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("tasks", flag.ContinueOnError),
		Usage: "tasks",
		Short: "List tasks with recorded state",
		Long: "List every task under the state directory that has a state file, with\n" +
			"its job count, file size and last modification.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			err := requireArgs(args)
			if err != nil {
				return err
			}

			return execTasks(ctx, io, a)
		},
	}
}

func execTasks(ctx context.Context, o *IO, a *app) error {
	entries, err := a.fs.ReadDir(a.cfg.StateDirAbs)
	if isNotExist(err) {
		return nil
	}

	if err != nil {
		return err
	}

	names := make([]string, 0, len(entries))

	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}

	sort.Strings(names)

	for _, name := range names {
		info, err := a.fs.Stat(filepath.Join(a.cfg.StateDirAbs, name, taskstate.FileName))
		if isNotExist(err) {
			continue
		}

		if err != nil {
			o.Warn("%s: %v", name, err)

			continue
		}

		st, err := a.openState(ctx, name)
		if err != nil {
			return err
		}

		warnLoad(o, st)

		o.Printf("%s\t%d jobs\t%s\t%s\n", name, st.Len(), humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime()))
	}

	return nil
}
