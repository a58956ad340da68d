package cli

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	flag "github.com/spf13/pflag"
)

// GetCmd returns the get command.
func GetCmd(a *app) *Command {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.StringP("path", "p", "", "Print only the value at a gjson `path`, e.g. inputs.0.hash")
	fs.Bool("raw", false, "Print strings without quotes")

	return &Command{
		Flags: fs,
		Usage: "get <task> <job> [flags]",
		Short: "Print one job's state",
		Long:  "Print the recorded state of a job as indented JSON.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execGet(ctx, io, a, fs, args)
		},
	}
}

func execGet(ctx context.Context, io *IO, a *app, fs *flag.FlagSet, args []string) error {
	err := requireArgs(args, ErrTaskRequired, ErrJobRequired)
	if err != nil {
		return err
	}

	st, err := a.openState(ctx, args[0])
	if err != nil {
		return err
	}

	warnLoad(io, st)

	job := args[1]

	raw, ok := st.GetJobState(job)
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, job)
	}

	path, _ := fs.GetString("path")
	unquote, _ := fs.GetBool("raw")

	return printJobState(io, raw, path, unquote)
}

// printJobState prints raw, or the value at a gjson path inside it, as
// indented JSON.
func printJobState(io *IO, raw []byte, path string, unquote bool) error {
	out := raw

	if path != "" {
		res := gjson.GetBytes(raw, path)
		if !res.Exists() {
			return fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}

		if unquote && res.Type == gjson.String {
			io.Println(res.Str)

			return nil
		}

		out = []byte(res.Raw)
	}

	io.Printf("%s", pretty.Pretty(out))

	return nil
}
