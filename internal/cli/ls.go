package cli

import (
	"context"
	"encoding/json"

	"github.com/tidwall/pretty"

	flag "github.com/spf13/pflag"
)

// LsCmd returns the ls command.
func LsCmd(a *app) *Command {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	fs.Bool("json", false, "Print the whole state document")
	fs.Bool("names", false, "Print job names only")

	return &Command{
		Flags: fs,
		Usage: "ls <task> [flags]",
		Short: "List job states of a task",
		Long: "List every job recorded for a task in document order, one per line:\n" +
			"the job name, a tab, and its state as compact JSON.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execLs(ctx, io, a, fs, args)
		},
		Aliases: []string{"list"},
	}
}

func execLs(ctx context.Context, io *IO, a *app, fs *flag.FlagSet, args []string) error {
	err := requireArgs(args, ErrTaskRequired)
	if err != nil {
		return err
	}

	st, err := a.openState(ctx, args[0])
	if err != nil {
		return err
	}

	warnLoad(io, st)

	asJSON, _ := fs.GetBool("json")
	namesOnly, _ := fs.GetBool("names")

	if asJSON {
		doc := []byte("{")

		for i, name := range st.Names() {
			raw, _ := st.GetJobState(name)

			key, _ := json.Marshal(name)
			if i > 0 {
				doc = append(doc, ',')
			}

			doc = append(doc, key...)
			doc = append(doc, ':')
			doc = append(doc, raw...)
		}

		doc = append(doc, '}')
		io.Printf("%s", pretty.Pretty(doc))

		return nil
	}

	for _, name := range st.Names() {
		if namesOnly {
			io.Println(name)

			continue
		}

		raw, _ := st.GetJobState(name)
		io.Printf("%s\t%s\n", name, raw)
	}

	return nil
}
