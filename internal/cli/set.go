package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	flag "github.com/spf13/pflag"
)

// SetCmd returns the set command.
func SetCmd(a *app) *Command {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	fs.BoolP("string", "s", false, "Store the value as a JSON string")

	return &Command{
		Flags: fs,
		Usage: "set <task> <job> <json|->",
		Short: "Record a job's state",
		Long: "Record the state of a job and wait until it is written. Pass - to read\n" +
			"the value from stdin. A falsy value (null, false, 0, \"\") removes the job.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execSet(ctx, io, a, fs, args)
		},
	}
}

func execSet(ctx context.Context, o *IO, a *app, fs *flag.FlagSet, args []string) error {
	err := requireArgs(args, ErrTaskRequired, ErrJobRequired, ErrValueRequired)
	if err != nil {
		return err
	}

	value := args[2]
	if value == "-" {
		if o.in == nil {
			return ErrValueRequired
		}

		data, err := io.ReadAll(o.in)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}

		value = strings.TrimSpace(string(data))
	}

	asString, _ := fs.GetBool("string")

	raw, err := jobValue(value, asString)
	if err != nil {
		return err
	}

	st, err := a.openState(ctx, args[0])
	if err != nil {
		return err
	}

	warnLoad(o, st)

	return st.SetJobState(args[1], raw).Wait(ctx)
}

// jobValue turns a command line value into the JSON to store.
func jobValue(value string, asString bool) (json.RawMessage, error) {
	if asString {
		return json.Marshal(value)
	}

	if !gjson.Valid(value) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidJSON, value)
	}

	return json.RawMessage(value), nil
}
