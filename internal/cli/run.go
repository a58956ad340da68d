// Package cli implements the buildstate command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/apex/log"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/buildstate/internal/config"
	"github.com/calvinalkan/buildstate/pkg/taskstate"
)

// app carries what every command needs.
type app struct {
	cfg    config.Config
	log    log.Interface
	fs     taskstate.FS
	env    map[string]string
	prompt func(o *IO) (prompter, error)
}

// Run is the main entry point. Returns the exit code.
//
// A value received on sigCh cancels the command's context. Waits for
// pending writes stop early in that case; the writes themselves still finish
// in the background.
func Run(in io.Reader, out, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	if len(args) > 0 {
		args = args[1:]
	}

	globals, err := parseGlobalFlags(args)
	if err != nil {
		fprintln(errOut, "error:", err)
		fprintln(errOut)
		printUsage(errOut)

		return 1
	}

	if globals.help || len(globals.rest) == 0 {
		printUsage(out)

		return 0
	}

	cfg, err := config.Load(config.Input{
		WorkDirOverride:  globals.workDir,
		ConfigPath:       globals.configPath,
		StateDirOverride: globals.stateDir,
		LogLevelOverride: globals.logLevel,
		Env:              env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	a := &app{
		cfg: cfg,
		log: newLogger(errOut, cfg.Level()),
		fs:  taskstate.NewRealFS(),
		env: env,
	}
	a.prompt = a.defaultPrompter(in)

	commands := a.commands()
	name := globals.rest[0]

	cmd, ok := commands[name]
	if !ok {
		fprintln(errOut, "error:", fmt.Errorf("%w: %s", ErrUnknownCommand, name))
		fprintln(errOut)
		printUsage(errOut)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	return cmd.Run(ctx, NewIO(in, out, errOut), globals.rest[1:])
}

func (a *app) commands() map[string]*Command {
	list := a.commandList()

	m := make(map[string]*Command, len(list))
	for _, c := range list {
		m[c.Name()] = c

		for _, alias := range c.Aliases {
			m[alias] = c
		}
	}

	return m
}

func (a *app) commandList() []*Command {
	return []*Command{
		LsCmd(a),
		GetCmd(a),
		SetCmd(a),
		RmCmd(a),
		TasksCmd(a),
		ShellCmd(a),
		PrintConfigCmd(a),
	}
}

type globalFlags struct {
	workDir    string
	configPath string
	stateDir   string
	logLevel   string
	help       bool
	rest       []string
}

// parseGlobalFlags parses flags up to the first non-flag argument, which
// starts the command.
func parseGlobalFlags(args []string) (globalFlags, error) {
	var g globalFlags

	fs := flag.NewFlagSet("buildstate", flag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(io.Discard)

	fs.StringVarP(&g.workDir, "cwd", "C", "", "Run as if started in `dir`")
	fs.StringVarP(&g.configPath, "config", "c", "", "Use config `file`")
	fs.StringVar(&g.stateDir, "state-dir", "", "Override the state directory")
	fs.StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error")
	fs.BoolVarP(&g.help, "help", "h", false, "Show help")

	err := fs.Parse(args)
	if err != nil {
		return globalFlags{}, err
	}

	g.rest = fs.Args()

	return g, nil
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer) {
	fprintln(w, `buildstate - inspect and edit incremental build job state

Usage: buildstate [options] <command> [args]

Options:
  -C, --cwd <dir>        Run as if started in <dir>
  -c, --config <file>    Use specified config file
      --state-dir <dir>  Override the state directory
      --log-level <lvl>  debug, info, warn or error (env: BUILDSTATE_LOG)

Commands:`)

	for _, c := range (&app{}).commandList() {
		fprintln(w, c.HelpLine())
	}
}

// requireArgs checks the positional argument count.
func requireArgs(args []string, names ...error) error {
	if len(args) < len(names) {
		return names[len(args)]
	}

	if len(args) > len(names) {
		return fmt.Errorf("%w: %s", ErrTooManyArgs, strings.Join(args[len(names):], " "))
	}

	return nil
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
