package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/buildstate/pkg/taskstate"
)

const shellPrompt = "buildstate> "

var shellCommands = []string{"ls", "get", "set", "rm", "flush", "stats", "path", "reload", "help", "exit", "quit"}

// prompter reads lines for the shell.
type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// ShellCmd returns the shell command.
func ShellCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("shell", flag.ContinueOnError),
		Usage: "shell <task>",
		Short: "Edit a task's state interactively",
		Long: "Open an interactive session on one task. Writes are queued and coalesced\n" +
			"in the background; use flush to wait for them. Type help for commands.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			err := requireArgs(args, ErrTaskRequired)
			if err != nil {
				return err
			}

			return execShell(ctx, io, a, args[0])
		},
	}
}

// defaultPrompter uses liner on an interactive stdin and a plain line reader
// otherwise.
func (a *app) defaultPrompter(in io.Reader) func(o *IO) (prompter, error) {
	return func(o *IO) (prompter, error) {
		if f, ok := in.(*os.File); ok && f == os.Stdin && liner.TerminalSupported() {
			return newLinerPrompter(a.historyFile()), nil
		}

		if in == nil {
			return nil, errors.New("shell needs an input stream")
		}

		return &scanPrompter{s: bufio.NewScanner(in), out: o.out}, nil
	}
}

func (a *app) historyFile() string {
	home := a.env["HOME"]
	if home == "" {
		return ""
	}

	return filepath.Join(home, ".buildstate_history")
}

type linerPrompter struct {
	*liner.State

	history string
}

func newLinerPrompter(history string) *linerPrompter {
	p := &linerPrompter{State: liner.NewLiner(), history: history}
	p.SetCtrlCAborts(true)
	p.SetCompleter(func(line string) []string {
		var out []string

		for _, c := range shellCommands {
			if strings.HasPrefix(c, strings.ToLower(line)) {
				out = append(out, c)
			}
		}

		return out
	})

	if history != "" {
		if f, err := os.Open(history); err == nil {
			_, _ = p.ReadHistory(f)
			_ = f.Close()
		}
	}

	return p
}

func (p *linerPrompter) Prompt(prompt string) (string, error) {
	line, err := p.State.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}

	return line, err
}

func (p *linerPrompter) Close() error {
	if p.history != "" {
		if f, err := os.Create(p.history); err == nil {
			_, _ = p.WriteHistory(f)
			_ = f.Close()
		}
	}

	return p.State.Close()
}

// scanPrompter reads lines from a non-interactive reader.
type scanPrompter struct {
	s   *bufio.Scanner
	out io.Writer
}

func (p *scanPrompter) Prompt(prompt string) (string, error) {
	_, _ = io.WriteString(p.out, prompt)

	if !p.s.Scan() {
		err := p.s.Err()
		if err == nil {
			err = io.EOF
		}

		return "", err
	}

	return p.s.Text(), nil
}

func (*scanPrompter) AppendHistory(string) {}

func (*scanPrompter) Close() error { return nil }

type shell struct {
	o  *IO
	st *taskstate.State

	// pending holds save Calls not yet reported by flush.
	pending []*taskstate.Call
}

func execShell(ctx context.Context, o *IO, a *app, task string) error {
	st, err := a.openState(ctx, task)
	if err != nil {
		return err
	}

	warnLoad(o, st)

	p, err := a.prompt(o)
	if err != nil {
		return err
	}

	defer func() { _ = p.Close() }()

	sh := &shell{o: o, st: st}

	o.Printf("%s: %d jobs (%s)\n", st.Path(), st.Len(), st.LoadOutcome())

	for {
		if ctx.Err() != nil {
			break
		}

		line, err := p.Prompt(shellPrompt)
		if errors.Is(err, io.EOF) {
			o.Println()

			break
		}

		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		p.AppendHistory(line)

		if sh.exec(ctx, line) {
			break
		}
	}

	return sh.flush(ctx)
}

// exec runs one shell line. Returns true when the session should end.
func (sh *shell) exec(ctx context.Context, line string) bool {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	var err error

	switch strings.ToLower(cmd) {
	case "exit", "quit", "q":
		return true
	case "help", "?":
		sh.help()
	case "ls":
		sh.ls()
	case "get":
		err = sh.get(args)
	case "set":
		err = sh.set(rest)
	case "rm":
		err = sh.rm(args)
	case "flush":
		err = sh.flush(ctx)
		if err == nil {
			sh.o.Println("ok")
		}
	case "stats":
		s := sh.st.Stats()
		sh.o.Printf("loads=%d writes=%d prunes=%d write_errors=%d coalesced=%d\n",
			s.Loads, s.Writes, s.Prunes, s.WriteErrors, s.Coalesced)
	case "path":
		sh.o.Println(sh.st.Path())
	case "reload":
		err = sh.flush(ctx)
		if err == nil {
			err = sh.st.LoadAll().Wait(ctx)
		}

		if err == nil {
			sh.o.Printf("%d jobs (%s)\n", sh.st.Len(), sh.st.LoadOutcome())
		}
	default:
		err = fmt.Errorf("%w: %s (type help for commands)", ErrUnknownCommand, cmd)
	}

	if err != nil {
		sh.o.ErrPrintln("error:", err)
	}

	return false
}

func (sh *shell) help() {
	sh.o.Println(`Commands:
  ls                  List jobs
  get <job> [path]    Print a job's state, or the value at a gjson path
  set <job> <json>    Record a job's state (written in the background)
  rm <job>...         Forget jobs
  flush               Wait for pending writes
  stats               Show write counters
  path                Print the state file path
  reload              Flush, then read the state file again
  exit                Flush and leave`)
}

func (sh *shell) ls() {
	for _, name := range sh.st.Names() {
		raw, _ := sh.st.GetJobState(name)
		sh.o.Printf("%s\t%s\n", name, raw)
	}
}

func (sh *shell) get(args []string) error {
	if len(args) == 0 {
		return ErrJobRequired
	}

	if len(args) > 2 {
		return fmt.Errorf("%w: %s", ErrTooManyArgs, strings.Join(args[2:], " "))
	}

	path := ""
	if len(args) == 2 {
		path = args[1]
	}

	raw, ok := sh.st.GetJobState(args[0])
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, args[0])
	}

	return printJobState(sh.o, raw, path, false)
}

func (sh *shell) set(rest string) error {
	job, value, _ := strings.Cut(rest, " ")
	if job == "" {
		return ErrJobRequired
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return ErrValueRequired
	}

	raw, err := jobValue(value, false)
	if err != nil {
		return err
	}

	c := sh.st.SetJobState(job, raw)
	if c.Finished() {
		return c.Err()
	}

	sh.track(c)

	return nil
}

func (sh *shell) rm(args []string) error {
	if len(args) == 0 {
		return ErrJobRequired
	}

	for _, job := range args {
		if _, ok := sh.st.GetJobState(job); !ok {
			sh.o.ErrPrintln("warning: job not found:", job)

			continue
		}

		sh.track(sh.st.DeleteJobState(job))
	}

	return nil
}

// track remembers c until the next flush. Coalesced requests share a Call,
// and Calls that already succeeded are dropped.
func (sh *shell) track(c *taskstate.Call) {
	kept := sh.pending[:0]

	for _, p := range sh.pending {
		if p == c || (p.Finished() && p.Err() == nil) {
			continue
		}

		kept = append(kept, p)
	}

	sh.pending = append(kept, c)
}

// flush waits for every tracked Call and for the State to go idle, and
// returns their distinct errors.
func (sh *shell) flush(ctx context.Context) error {
	calls := append(sh.pending, sh.st.Flush())
	sh.pending = nil

	var errs []error

	seen := make(map[string]bool)

	for _, c := range calls {
		err := c.Wait(ctx)
		if err == nil || seen[err.Error()] {
			continue
		}

		seen[err.Error()] = true
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
