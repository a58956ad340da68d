package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/buildstate/internal/config"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(a *app) *Command {
	fs := flag.NewFlagSet("print-config", flag.ContinueOnError)
	fs.Bool("json", false, "Print the merged config file contents")

	return &Command{
		Flags: fs,
		Usage: "print-config [flags]",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			return execPrintConfig(io, a.cfg, fs)
		},
	}
}

func execPrintConfig(io *IO, cfg config.Config, fs *flag.FlagSet) error {
	asJSON, _ := fs.GetBool("json")
	if asJSON {
		s, err := config.Format(cfg)
		if err != nil {
			return err
		}

		io.Println(s)

		return nil
	}

	io.Println("effective_cwd=" + cfg.EffectiveCwd)
	io.Println("state_dir=" + cfg.StateDirAbs)
	io.Println("log_level=" + cfg.LogLevel)

	io.Println("")
	io.Println("# sources")

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
		io.Println("(defaults only)")
	} else {
		if cfg.Sources.Global != "" {
			io.Println("global_config=" + cfg.Sources.Global)
		}

		if cfg.Sources.Project != "" {
			io.Println("project_config=" + cfg.Sources.Project)
		}
	}

	return nil
}
