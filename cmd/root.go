package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/vcnkl/coalesce/cmd/subcmds"
)

func NewApp() *cli.App {
	return &cli.App{
		Name:    "coalesce",
		Usage:   "Debounce filesystem events and slice audio streams into fixed-duration chunks",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to coalesce.yml (default: ./coalesce.yml if present)",
			},
			&cli.DurationFlag{
				Name:  "wait",
				Usage: "Quiet period before a debounced invocation",
			},
			&cli.DurationFlag{
				Name:  "max-wait",
				Usage: "Upper bound on how long an invocation may be postponed (0 = unbounded)",
			},
			&cli.BoolFlag{
				Name:  "leading",
				Usage: "Invoke on the leading edge of a burst",
			},
			&cli.DurationFlag{
				Name:  "time-slice",
				Usage: "Slice duration for captured audio (0 = emit every block)",
			},
		},
		Commands: []*cli.Command{
			subcmds.InitCmd(),
			subcmds.WatchCmd(),
			subcmds.RecordCmd(),
			subcmds.ServeCmd(),
			subcmds.VerifyCmd(),
		},
	}
}
