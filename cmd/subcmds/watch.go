package subcmds

import (
	"github.com/urfave/cli/v2"

	"github.com/vcnkl/coalesce/actions"
	"github.com/vcnkl/coalesce/logger"
)

func WatchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Watch paths and run a command on debounced changes",
		ArgsUsage: "[paths...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "exec",
				Aliases: []string{"x"},
				Usage:   "Shell command to run after each burst of changes",
			},
			&cli.StringSliceFlag{
				Name:  "ignore",
				Usage: "Additional ignore patterns",
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, log, err := setup(ctx)
			if err != nil {
				return err
			}

			if ctx.Args().Len() > 0 {
				cfg.Watch.Paths = ctx.Args().Slice()
			}
			if ctx.IsSet("exec") {
				cfg.Watch.Exec = ctx.String("exec")
			}
			cfg.Watch.Ignore = append(cfg.Watch.Ignore, ctx.StringSlice("ignore")...)

			action := actions.NewWatchAction(cfg, log)
			result, err := action.Execute(ctx.Context)
			if err != nil {
				return cli.Exit("error: "+err.Error(), 1)
			}

			log.Info("watch stopped",
				logger.Int("changes", result.Changes),
				logger.Int("runs", result.Runs),
				logger.Duration("duration", result.Duration))
			return nil
		},
	}
}
