package subcmds

import (
	"github.com/urfave/cli/v2"

	"github.com/vcnkl/coalesce/actions"
)

func ServeCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Accept PCM over websockets and store time-sliced WAV files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Usage:   "Listen address",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output directory for slices",
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, log, err := setup(ctx)
			if err != nil {
				return err
			}

			if ctx.IsSet("addr") {
				cfg.Serve.Addr = ctx.String("addr")
			}
			if ctx.IsSet("out") {
				cfg.Store.Dir = ctx.String("out")
			}

			action := actions.NewServeAction(cfg, log, nil)
			if err = action.Execute(ctx.Context, nil); err != nil {
				return cli.Exit("error: "+err.Error(), 1)
			}
			return nil
		},
	}
}
