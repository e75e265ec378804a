package subcmds

import (
	"github.com/urfave/cli/v2"

	"github.com/vcnkl/coalesce/actions"
	"github.com/vcnkl/coalesce/config"
	"github.com/vcnkl/coalesce/logger"
)

func InitCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write a default coalesce.yml",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Overwrite an existing config",
			},
		},
		Action: func(ctx *cli.Context) error {
			level := logger.InfoLevel
			if ctx.Bool("debug") {
				level = logger.DebugLevel
			}
			log := logger.New(level)

			path := ctx.String("config")
			if path == "" {
				path = config.DefaultFile
			}

			action := actions.NewInitAction(path, nil, log, ctx.Bool("force"))
			if err := action.Execute(); err != nil {
				return cli.Exit("error: "+err.Error(), 1)
			}
			return nil
		},
	}
}
