package subcmds

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/vcnkl/coalesce/actions"
)

func VerifyCmd() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Check stored slices against the manifest digests",
		ArgsUsage: "[session...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Slice directory to verify",
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, log, err := setup(ctx)
			if err != nil {
				return err
			}

			if ctx.IsSet("out") {
				cfg.Store.Dir = ctx.String("out")
			}

			action := actions.NewVerifyAction(cfg, log, nil)
			result, err := action.Execute(ctx.Args().Slice())
			if err != nil {
				return cli.Exit("error: "+err.Error(), 1)
			}
			if len(result.Problems) > 0 {
				return cli.Exit(fmt.Sprintf("error: %d of %d slices failed verification", len(result.Problems), result.Slices), 1)
			}
			return nil
		},
	}
}
