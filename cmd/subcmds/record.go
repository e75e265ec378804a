package subcmds

import (
	"runtime"

	"github.com/urfave/cli/v2"

	"github.com/vcnkl/coalesce/actions"
	"github.com/vcnkl/coalesce/logger"
)

func RecordCmd() *cli.Command {
	return &cli.Command{
		Name:      "record",
		Usage:     "Slice raw PCM input into WAV files plus a manifest",
		ArgsUsage: "[inputs...]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "PCM input file, - for stdin",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output directory for slices",
			},
			&cli.IntFlag{
				Name:  "sample-rate",
				Usage: "Input sample rate in Hz",
			},
			&cli.IntFlag{
				Name:  "channels",
				Usage: "Interleaved channel count",
			},
			&cli.IntFlag{
				Name:    "jobs",
				Aliases: []string{"j"},
				Value:   runtime.NumCPU(),
				Usage:   "Max inputs recorded in parallel",
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
			if ctx.IsSet("sample-rate") {
				cfg.Slice.SampleRate = ctx.Int("sample-rate")
				cfg.Slice.FrameSize = cfg.Slice.SampleRate / 50
			}
			if ctx.IsSet("channels") {
				cfg.Slice.Channels = ctx.Int("channels")
			}
			if err = cfg.Validate(); err != nil {
				return cli.Exit("error: "+err.Error(), 1)
			}

			inputs := append(ctx.StringSlice("input"), ctx.Args().Slice()...)

			action := actions.NewRecordAction(cfg, log, nil, ctx.Int("jobs"))
			results, err := action.Execute(ctx.Context, inputs)
			if err != nil {
				return cli.Exit("error: "+err.Error(), 1)
			}

			var slices int
			var frames int64
			for _, res := range results {
				slices += res.Slices
				frames += res.Frames
			}
			log.Info("record completed",
				logger.Int("inputs", len(results)),
				logger.Int("slices", slices),
				logger.Int64("frames", frames),
				logger.String("out", cfg.Store.Dir))
			return nil
		},
	}
}
