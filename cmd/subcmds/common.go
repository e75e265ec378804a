package subcmds

import (
	"github.com/urfave/cli/v2"

	"github.com/vcnkl/coalesce/config"
	"github.com/vcnkl/coalesce/logger"
)

// setup loads the configuration, applies global flag overrides and builds
// the logger.
func setup(ctx *cli.Context) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return nil, nil, cli.Exit("error: "+err.Error(), 1)
	}

	if ctx.IsSet("wait") {
		cfg.Debounce.Wait = ctx.Duration("wait")
	}
	if ctx.IsSet("max-wait") {
		cfg.Debounce.MaxWait = ctx.Duration("max-wait")
	}
	if ctx.IsSet("leading") {
		cfg.Debounce.Leading = ctx.Bool("leading")
	}
	if ctx.IsSet("time-slice") {
		cfg.Slice.TimeSlice = ctx.Duration("time-slice")
	}
	if err = cfg.Validate(); err != nil {
		return nil, nil, cli.Exit("error: "+err.Error(), 1)
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, cli.Exit("error: "+err.Error(), 1)
	}
	if ctx.Bool("debug") {
		level = logger.DebugLevel
	}

	return cfg, logger.New(level), nil
}
