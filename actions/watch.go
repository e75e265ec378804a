package actions

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/vcnkl/coalesce/config"
	"github.com/vcnkl/coalesce/exec"
	"github.com/vcnkl/coalesce/logger"
	"github.com/vcnkl/coalesce/watcher"
)

type WatchResult struct {
	Changes  int
	Runs     int
	Duration time.Duration
}

type WatchAction struct {
	config *config.Config
	log    logger.Logger
}

func NewWatchAction(cfg *config.Config, log logger.Logger) *WatchAction {
	return &WatchAction{
		config: cfg,
		log:    log,
	}
}

// Execute watches until ctx is done. Each debounced change runs the
// configured command, if any.
func (a *WatchAction) Execute(ctx context.Context) (*WatchResult, error) {
	start := time.Now()
	cfg := a.config.Watch

	ignore := append([]string{}, cfg.Ignore...)
	if a.config.Store.Dir != "" {
		ignore = append(ignore, a.config.Store.Dir)
	}

	w, err := watcher.New(watcher.Options{
		Paths:    cfg.Paths,
		Ignore:   ignore,
		Debounce: a.config.Debounce.Options(),
		Logger:   a.log,
	})
	if err != nil {
		return nil, err
	}
	defer w.Stop()

	var runner *exec.Runner
	if cfg.Exec != "" {
		var dotenv []string
		if cfg.Dotenv != "" {
			dotenv = []string{cfg.Dotenv}
		}
		env, err := exec.Environ(dotenv, nil)
		if err != nil {
			return nil, err
		}

		cmdLog := a.log.WithPrefix("cmd")
		runner = exec.NewRunner(cfg.Exec, exec.ShellOptions{
			Env:     env,
			Shell:   cfg.Shell,
			Timeout: cfg.Timeout,
			Stdout:  cmdLog.Writer(),
			Stderr:  cmdLog.Writer(),
		}, a.log)
	}

	var changes atomic.Int64
	w.OnChange(func(path string) {
		a.log.Info("change", logger.String("path", path))
		changes.Add(1)
		if runner != nil {
			runner.Trigger(ctx, path)
		}
	})

	a.log.Info("watching...", logger.Int("paths", len(cfg.Paths)))
	if err = w.Start(ctx); err != nil {
		return nil, err
	}

	result := &WatchResult{Changes: int(changes.Load())}
	if runner != nil {
		runner.Stop()
		result.Runs = runner.Runs()
	}
	result.Duration = time.Since(start)
	return result, nil
}
