package exec

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/vcnkl/coalesce/logger"
)

// ChangedPathEnv carries the path that triggered a run.
const ChangedPathEnv = "COALESCE_CHANGED_PATH"

// Runner runs a command at most once at a time. Triggers that arrive while
// it is running collapse into a single rerun with the latest path.
type Runner struct {
	cmd  string
	opts ShellOptions
	log  logger.Logger
	wg   sync.WaitGroup

	mu       sync.Mutex
	running  bool
	closed   bool
	rerun    bool
	nextPath string
	runs     int
	lastErr  error
}

func NewRunner(cmd string, opts ShellOptions, log logger.Logger) *Runner {
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{cmd: cmd, opts: opts, log: log.WithPrefix("exec")}
}

// Trigger returns immediately; the command runs in the background. It is a
// no-op once ctx is done or the runner has been stopped.
func (r *Runner) Trigger(ctx context.Context, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || ctx.Err() != nil {
		return
	}
	if r.running {
		r.rerun = true
		r.nextPath = path
		return
	}
	r.running = true
	r.wg.Add(1)
	go r.loop(ctx, path)
}

// Wait blocks until no command is running or queued.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Stop refuses further triggers, drops a queued rerun and waits for the
// running command to exit.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.closed = true
	r.rerun = false
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Runner) Runs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

func (r *Runner) LastErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *Runner) loop(ctx context.Context, path string) {
	defer r.wg.Done()

	for {
		err := r.run(ctx, path)

		r.mu.Lock()
		r.runs++
		r.lastErr = err
		if !r.rerun || r.closed || ctx.Err() != nil {
			r.running = false
			r.rerun = false
			r.mu.Unlock()
			return
		}
		r.rerun = false
		path = r.nextPath
		r.mu.Unlock()
	}
}

func (r *Runner) run(ctx context.Context, path string) error {
	opts := r.opts
	opts.Env = MergeEnv(r.opts.Env, []string{ChangedPathEnv + "=" + path})

	r.log.Info("running command", logger.String("cmd", r.cmd), logger.String("changed", path))
	start := time.Now()
	err := RunCommand(ctx, r.cmd, opts)
	if err != nil {
		r.log.Error("command failed", logger.Duration("duration", time.Since(start)), logger.Err(err))
		return err
	}
	r.log.Info("command finished", logger.Duration("duration", time.Since(start)))
	return nil
}
