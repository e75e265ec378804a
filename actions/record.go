package actions

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/vcnkl/coalesce/capture"
	"github.com/vcnkl/coalesce/config"
	"github.com/vcnkl/coalesce/logger"
	"github.com/vcnkl/coalesce/models"
	"github.com/vcnkl/coalesce/stores/slices"
)

// StdinInput reads PCM from standard input.
const StdinInput = "-"

type RecordAction struct {
	config   *config.Config
	log      logger.Logger
	fs       afero.Fs
	stdin    io.Reader
	parallel int
}

func NewRecordAction(cfg *config.Config, log logger.Logger, fs afero.Fs, parallel int) *RecordAction {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if parallel <= 0 {
		parallel = 1
	}
	return &RecordAction{
		config:   cfg,
		log:      log,
		fs:       fs,
		stdin:    os.Stdin,
		parallel: parallel,
	}
}

// Execute slices every input into one shared store, one capture session per
// input. The first failing input cancels the rest.
func (a *RecordAction) Execute(ctx context.Context, inputs []string) ([]*models.Result, error) {
	if len(inputs) == 0 {
		inputs = []string{StdinInput}
	}

	store := slices.NewStore(a.fs, a.config.Store.Dir, slices.Options{
		ManifestWait:    a.config.Store.ManifestWait,
		ManifestMaxWait: a.config.Store.ManifestMaxWait,
		Logger:          a.log,
	})
	if err := store.Load(); err != nil {
		return nil, err
	}

	format := a.format()
	results := make([]*models.Result, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallel)
	for i, input := range inputs {
		i, input := i, input
		g.Go(func() error {
			res, err := a.record(gctx, input, format, store)
			results[i] = res
			return err
		})
	}

	err := g.Wait()
	if closeErr := store.Close(); err == nil {
		err = closeErr
	}
	return results, err
}

func (a *RecordAction) record(ctx context.Context, input string, format capture.Format, store *slices.Store) (*models.Result, error) {
	r, closeFn, err := a.open(input)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	dec, err := capture.NewDecoder(r, format, a.config.Slice.FrameSize)
	if err != nil {
		return nil, err
	}

	session, err := capture.NewSession(format, capture.SessionOptions{
		TimeSlice: a.config.Slice.TimeSlice,
		Sink:      store,
		Logger:    a.log.WithPrefix("record"),
	})
	if err != nil {
		return nil, err
	}

	inputLog := a.log.With(logger.String("input", input), logger.String("session", session.ID()))
	inputLog.Info("recording...")

	err = capture.Run(ctx, dec, session)
	res := session.Result()
	if err != nil {
		inputLog.Error("recording failed", logger.Err(err))
		return res, err
	}

	inputLog.Info("recording finished",
		logger.Int("slices", res.Slices),
		logger.Int64("frames", res.Frames),
		logger.Duration("duration", res.Duration.Round(time.Millisecond)))
	return res, nil
}

func (a *RecordAction) open(input string) (io.Reader, func(), error) {
	if input == StdinInput {
		return a.stdin, func() {}, nil
	}
	f, err := a.fs.Open(input)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func (a *RecordAction) format() capture.Format {
	return capture.Format{
		SampleRate: a.config.Slice.SampleRate,
		Channels:   a.config.Slice.Channels,
		BitDepth:   a.config.Slice.BitDepth,
	}
}
