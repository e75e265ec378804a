package actions

import (
	"context"
	"net"
	"time"

	"github.com/spf13/afero"

	"github.com/vcnkl/coalesce/capture"
	"github.com/vcnkl/coalesce/config"
	"github.com/vcnkl/coalesce/logger"
	"github.com/vcnkl/coalesce/server"
	"github.com/vcnkl/coalesce/stores/slices"
)

type ServeAction struct {
	config *config.Config
	log    logger.Logger
	fs     afero.Fs
}

func NewServeAction(cfg *config.Config, log logger.Logger, fs afero.Fs) *ServeAction {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &ServeAction{
		config: cfg,
		log:    log,
		fs:     fs,
	}
}

// Execute serves until ctx is done. A nil ln listens on the configured
// address.
func (a *ServeAction) Execute(ctx context.Context, ln net.Listener) error {
	start := time.Now()

	store := slices.NewStore(a.fs, a.config.Store.Dir, slices.Options{
		ManifestWait:    a.config.Store.ManifestWait,
		ManifestMaxWait: a.config.Store.ManifestMaxWait,
		Logger:          a.log,
	})
	if err := store.Load(); err != nil {
		return err
	}

	srv, err := server.New(server.Options{
		Addr:      a.config.Serve.Addr,
		ReadLimit: a.config.Serve.ReadLimit,
		Format: capture.Format{
			SampleRate: a.config.Slice.SampleRate,
			Channels:   a.config.Slice.Channels,
			BitDepth:   a.config.Slice.BitDepth,
		},
		TimeSlice: a.config.Slice.TimeSlice,
		Sink:      store,
		Logger:    a.log,
	})
	if err != nil {
		return err
	}

	if ln != nil {
		err = srv.Serve(ctx, ln)
	} else {
		err = srv.ListenAndServe(ctx)
	}
	if closeErr := store.Close(); err == nil {
		err = closeErr
	}

	a.log.Info("serve stopped",
		logger.Int("sessions", len(store.Sessions())),
		logger.Duration("duration", time.Since(start)))
	return err
}
