package actions

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/vcnkl/coalesce/config"
	"github.com/vcnkl/coalesce/logger"
	"github.com/vcnkl/coalesce/stores/slices"
)

type VerifyResult struct {
	Sessions int
	Slices   int
	Problems []slices.Problem
}

type VerifyAction struct {
	config *config.Config
	log    logger.Logger
	fs     afero.Fs
}

func NewVerifyAction(cfg *config.Config, log logger.Logger, fs afero.Fs) *VerifyAction {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &VerifyAction{
		config: cfg,
		log:    log,
		fs:     fs,
	}
}

// Execute checks the stored slices of the given sessions against the
// manifest. No sessions means every session in the manifest.
func (a *VerifyAction) Execute(sessions []string) (*VerifyResult, error) {
	store := slices.NewStore(a.fs, a.config.Store.Dir, slices.Options{Logger: a.log})
	if err := store.Load(); err != nil {
		return nil, err
	}

	known := make(map[string]bool)
	for _, id := range store.Sessions() {
		known[id] = true
	}
	if len(sessions) == 0 {
		sessions = store.Sessions()
	}

	result := &VerifyResult{}
	for _, id := range sessions {
		if !known[id] {
			return nil, fmt.Errorf("unknown session %s", id)
		}

		problems, err := store.Verify(id)
		if err != nil {
			return nil, err
		}
		for _, p := range problems {
			a.log.Warn("slice failed verification",
				logger.String("session", p.Entry.Session),
				logger.String("file", p.Entry.File),
				logger.String("reason", p.Reason))
		}

		result.Sessions++
		result.Slices += len(store.Entries(id))
		result.Problems = append(result.Problems, problems...)
	}

	a.log.Info("verified",
		logger.Int("sessions", result.Sessions),
		logger.Int("slices", result.Slices),
		logger.Int("problems", len(result.Problems)))
	return result, nil
}
