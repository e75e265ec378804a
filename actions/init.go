package actions

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/vcnkl/coalesce/config"
	"github.com/vcnkl/coalesce/logger"
)

type InitAction struct {
	path  string
	fs    afero.Fs
	log   logger.Logger
	force bool
}

func NewInitAction(path string, fs afero.Fs, log logger.Logger, force bool) *InitAction {
	if path == "" {
		path = config.DefaultFile
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &InitAction{
		path:  path,
		fs:    fs,
		log:   log,
		force: force,
	}
}

// Execute writes the default configuration and creates the slice directory
// it names.
func (a *InitAction) Execute() error {
	if err := config.WriteDefault(a.fs, a.path, a.force); err != nil {
		return err
	}
	a.log.Info("wrote config", logger.String("path", a.path))

	dir := filepath.Join(filepath.Dir(a.path), config.Default().Store.Dir)
	if err := a.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	a.log.Info("created slice directory", logger.String("path", dir))
	return nil
}
