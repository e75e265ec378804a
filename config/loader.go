package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/afero"
)

const (
	DefaultFile = "coalesce.yml"
	EnvPrefix   = "COALESCE_"
)

const DefaultYAML = `log:
  level: info

debounce:
  leading: false
  wait: 100ms
  max_wait: 0s

slice:
  time_slice: 1s
  sample_rate: 48000
  channels: 1
  bit_depth: 16
  frame_size: 960

watch:
  paths:
    - .
  ignore:
    - .git
    - slices
  exec: ""
  shell: /bin/sh
  timeout: 0s

serve:
  addr: :8080
  read_limit: 1048576

store:
  dir: slices
  manifest_wait: 250ms
  manifest_max_wait: 2s
`

// Load reads path (or coalesce.yml in the working directory when path is
// empty and the file exists), then overlays COALESCE_ environment variables.
// Nested keys use a double underscore: COALESCE_DEBOUNCE__MAX_WAIT.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	if _, err := os.Stat(path); err == nil {
		if err = k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to read config at %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("failed to read config at %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.SetDefaults()
	// Zero is meaningful for these keys, so an explicit value survives
	// SetDefaults.
	durations := map[string]*time.Duration{
		"slice.time_slice":        &cfg.Slice.TimeSlice,
		"debounce.wait":           &cfg.Debounce.Wait,
		"store.manifest_wait":     &cfg.Store.ManifestWait,
		"store.manifest_max_wait": &cfg.Store.ManifestMaxWait,
	}
	for key, field := range durations {
		if k.Exists(key) {
			*field = k.Duration(key)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// WriteDefault writes DefaultYAML to path. It refuses to overwrite an
// existing file unless force is set.
func WriteDefault(fs afero.Fs, path string, force bool) error {
	if !force {
		if exists, _ := afero.Exists(fs, path); exists {
			return fmt.Errorf("config already exists at %s", path)
		}
	}
	if err := afero.WriteFile(fs, path, []byte(DefaultYAML), 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}
