package config

import (
	"fmt"
	"time"

	"github.com/vcnkl/coalesce/debounce"
)

type Config struct {
	Log      LogConfig      `koanf:"log"`
	Debounce DebounceConfig `koanf:"debounce"`
	Slice    SliceConfig    `koanf:"slice"`
	Watch    WatchConfig    `koanf:"watch"`
	Serve    ServeConfig    `koanf:"serve"`
	Store    StoreConfig    `koanf:"store"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

type DebounceConfig struct {
	Leading bool          `koanf:"leading"`
	Wait    time.Duration `koanf:"wait"`
	MaxWait time.Duration `koanf:"max_wait"`
}

type SliceConfig struct {
	TimeSlice  time.Duration `koanf:"time_slice"`
	SampleRate int           `koanf:"sample_rate"`
	Channels   int           `koanf:"channels"`
	BitDepth   int           `koanf:"bit_depth"`
	FrameSize  int           `koanf:"frame_size"`
}

type WatchConfig struct {
	Paths   []string      `koanf:"paths"`
	Ignore  []string      `koanf:"ignore"`
	Exec    string        `koanf:"exec"`
	Shell   string        `koanf:"shell"`
	Dotenv  string        `koanf:"dotenv"`
	Timeout time.Duration `koanf:"timeout"`
}

type ServeConfig struct {
	Addr      string `koanf:"addr"`
	ReadLimit int64  `koanf:"read_limit"`
}

type StoreConfig struct {
	Dir             string        `koanf:"dir"`
	ManifestWait    time.Duration `koanf:"manifest_wait"`
	ManifestMaxWait time.Duration `koanf:"manifest_max_wait"`
}

func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

func (c *Config) SetDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Debounce.Wait == 0 {
		c.Debounce.Wait = 100 * time.Millisecond
	}
	if c.Slice.TimeSlice == 0 {
		c.Slice.TimeSlice = time.Second
	}
	if c.Slice.SampleRate == 0 {
		c.Slice.SampleRate = 48000
	}
	if c.Slice.Channels == 0 {
		c.Slice.Channels = 1
	}
	if c.Slice.BitDepth == 0 {
		c.Slice.BitDepth = 16
	}
	if c.Slice.FrameSize == 0 {
		c.Slice.FrameSize = c.Slice.SampleRate / 50
	}
	if c.Watch.Paths == nil {
		c.Watch.Paths = []string{"."}
	}
	if c.Watch.Ignore == nil {
		c.Watch.Ignore = []string{}
	}
	if c.Watch.Shell == "" {
		c.Watch.Shell = "/bin/sh"
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = ":8080"
	}
	if c.Serve.ReadLimit == 0 {
		c.Serve.ReadLimit = 1 << 20
	}
	if c.Store.Dir == "" {
		c.Store.Dir = "slices"
	}
	if c.Store.ManifestWait == 0 {
		c.Store.ManifestWait = 250 * time.Millisecond
	}
	if c.Store.ManifestMaxWait == 0 {
		c.Store.ManifestMaxWait = 2 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.Debounce.Wait < 0 {
		return fmt.Errorf("debounce.wait must not be negative: %s", c.Debounce.Wait)
	}
	if c.Debounce.MaxWait < 0 {
		return fmt.Errorf("debounce.max_wait must not be negative: %s", c.Debounce.MaxWait)
	}
	if c.Slice.SampleRate <= 0 {
		return fmt.Errorf("slice.sample_rate must be positive: %d", c.Slice.SampleRate)
	}
	if c.Slice.Channels <= 0 {
		return fmt.Errorf("slice.channels must be positive: %d", c.Slice.Channels)
	}
	if c.Slice.BitDepth != 16 {
		return fmt.Errorf("slice.bit_depth %d is not supported (only 16)", c.Slice.BitDepth)
	}
	if c.Slice.FrameSize <= 0 {
		return fmt.Errorf("slice.frame_size must be positive: %d", c.Slice.FrameSize)
	}
	if c.Store.ManifestWait < 0 {
		return fmt.Errorf("store.manifest_wait must not be negative: %s", c.Store.ManifestWait)
	}
	if c.Store.ManifestMaxWait < 0 {
		return fmt.Errorf("store.manifest_max_wait must not be negative: %s", c.Store.ManifestMaxWait)
	}
	if c.Serve.ReadLimit <= 0 {
		return fmt.Errorf("serve.read_limit must be positive: %d", c.Serve.ReadLimit)
	}
	return nil
}

func (d DebounceConfig) Options() debounce.Options {
	return debounce.Options{
		Leading: d.Leading,
		Wait:    d.Wait,
		MaxWait: d.MaxWait,
	}
}
