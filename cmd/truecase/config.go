package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/raymondhs/char-rnn/internal/inference"
)

// Config represents the truecase configuration file
// (~/.config/truecase/config.yaml). Pointer fields distinguish "not set" from
// zero values.
type Config struct {
	ModelsDir  string `yaml:"models_dir"`
	Checkpoint string `yaml:"checkpoint"`

	// Decoding defaults
	BeamSize    *int     `yaml:"beam_size"`
	Temperature *float64 `yaml:"temperature"`
	Seed        *int64   `yaml:"seed"`
	KeepEmpty   *bool    `yaml:"keep_empty"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string   `yaml:"server_address"`
	CacheSize     *int     `yaml:"cache_size"`
	RateLimit     *float64 `yaml:"rate_limit"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "truecase", "config.yaml")
}

// LoadConfig reads the config file at path, or the default location when path
// is empty. A missing default file yields a zero Config; a missing explicit
// file is an error.
func LoadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = configPath()
	}
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func applyCheckpointConfig(c *cli.Command, cfg Config) {
	if cfg.ModelsDir != "" && !c.IsSet("models-path") {
		modelsPath = cfg.ModelsDir
	}
	if cfg.Checkpoint != "" && !c.IsSet("checkpoint") {
		checkpointPath = cfg.Checkpoint
	}
}

// applyRecaseConfig applies config file defaults to recase command variables
// when the corresponding CLI flag was not explicitly set. The returned options
// carry only the decoding values that were chosen by the user, so a
// checkpoint's own defaults still apply to the rest.
func applyRecaseConfig(c *cli.Command, cfg Config, o *decodeOptions, keepEmpty *bool) inference.RequestOptions {
	applyCheckpointConfig(c, cfg)
	var opts inference.RequestOptions
	switch {
	case c.IsSet("beam-size"):
		opts.BeamSize = &o.beamSize
	case cfg.BeamSize != nil:
		o.beamSize = *cfg.BeamSize
		opts.BeamSize = &o.beamSize
	}
	switch {
	case c.IsSet("temperature"):
		opts.Temperature = &o.temperature
	case cfg.Temperature != nil:
		o.temperature = *cfg.Temperature
		opts.Temperature = &o.temperature
	}
	if cfg.Seed != nil && !c.IsSet("seed") {
		o.seed = *cfg.Seed
	}
	if cfg.KeepEmpty != nil && !c.IsSet("keep-empty") {
		*keepEmpty = *cfg.KeepEmpty
	}
	return opts
}

func applyServeConfig(c *cli.Command, cfg Config, addr *string, cacheSize *int, rateLimit *float64) {
	applyCheckpointConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.CacheSize != nil && !c.IsSet("cache-size") {
		*cacheSize = *cfg.CacheSize
	}
	if cfg.RateLimit != nil && !c.IsSet("rate-limit") {
		*rateLimit = *cfg.RateLimit
	}
}
