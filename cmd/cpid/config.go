package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the cpid configuration file (~/.config/cpid/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	// Decomposition defaults
	Rank        *int     `yaml:"rank"`
	SketchDim   *int     `yaml:"sketch_dim"`
	Strategy    string   `yaml:"strategy"`
	Factor      *float64 `yaml:"factor"`
	Sketch      string   `yaml:"sketch"`
	Density     *int     `yaml:"density"`
	SparseAware *bool    `yaml:"sparse_aware"`
	Seed        *uint64  `yaml:"seed"`
	Workers     *int     `yaml:"workers"`

	// s-norm defaults
	Tol     *float64 `yaml:"tol"`
	MaxIter *int     `yaml:"max_iter"`
	Init    string   `yaml:"init"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "cpid", "config.yaml")
}

// loadConfigFile reads path. A missing file yields a zero Config; a file
// that does not parse is an error.
func loadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") && !c.IsSet("verbose") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyDecompConfig applies config file defaults to decomposition flags
// that were not set explicitly.
func applyDecompConfig(c *cli.Command, cfg Config, o *decompOptions) {
	if cfg.Rank != nil && !c.IsSet("rank") {
		o.rank = *cfg.Rank
	}
	if cfg.SketchDim != nil && !c.IsSet("sketch-dim") {
		o.sketchDim = *cfg.SketchDim
	}
	if cfg.Strategy != "" && !c.IsSet("strategy") {
		o.strategy = cfg.Strategy
	}
	if cfg.Factor != nil && !c.IsSet("factor") {
		o.factor = *cfg.Factor
	}
	if cfg.Sketch != "" && !c.IsSet("sketch") {
		o.sketch = cfg.Sketch
	}
	if cfg.Density != nil && !c.IsSet("density") {
		o.density = *cfg.Density
	}
	if cfg.SparseAware != nil && !c.IsSet("sparse-aware") {
		o.sparseAware = *cfg.SparseAware
	}
	if cfg.Seed != nil && !c.IsSet("seed") {
		o.seed = *cfg.Seed
	}
	if cfg.Workers != nil && !c.IsSet("workers") {
		o.workers = *cfg.Workers
	}
}

func applySNormConfig(c *cli.Command, cfg Config, o *snormOptions) {
	if cfg.Tol != nil && !c.IsSet("tol") {
		o.tol = *cfg.Tol
	}
	if cfg.MaxIter != nil && !c.IsSet("max-iter") {
		o.maxIter = *cfg.MaxIter
	}
	if cfg.Init != "" && !c.IsSet("init") {
		o.init = cfg.Init
	}
}

func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}
