package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/cpid/internal/decomp"
	"github.com/samcharles93/cpid/internal/id"
	"github.com/samcharles93/cpid/internal/logger"
	"github.com/samcharles93/cpid/internal/sketch"
)

var (
	logLevel   string
	logFormat  string
	verbose    int
	configFile string

	// fileConfig is loaded by setup before every subcommand runs.
	fileConfig Config
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error); overrides -v",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "increase verbosity (-v info, -vv debug)",
			Config:  cli.BoolConfig{Count: &verbose},
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config file",
			Value:       configPath(),
			Destination: &configFile,
		},
	}
}

// setup loads the config file and installs the logger in the context. It is
// the Before hook of every subcommand so flags given after the subcommand
// name are already parsed.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := loadConfigFile(configFile)
	if err != nil {
		return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	fileConfig = cfg
	applyLoggingConfig(cmd, cfg)

	format, err := logger.ParseFormat(logFormat)
	if err != nil {
		return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	level := logger.FromVerbosity(verbose)
	if logLevel != "" {
		level = logger.ParseLevel(logLevel)
	}
	log := logger.NewWithFormat(os.Stderr, format, level)
	return logger.WithContext(ctx, log), nil
}

// decompOptions backs the flags shared by decompose and export.
type decompOptions struct {
	rank        int
	sketchDim   int
	strategy    string
	factor      float64
	sketch      string
	density     int
	sparseAware bool
	seed        uint64
	workers     int
}

func decompFlags(o *decompOptions) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "rank",
			Aliases:     []string{"k"},
			Usage:       "target rank",
			Destination: &o.rank,
		},
		&cli.IntFlag{
			Name:        "sketch-dim",
			Aliases:     []string{"l"},
			Usage:       fmt.Sprintf("sketch dimension (default rank+%d)", decomp.DefaultOversample),
			Destination: &o.sketchDim,
		},
		&cli.StringFlag{
			Name:        "strategy",
			Usage:       "rank-revealing strategy (column-pivoted-qr, strong-rrqr)",
			Value:       id.ColumnPivotedQR.String(),
			Destination: &o.strategy,
		},
		&cli.Float64Flag{
			Name:        "factor",
			Usage:       "strong RRQR entry bound",
			Value:       id.DefaultFactor,
			Destination: &o.factor,
		},
		&cli.StringFlag{
			Name:        "sketch",
			Usage:       "sketch family (gaussian, sparse-sign)",
			Value:       sketch.Gaussian.String(),
			Destination: &o.sketch,
		},
		&cli.IntFlag{
			Name:        "density",
			Usage:       fmt.Sprintf("nonzeros per sparse-sign column (default %d)", sketch.DefaultDensity),
			Destination: &o.density,
		},
		&cli.BoolFlag{
			Name:        "sparse-aware",
			Usage:       "skip sketch entries for all-zero factor rows",
			Destination: &o.sparseAware,
		},
		&cli.Uint64Flag{
			Name:        "seed",
			Usage:       "random seed",
			Value:       1,
			Destination: &o.seed,
		},
		&cli.IntFlag{
			Name:        "workers",
			Usage:       "modes sketched concurrently (0 = GOMAXPROCS)",
			Destination: &o.workers,
		},
	}
}

func (o decompOptions) config() (decomp.Config, error) {
	strategy, err := id.ParseStrategy(o.strategy)
	if err != nil {
		return decomp.Config{}, err
	}
	kind, err := sketch.ParseKind(o.sketch)
	if err != nil {
		return decomp.Config{}, err
	}
	cfg := decomp.Config{
		Rank:      o.rank,
		SketchDim: o.sketchDim,
		Strategy:  strategy,
		Factor:    o.factor,
		Sketch:    sketch.Operator{Kind: kind, Density: o.density, SparseAware: o.sparseAware},
		Seed:      o.seed,
		Workers:   o.workers,
	}
	return cfg, cfg.Validate()
}

// parseInts parses "5,5,4" or "5x5x4".
func parseInts(s string) ([]int, error) {
	fields := splitList(s)
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", f)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseFloats(s string) ([]float64, error) {
	fields := splitList(s)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", f)
		}
		out = append(out, v)
	}
	return out, nil
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == 'x' || r == ' '
	})
}
