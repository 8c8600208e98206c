package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/cpid/internal/logger"
	"github.com/samcharles93/cpid/internal/report"
	"github.com/samcharles93/cpid/internal/snorm"
)

type snormOptions struct {
	tol     float64
	maxIter int
	init    string
	toCap   bool
}

func snormCmd() *cli.Command {
	var (
		opts       snormOptions
		input      string
		reportPath string
		strict     bool
	)

	return &cli.Command{
		Name:   "snorm",
		Usage:  "Estimate the spectral norm of a CP tensor by alternating power iteration",
		Before: setup,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "input",
				Aliases:     []string{"i"},
				Usage:       "CP tensor JSON file (- for stdin)",
				Value:       "-",
				Destination: &input,
			},
			&cli.Float64Flag{
				Name:        "tol",
				Usage:       "stop when a sweep changes the estimate by less than this",
				Value:       snorm.DefaultTol,
				Destination: &opts.tol,
			},
			&cli.IntFlag{
				Name:        "max-iter",
				Usage:       "maximum number of sweeps",
				Value:       snorm.DefaultMaxIter,
				Destination: &opts.maxIter,
			},
			&cli.StringFlag{
				Name:        "init",
				Usage:       "init policy (first-column, mean)",
				Value:       snorm.FirstColumn.String(),
				Destination: &opts.init,
			},
			&cli.BoolFlag{
				Name:        "run-to-cap",
				Usage:       "perform every sweep up to --max-iter",
				Destination: &opts.toCap,
			},
			&cli.StringFlag{
				Name:        "report",
				Usage:       "write the run report here instead of stdout",
				Destination: &reportPath,
			},
			&cli.BoolFlag{
				Name:        "strict",
				Usage:       "exit non-zero when the iteration cap is hit",
				Destination: &strict,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			applySNormConfig(c, fileConfig, &opts)
			policy, err := snorm.ParseInit(opts.init)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			t, err := readTensor(input)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: read tensor: %v", err), 1)
			}
			est := snorm.Options{
				Tol:      opts.tol,
				MaxIter:  opts.maxIter,
				Init:     policy,
				RunToCap: opts.toCap,
				Log:      logger.FromContext(ctx).With("op", "snorm"),
			}
			start := time.Now()
			res, err := snorm.Estimate(t, est)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: snorm: %v", err), 1)
			}
			if err := emitReport(reportPath, report.SNormRun(res, est.WithDefaults(), t.Dims(), time.Since(start), time.Now())); err != nil {
				return err
			}
			if strict {
				if w := res.Warning(); w != nil {
					return cli.Exit(fmt.Sprintf("error: %v", w), 2)
				}
			}
			return nil
		},
	}
}
