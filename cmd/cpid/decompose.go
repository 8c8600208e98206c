package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/cpid/internal/cp"
	"github.com/samcharles93/cpid/internal/decomp"
	"github.com/samcharles93/cpid/internal/logger"
	"github.com/samcharles93/cpid/internal/report"
	"github.com/samcharles93/cpid/pkg/densebin"
)

func decomposeCmd() *cli.Command {
	var (
		opts       decompOptions
		input      string
		matrixPath string
		output     string
		columns    string
		interp     string
		reportPath string
		withError  bool
	)

	return &cli.Command{
		Name:   "decompose",
		Usage:  "Compute a rank-k interpolative decomposition of a CP tensor or a dense matrix",
		Before: setup,
		Flags: append(decompFlags(&opts),
			&cli.StringFlag{
				Name:        "input",
				Aliases:     []string{"i"},
				Usage:       "CP tensor JSON file (- for stdin)",
				Value:       "-",
				Destination: &input,
			},
			&cli.StringFlag{
				Name:        "matrix",
				Usage:       "decompose a densebin matrix instead of a CP tensor",
				Destination: &matrixPath,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "write the reduced CP tensor as JSON",
				Destination: &output,
			},
			&cli.StringFlag{
				Name:        "columns",
				Usage:       "write the selected matrix columns A[:,J] as densebin",
				Destination: &columns,
			},
			&cli.StringFlag{
				Name:        "interp",
				Usage:       "write the interpolation matrix P as densebin",
				Destination: &interp,
			},
			&cli.StringFlag{
				Name:        "report",
				Usage:       "write the run report here instead of stdout",
				Destination: &reportPath,
			},
			&cli.BoolFlag{
				Name:        "error",
				Usage:       "compute the relative Frobenius error of the reduced tensor",
				Destination: &withError,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			applyDecompConfig(c, fileConfig, &opts)
			cfg, err := opts.config()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			log := logger.FromContext(ctx)

			if matrixPath != "" {
				a, err := densebin.ReadFile(matrixPath)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: read matrix: %v", err), 1)
				}
				res, err := decomp.Matrix(ctx, a, cfg)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: decompose: %v", err), 1)
				}
				if columns != "" {
					if err := densebin.WriteFile(columns, res.Columns, densebin.WriteOptions{}); err != nil {
						return cli.Exit(fmt.Sprintf("error: write columns: %v", err), 1)
					}
				}
				if interp != "" {
					if err := densebin.WriteFile(interp, res.ID.P, densebin.WriteOptions{}); err != nil {
						return cli.Exit(fmt.Sprintf("error: write interp: %v", err), 1)
					}
				}
				log.Info("matrix decomposed", "rank", res.ID.K(), "sketch_residual", res.SketchResidual)
				return emitReport(reportPath, report.Matrix(res, cfg, time.Now()))
			}

			t, err := readTensor(input)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: read tensor: %v", err), 1)
			}
			res, err := decomp.Tensor(ctx, t, cfg)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: decompose: %v", err), 1)
			}
			var relErr *float64
			if withError {
				e, err := res.RelativeError(t)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: relative error: %v", err), 1)
				}
				relErr = &e
			}
			if output != "" {
				if err := writeOutput(output, func(w io.Writer) error { return cp.Write(w, res.Tensor) }); err != nil {
					return cli.Exit(fmt.Sprintf("error: write tensor: %v", err), 1)
				}
			}
			log.Info("tensor decomposed", "rank", res.ID.K(), "selected", res.ID.J, "sketch_residual", res.SketchResidual)
			return emitReport(reportPath, report.Tensor(res, cfg, t.Dims(), relErr, time.Now()))
		},
	}
}

func emitReport(path string, r report.Report) error {
	if err := writeOutput(path, func(w io.Writer) error { return report.Write(w, r) }); err != nil {
		return cli.Exit(fmt.Sprintf("error: write report: %v", err), 1)
	}
	return nil
}
