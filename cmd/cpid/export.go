package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"gonum.org/v1/gonum/mat"

	"github.com/samcharles93/cpid/internal/logger"
	"github.com/samcharles93/cpid/internal/project"
	"github.com/samcharles93/cpid/pkg/densebin"
)

func exportCmd() *cli.Command {
	var (
		opts       decompOptions
		input      string
		output     string
		what       string
		colMajor   bool
		float32Out bool
	)

	return &cli.Command{
		Name:   "export",
		Usage:  "Write the mode-1 unfolding or the sketch Y of a CP tensor as densebin",
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
				Name:        "output",
				Aliases:     []string{"o"},
				Required:    true,
				Destination: &output,
			},
			&cli.StringFlag{
				Name:        "what",
				Usage:       "unfold (I1 x I2...IN) or sketch (l x R)",
				Value:       "unfold",
				Destination: &what,
			},
			&cli.BoolFlag{Name: "col-major", Usage: "store column-major", Destination: &colMajor},
			&cli.BoolFlag{Name: "float32", Usage: "store 4-byte elements", Destination: &float32Out},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			t, err := readTensor(input)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: read tensor: %v", err), 1)
			}

			var m *mat.Dense
			switch what {
			case "unfold", "unfolding":
				m = t.Unfold()
			case "sketch", "y":
				applyDecompConfig(c, fileConfig, &opts)
				if opts.rank == 0 {
					opts.rank = t.Rank()
				}
				cfg, err := opts.config()
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				m, err = project.Tensor(ctx, t, cfg.L(), project.Options{Operator: cfg.Sketch, Seed: cfg.Seed, Workers: cfg.Workers})
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: project: %v", err), 1)
				}
			default:
				return cli.Exit(fmt.Sprintf("error: --what must be unfold or sketch, got %q", what), 1)
			}

			wo := densebin.WriteOptions{}
			if colMajor {
				wo.Order = densebin.ColMajor
			}
			if float32Out {
				wo.Width = 4
			}
			if err := densebin.WriteFile(output, m, wo); err != nil {
				return cli.Exit(fmt.Sprintf("error: write: %v", err), 1)
			}
			r, cols := m.Dims()
			logger.FromContext(ctx).Info("exported", "what", what, "rows", r, "cols", cols, "path", output)
			return nil
		},
	}
}
