package main

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/cpid/internal/cp"
	"github.com/samcharles93/cpid/internal/logger"
	"github.com/samcharles93/cpid/internal/synth"
	"github.com/samcharles93/cpid/pkg/densebin"
)

func genCmd() *cli.Command {
	var (
		dims     string
		weights  string
		rank     int
		decay    float64
		zeroRows float64
		raw      bool
		seed     uint64
		output   string
	)

	return &cli.Command{
		Name:  "gen",
		Usage: "Generate synthetic inputs",
		Commands: []*cli.Command{
			{
				Name:   "tensor",
				Usage:  "Random CP tensor with Gaussian factors (JSON)",
				Before: setup,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "dims",
						Usage:       "mode sizes, e.g. 30,20,10",
						Required:    true,
						Destination: &dims,
					},
					&cli.StringFlag{
						Name:        "weights",
						Usage:       "explicit component weights, e.g. 5,3,1",
						Destination: &weights,
					},
					&cli.IntFlag{
						Name:        "rank",
						Aliases:     []string{"r"},
						Usage:       "number of components when --weights is not given",
						Value:       10,
						Destination: &rank,
					},
					&cli.Float64Flag{
						Name:        "decay",
						Usage:       "geometric weight ratio when --weights is not given",
						Value:       0.8,
						Destination: &decay,
					},
					&cli.Float64Flag{
						Name:        "zero-rows",
						Usage:       "fraction of factor rows set to zero",
						Destination: &zeroRows,
					},
					&cli.BoolFlag{
						Name:        "raw",
						Usage:       "keep factor columns unnormalized",
						Destination: &raw,
					},
					&cli.Uint64Flag{Name: "seed", Value: 1, Destination: &seed},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "-", Destination: &output},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					d, err := parseInts(dims)
					if err != nil {
						return cli.Exit(fmt.Sprintf("error: --dims: %v", err), 1)
					}
					w := synth.GeometricWeights(rank, 1, decay)
					if weights != "" {
						if w, err = parseFloats(weights); err != nil {
							return cli.Exit(fmt.Sprintf("error: --weights: %v", err), 1)
						}
					}
					t, err := synth.CP(seed, synth.CPOptions{Dims: d, Weights: w, ZeroRows: zeroRows, Raw: raw})
					if err != nil {
						return cli.Exit(fmt.Sprintf("error: %v", err), 1)
					}
					logger.FromContext(ctx).Info("generated tensor", "dims", d, "components", t.Rank())
					if err := writeOutput(output, func(wr io.Writer) error { return cp.Write(wr, t) }); err != nil {
						return cli.Exit(fmt.Sprintf("error: write tensor: %v", err), 1)
					}
					return nil
				},
			},
			genMatrixCmd(),
		},
	}
}

func genMatrixCmd() *cli.Command {
	var (
		rows, cols, rank int
		noise            float64
		seed             uint64
		output           string
		float32Out       bool
	)
	return &cli.Command{
		Name:   "matrix",
		Usage:  "Random low-rank dense matrix (densebin)",
		Before: setup,
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "rows", Value: 100, Destination: &rows},
			&cli.IntFlag{Name: "cols", Value: 80, Destination: &cols},
			&cli.IntFlag{Name: "rank", Aliases: []string{"r"}, Value: 5, Destination: &rank},
			&cli.Float64Flag{Name: "noise", Usage: "scale of additive Gaussian noise", Destination: &noise},
			&cli.Uint64Flag{Name: "seed", Value: 1, Destination: &seed},
			&cli.BoolFlag{Name: "float32", Usage: "store 4-byte elements", Destination: &float32Out},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Required: true, Destination: &output},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := synth.LowRank(seed, rows, cols, rank, noise)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			opts := densebin.WriteOptions{}
			if float32Out {
				opts.Width = 4
			}
			if err := densebin.WriteFile(output, a, opts); err != nil {
				return cli.Exit(fmt.Sprintf("error: write matrix: %v", err), 1)
			}
			logger.FromContext(ctx).Info("generated matrix", "rows", rows, "cols", cols, "rank", rank, "path", output)
			return nil
		},
	}
}
