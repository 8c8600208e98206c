package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"gonum.org/v1/gonum/floats"

	"github.com/samcharles93/cpid/internal/cp"
	"github.com/samcharles93/cpid/pkg/densebin"
)

func inspectCmd() *cli.Command {
	var (
		path      string
		showData  bool
		dataLimit int
	)

	return &cli.Command{
		Name:   "inspect",
		Usage:  "Describe a CP tensor JSON file or a densebin matrix",
		Before: setup,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "file",
				Aliases:     []string{"f"},
				Usage:       "file to inspect; densebin is detected by its magic",
				Required:    true,
				Destination: &path,
			},
			&cli.BoolFlag{Name: "data", Usage: "print leading values", Destination: &showData},
			&cli.IntFlag{Name: "limit", Usage: "values printed with --data", Value: 8, Destination: &dataLimit},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			isBin, err := hasDensebinMagic(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			w := bufio.NewWriter(os.Stdout)
			defer func() { _ = w.Flush() }()
			if isBin {
				return inspectDensebin(w, path, showData, dataLimit)
			}
			t, err := readTensor(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			inspectTensor(w, path, t, showData, dataLimit)
			return nil
		},
	}
}

func hasDensebinMagic(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()
	magic := make([]byte, len(densebin.Magic))
	if _, err := io.ReadFull(f, magic); err != nil {
		return false, nil
	}
	return string(magic) == densebin.Magic, nil
}

func inspectDensebin(w io.Writer, path string, showData bool, limit int) error {
	f, err := densebin.Open(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("error: open densebin: %v", err), 1)
	}
	defer func() { _ = f.Close() }()
	h := f.Header
	_, _ = fmt.Fprintf(w, "File:    %s\n", path)
	_, _ = fmt.Fprintf(w, "Format:  densebin v%d\n", h.Version)
	_, _ = fmt.Fprintf(w, "Shape:   %d x %d\n", h.Rows, h.Cols)
	_, _ = fmt.Fprintf(w, "Layout:  %s, %d-byte elements\n", h.Order, h.Width)
	if showData {
		r, c := f.Dims()
		n := 0
		for i := 0; i < r && n < limit; i++ {
			row := make([]string, 0, c)
			for j := 0; j < c && n < limit; j++ {
				row = append(row, fmt.Sprintf("%.6g", f.At(i, j)))
				n++
			}
			_, _ = fmt.Fprintf(w, "  row %d: %s\n", i, strings.Join(row, " "))
		}
	}
	return nil
}

func inspectTensor(w io.Writer, path string, t *cp.Tensor, showData bool, limit int) {
	weights := t.Weights()
	_, _ = fmt.Fprintf(w, "File:       %s\n", path)
	_, _ = fmt.Fprintf(w, "Format:     CP tensor JSON\n")
	_, _ = fmt.Fprintf(w, "Modes:      %d\n", t.Modes())
	_, _ = fmt.Fprintf(w, "Dims:       %v\n", t.Dims())
	_, _ = fmt.Fprintf(w, "Components: %d\n", t.Rank())
	_, _ = fmt.Fprintf(w, "Norm:       %.6g\n", t.Norm())
	_, _ = fmt.Fprintf(w, "Weights:    max %.6g  min %.6g\n", floats.Max(weights), floats.Min(weights))
	if showData {
		n := min(limit, len(weights))
		_, _ = fmt.Fprintf(w, "  leading weights: %v\n", weights[:n])
	}
}
