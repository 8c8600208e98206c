package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/cpid/internal/api"
	"github.com/samcharles93/cpid/internal/logger"
	"github.com/samcharles93/cpid/internal/snorm"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		maxBody     int64
		maxSketch   int
		workers     int
		snormOpts   snormOptions
	)

	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve the decomposition HTTP API",
		Before: setup,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.Int64Flag{
				Name:        "max-body",
				Usage:       "maximum request body in bytes",
				Value:       api.DefaultMaxBodyBytes,
				Destination: &maxBody,
			},
			&cli.IntFlag{
				Name:        "max-sketch-dim",
				Usage:       "largest sketch dimension a request may ask for",
				Value:       api.DefaultMaxSketchDim,
				Destination: &maxSketch,
			},
			&cli.IntFlag{
				Name:        "workers",
				Usage:       "modes sketched concurrently per request (0 = GOMAXPROCS)",
				Destination: &workers,
			},
			&cli.Float64Flag{
				Name:        "tol",
				Usage:       "default s-norm tolerance",
				Value:       snorm.DefaultTol,
				Destination: &snormOpts.tol,
			},
			&cli.IntFlag{
				Name:        "max-iter",
				Usage:       "default s-norm sweep cap",
				Value:       snorm.DefaultMaxIter,
				Destination: &snormOpts.maxIter,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			applyServeConfig(c, fileConfig, &addr)
			applySNormConfig(c, fileConfig, &snormOpts)
			if fileConfig.Workers != nil && !c.IsSet("workers") {
				workers = *fileConfig.Workers
			}
			log := logger.FromContext(ctx)

			server := api.NewServer(api.Options{
				Log:          log,
				MaxBodyBytes: maxBody,
				MaxSketchDim: maxSketch,
				Workers:      workers,
				SNormTol:     snormOpts.tol,
				SNormMaxIter: snormOpts.maxIter,
			})
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
