package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/raymondhs/char-rnn/internal/api"
	"github.com/raymondhs/char-rnn/internal/inference"
	"github.com/raymondhs/char-rnn/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		cacheSize   int
		rateLimit   float64
		rateBurst   int
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the recase REST API",
		Flags: append(checkpointFlags(),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.IntFlag{
				Name:        "cache-size",
				Usage:       "number of decoded lines kept in the LRU result cache (0 disables)",
				Value:       4096,
				Destination: &cacheSize,
			},
			&cli.FloatFlag{
				Name:        "rate-limit",
				Usage:       "requests per second admitted across all clients (0 disables)",
				Destination: &rateLimit,
			},
			&cli.IntFlag{
				Name:        "rate-burst",
				Usage:       "burst size for --rate-limit (default: the rate rounded down)",
				Destination: &rateBurst,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyServeConfig(cmd, fileConfig, &addr, &cacheSize, &rateLimit)

			provider := api.NewCachedEngineProvider(api.EngineProviderConfig{
				DefaultModelPath: checkpointPath,
				ModelsPath:       modelsPath,
				Loader:           inference.Loader{MetaPath: metaPath, Logger: log},
			})
			defer func() { _ = provider.Close() }()

			service, err := api.NewRecaseService(provider, cacheSize, log.With("component", "api"))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			server := api.NewServer(service)
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			if rateLimit > 0 {
				e.Use(api.RateLimit(rateLimit, rateBurst))
			}
			server.Register(e)

			log.Info("starting server", "address", addr, "cache_size", cacheSize, "rate_limit", rateLimit)
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
