package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/raymondhs/char-rnn/internal/logger"
)

// fileConfig is populated by the root Before hook.
var fileConfig Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stderr).Run(ctx, os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newApp(logOut io.Writer) *cli.Command {
	return &cli.Command{
		Name:           "truecase",
		Usage:          "Character-level RNN truecaser",
		Flags:          globalFlags(),
		DefaultCommand: "recase",
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			cfg, err := LoadConfig(configFile)
			if err != nil {
				return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			fileConfig = cfg

			log, err := setupLogger(cmd, cfg, logOut)
			if err != nil {
				return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			return logger.WithContext(ctx, log), nil
		},
		Commands: []*cli.Command{
			recaseCmd(),
			serveCmd(),
			inspectCmd(),
			listModelsCmd(),
			benchmarkCmd(),
			versionCmd(),
		},
	}
}

// setupLogger resolves level and format with flag > config > default
// precedence. --debug wins over everything.
func setupLogger(cmd *cli.Command, cfg Config, w io.Writer) (logger.Logger, error) {
	level, format := logLevel, logFormat
	if cfg.LogLevel != "" && !cmd.IsSet("log-level") {
		level = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !cmd.IsSet("log-format") {
		format = cfg.LogFormat
	}
	if debug {
		level = "debug"
	}
	return logger.NewWithFormat(format, w, logger.ParseLevel(level))
}
