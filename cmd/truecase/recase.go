package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/raymondhs/char-rnn/internal/inference"
	"github.com/raymondhs/char-rnn/internal/logger"
)

func recaseCmd() *cli.Command {
	var (
		opts       decodeOptions
		inputPath  string
		outputPath string
		keepEmpty  bool
		verbose    bool
	)

	flags := append(checkpointFlags(), decodeFlags(&opts)...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "read lines from this file instead of stdin",
			Destination: &inputPath,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "write recased lines to this file instead of stdout",
			Destination: &outputPath,
		},
		&cli.BoolFlag{
			Name:        "keep-empty",
			Usage:       "echo empty input lines instead of skipping them",
			Destination: &keepEmpty,
		},
		&cli.BoolFlag{
			Name:        "verbose",
			Aliases:     []string{"v"},
			Usage:       "log per-line search statistics",
			Destination: &verbose,
		},
	)

	return &cli.Command{
		Name:  "recase",
		Usage: "Restore letter case of lowercased text, one line at a time",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			reqOpts := inference.ClampOptions(applyRecaseConfig(cmd, fileConfig, &opts, &keepEmpty), log)

			path, err := resolveCheckpointPath(checkpointPath, modelsPath, os.Stdin, os.Stderr)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: resolve checkpoint: %v", err), 1)
			}
			lr, err := inference.Loader{MetaPath: metaPath, Logger: log}.Load(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: load checkpoint: %v", err), 1)
			}
			defer func() { _ = lr.Engine.Close() }()

			resolved := inference.ResolveRequest(reqOpts, lr.GenerationDefaults)
			log.Debug("decoding configured",
				"checkpoint", path,
				"beam_size", resolved.BeamSize,
				"temperature", resolved.Temperature,
				"seed", opts.seed,
			)

			in := io.Reader(os.Stdin)
			if inputPath != "" && inputPath != "-" {
				f, err := os.Open(inputPath)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: open input: %v", err), 1)
				}
				defer func() { _ = f.Close() }()
				in = f
			}
			out := io.Writer(os.Stdout)
			if outputPath != "" && outputPath != "-" {
				f, err := os.Create(outputPath)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: create output: %v", err), 1)
				}
				defer func() { _ = f.Close() }()
				out = f
			}

			stats, err := recaseStream(ctx, lr.Engine, in, out, streamOptions{
				request:   reqOpts,
				defaults:  lr.GenerationDefaults,
				keepEmpty: keepEmpty,
				verbose:   verbose,
			}, log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: recase: %v", err), 1)
			}
			log.Info("recase finished",
				"characters", stats.Characters,
				"unknown", stats.Unknown,
				"oracle_calls", stats.OracleCalls,
				"duration", stats.Duration.Round(time.Millisecond),
				"chars_per_sec", fmt.Sprintf("%.1f", stats.CPS),
			)
			return nil
		},
	}
}

type streamOptions struct {
	request   inference.RequestOptions
	defaults  inference.GenDefaults
	keepEmpty bool
	verbose   bool
}

// recaseStream decodes r line by line and writes one output line per decoded
// input line, flushing after each so interactive use sees results promptly.
// Empty lines are skipped unless keepEmpty is set.
func recaseStream(ctx context.Context, engine inference.Engine, r io.Reader, w io.Writer, opts streamOptions, log logger.Logger) (inference.Stats, error) {
	var total inference.Stats
	reader := bufio.NewReader(r)
	writer := bufio.NewWriter(w)
	defer func() { _ = writer.Flush() }()

	for lineNo := 1; ; lineNo++ {
		raw, readErr := reader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return total, readErr
		}
		if raw == "" && errors.Is(readErr, io.EOF) {
			return total, nil
		}
		line := strings.TrimSuffix(strings.TrimSuffix(raw, "\n"), "\r")

		if line == "" {
			if opts.keepEmpty {
				if _, err := writer.WriteString("\n"); err != nil {
					return total, err
				}
			}
		} else {
			ro := opts.request
			ro.Text = line
			req := inference.ResolveRequest(ro, opts.defaults)
			res, err := engine.Recase(ctx, &req)
			if err != nil {
				return total, fmt.Errorf("line %d: %w", lineNo, err)
			}
			total.Add(res.Stats)

			attrs := []any{
				"line", lineNo,
				"characters", res.Stats.Characters,
				"unknown", res.Stats.Unknown,
				"oracle_calls", res.Stats.OracleCalls,
				"peak_beam", res.Stats.PeakBeam,
				"score", res.Score,
				"duration", res.Stats.Duration,
			}
			if opts.verbose {
				log.Info("line recased", attrs...)
			} else {
				log.Debug("line recased", attrs...)
			}
			if _, err := writer.WriteString(res.Text + "\n"); err != nil {
				return total, err
			}
		}
		if err := writer.Flush(); err != nil {
			return total, err
		}
		if errors.Is(readErr, io.EOF) {
			return total, nil
		}
	}
}
