package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/raymondhs/char-rnn/internal/charrnn"
	"github.com/raymondhs/char-rnn/internal/inference"
	"github.com/raymondhs/char-rnn/internal/logger"
	"github.com/raymondhs/char-rnn/internal/toy"
)

const benchmarkText = "the quick brown fox jumps over the lazy dog. alice and bob moved to new york in 2019."

type benchmarkOptions struct {
	warmup int
	runs   int
	text   string
	beams  []int
	temp   float64
}

func benchmarkCmd() *cli.Command {
	var (
		opts     benchmarkOptions
		beamList string
		useToy   bool
		toyCell  string
		toyDims  int
	)

	flags := append(checkpointFlags(),
		&cli.IntFlag{
			Name:        "warmup",
			Usage:       "number of warmup runs",
			Value:       1,
			Destination: &opts.warmup,
		},
		&cli.IntFlag{
			Name:        "runs",
			Usage:       "number of benchmark runs per beam size",
			Value:       3,
			Destination: &opts.runs,
		},
		&cli.StringFlag{
			Name:        "text",
			Aliases:     []string{"p"},
			Usage:       "lowercased line to recase on every run",
			Value:       benchmarkText,
			Destination: &opts.text,
		},
		&cli.StringFlag{
			Name:        "beam-sizes",
			Usage:       "comma-separated beam sizes to measure",
			Value:       "1,4,8",
			Destination: &beamList,
		},
		&cli.FloatFlag{
			Name:        "temperature",
			Aliases:     []string{"t"},
			Value:       inference.DefaultTemperature,
			Destination: &opts.temp,
		},
		&cli.BoolFlag{
			Name:        "toy",
			Usage:       "benchmark a randomly initialised checkpoint instead of a real one",
			Destination: &useToy,
		},
		&cli.StringFlag{
			Name:        "toy-cell",
			Usage:       "cell of the --toy checkpoint (lstm, gru, rnn)",
			Value:       string(charrnn.LSTM),
			Destination: &toyCell,
		},
		&cli.IntFlag{
			Name:        "toy-hidden",
			Usage:       "rnn size of the --toy checkpoint",
			Value:       128,
			Destination: &toyDims,
		},
	)

	return &cli.Command{
		Name:  "benchmark",
		Usage: "Measure decoding throughput across beam sizes",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyCheckpointConfig(cmd, fileConfig)

			beams, err := parseBeamSizes(beamList)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			opts.beams = beams

			var path string
			if useToy {
				dir, err := os.MkdirTemp("", "truecase-bench-*")
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				defer func() { _ = os.RemoveAll(dir) }()
				path, err = toy.Write(dir, "toy", toy.Options{Cell: charrnn.Cell(toyCell), Layers: 2, Hidden: toyDims, Seed: 1})
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: build toy checkpoint: %v", err), 1)
				}
			} else {
				path, err = resolveCheckpointPath(checkpointPath, modelsPath, os.Stdin, os.Stderr)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: resolve checkpoint: %v", err), 1)
				}
			}

			log.Info("loading checkpoint for benchmark", "path", path)
			loadStart := time.Now()
			lr, err := inference.Loader{MetaPath: metaPath, Logger: log}.Load(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: load checkpoint: %v", err), 1)
			}
			defer func() { _ = lr.Engine.Close() }()

			w := cmd.Root().Writer
			_, _ = fmt.Fprintln(w, "=== truecase benchmark ===")
			_, _ = fmt.Fprintf(w, "Checkpoint: %s (%s, %dx%d, vocab %d)\n", path, lr.Model.Cell(), lr.Model.Layers(), lr.Model.Hidden(), lr.Model.VocabSize())
			_, _ = fmt.Fprintf(w, "CPUs:       %d\n", runtime.NumCPU())
			_, _ = fmt.Fprintf(w, "GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))
			_, _ = fmt.Fprintf(w, "Load:       %s\n", time.Since(loadStart).Round(time.Millisecond))
			_, _ = fmt.Fprintf(w, "Characters: %d\n\n", len([]rune(opts.text)))

			if err := runBenchmark(ctx, w, lr.Engine, opts, log); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)
			_, _ = fmt.Fprintf(w, "\nMemory: %.1f MB alloc, %.1f MB sys\n",
				float64(mem.Alloc)/(1024*1024),
				float64(mem.Sys)/(1024*1024))
			return nil
		},
	}
}

func parseBeamSizes(list string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(part, "%d", &n); err != nil || n < 1 {
			return nil, fmt.Errorf("invalid beam size %q", part)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no beam sizes given")
	}
	return out, nil
}

func runBenchmark(ctx context.Context, w io.Writer, engine inference.Engine, opts benchmarkOptions, log logger.Logger) error {
	_, _ = fmt.Fprintf(w, "%-6s %10s %12s %10s %10s\n", "Beam", "chars/s", "cand/step", "peak", "avg time")
	_, _ = fmt.Fprintf(w, "%-6s %10s %12s %10s %10s\n", "----", "-------", "---------", "----", "--------")

	for _, beam := range opts.beams {
		req := inference.Request{Text: opts.text, BeamSize: beam, Temperature: opts.temp}
		for i := range opts.warmup {
			log.Debug("warmup run", "beam", beam, "run", i+1)
			if _, err := engine.Recase(ctx, &req); err != nil {
				return fmt.Errorf("warmup run %d: %w", i+1, err)
			}
		}

		var total inference.Stats
		for i := range opts.runs {
			log.Debug("benchmark run", "beam", beam, "run", i+1)
			res, err := engine.Recase(ctx, &req)
			if err != nil {
				return fmt.Errorf("benchmark run %d: %w", i+1, err)
			}
			total.Add(res.Stats)
		}
		if opts.runs == 0 {
			continue
		}
		perStep := 0.0
		if total.Steps > 0 {
			perStep = float64(total.Candidates) / float64(total.Steps)
		}
		avg := total.Duration / time.Duration(opts.runs)
		_, _ = fmt.Fprintf(w, "%-6d %10.1f %12.2f %10d %10s\n", beam, total.CPS, perStep, total.PeakBeam, avg.Round(time.Microsecond))
	}
	return nil
}
