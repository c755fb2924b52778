package main

import (
	"github.com/urfave/cli/v3"

	"github.com/raymondhs/char-rnn/internal/inference"
)

var (
	checkpointPath string
	modelsPath     string
	metaPath       string
	logLevel       string
	logFormat      string
	configFile     string
	debug          bool
)

func globalFlags() []cli.Flag {
	return append(loggingFlags(),
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml (default: $XDG_CONFIG_HOME/truecase/config.yaml)",
			Destination: &configFile,
		},
	)
}

func checkpointFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "checkpoint",
			Aliases:     []string{"m", "model"},
			Usage:       "path to .safetensors checkpoint",
			Destination: &checkpointPath,
		},
		&cli.StringFlag{
			Name:        "models-path",
			Aliases:     []string{"path"},
			Usage:       "directory containing .safetensors checkpoints",
			Destination: &modelsPath,
		},
		&cli.StringFlag{
			Name:        "meta",
			Usage:       "override path to the checkpoint's .json metadata",
			Destination: &metaPath,
		},
	}
}

type decodeOptions struct {
	beamSize    int
	temperature float64
	seed        int64
}

func decodeFlags(o *decodeOptions) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "beam-size",
			Aliases:     []string{"b", "beam"},
			Usage:       "number of hypotheses kept per step",
			Value:       inference.DefaultBeamSize,
			Destination: &o.beamSize,
		},
		&cli.FloatFlag{
			Name:        "temperature",
			Aliases:     []string{"t", "temp"},
			Usage:       "divides log-probabilities before scoring (<= 0 means 1)",
			Value:       inference.DefaultTemperature,
			Destination: &o.temperature,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "random seed (decoding is deterministic; recorded in logs)",
			Value:       123,
			Destination: &o.seed,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}
