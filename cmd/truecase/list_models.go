package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/raymondhs/char-rnn/internal/charrnn"
	"github.com/raymondhs/char-rnn/internal/logger"
)

func listModelsCmd() *cli.Command {
	return &cli.Command{
		Name:    "list-models",
		Aliases: []string{"ls", "models"},
		Usage:   "List available .safetensors checkpoints",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "models-path",
				Aliases:     []string{"path"},
				Usage:       "directory containing .safetensors checkpoints",
				Destination: &modelsPath,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			w := cmd.Root().Writer

			dir := strings.TrimSpace(modelsPath)
			if dir == "" && !cmd.IsSet("models-path") {
				dir = fileConfig.ModelsDir
			}
			if dir == "" {
				dir = strings.TrimSpace(os.Getenv(envModelsDir))
			}
			if dir == "" {
				return cli.Exit("error: --models-path is required unless "+envModelsDir+" is set", 1)
			}

			models, err := discoverCheckpoints(dir)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if len(models) == 0 {
				log.Info("no checkpoints found", "path", dir)
				return nil
			}

			_, _ = fmt.Fprintf(w, "Checkpoints in %s:\n\n", dir)
			for _, m := range models {
				name := filepath.Base(m)
				info, err := os.Stat(m)
				if err != nil {
					_, _ = fmt.Fprintf(w, "  %s\n", name)
					continue
				}
				size := formatModelSize(info.Size())

				if meta, err := charrnn.LoadMeta(charrnn.MetaPath(m)); err == nil {
					_, _ = fmt.Fprintf(w, "  %-40s %8s  (%s, %dx%d, vocab %d)\n",
						name, size, meta.Cell(), meta.NumLayers, meta.RNNSize, len(meta.Vocab))
				} else {
					_, _ = fmt.Fprintf(w, "  %-40s %8s  (no metadata)\n", name, size)
				}
			}
			_, _ = fmt.Fprintf(w, "\n%d checkpoint(s) found\n", len(models))
			return nil
		},
	}
}

func formatModelSize(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
