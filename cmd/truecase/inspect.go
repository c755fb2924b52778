package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/raymondhs/char-rnn/internal/charrnn"
	"github.com/raymondhs/char-rnn/internal/safetensors"
	"github.com/raymondhs/char-rnn/internal/vocab"
)

type inspectOptions struct {
	metaPath     string
	showTensors  bool
	showVocab    bool
	vocabLimit   int
	tensorFilter string
	asJSON       bool
}

func inspectCmd() *cli.Command {
	var (
		path string
		opts inspectOptions
		all  bool
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Print the metadata of a .safetensors checkpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "checkpoint",
				Aliases:     []string{"m", "model"},
				Usage:       "path to .safetensors checkpoint",
				Destination: &path,
				Required:    true,
			},
			&cli.StringFlag{Name: "meta", Usage: "override path to the checkpoint's .json metadata", Destination: &opts.metaPath},
			&cli.BoolFlag{Name: "all", Usage: "show tensors and the full vocabulary", Destination: &all},
			&cli.BoolFlag{Name: "tensors", Usage: "list tensor index", Destination: &opts.showTensors},
			&cli.StringFlag{Name: "tensor-filter", Usage: "substring filter for tensor listing", Destination: &opts.tensorFilter},
			&cli.BoolFlag{Name: "vocab", Usage: "list vocab entries", Destination: &opts.showVocab},
			&cli.IntFlag{Name: "vocab-limit", Usage: "limit vocab listing (0 = no limit)", Value: 0, Destination: &opts.vocabLimit},
			&cli.BoolFlag{Name: "json", Usage: "print a JSON summary instead of text", Destination: &opts.asJSON},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if all {
				opts.showTensors = true
				opts.showVocab = true
				opts.vocabLimit = 0
			}
			if _, err := os.Stat(path); err != nil {
				return cli.Exit(fmt.Sprintf("error: stat checkpoint %q: %v", path, err), 1)
			}
			if err := inspectCheckpoint(cmd.Root().Writer, path, opts); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			return nil
		},
	}
}

type inspectSummary struct {
	Path       string             `json:"path"`
	Cell       string             `json:"cell"`
	Layers     int                `json:"num_layers"`
	Hidden     int                `json:"rnn_size"`
	VocabSize  int                `json:"vocab_size"`
	Params     int                `json:"params"`
	Defaults   *charrnn.Defaults  `json:"defaults,omitempty"`
	Metadata   map[string]string  `json:"metadata,omitempty"`
	Tensors    []inspectTensor    `json:"tensors,omitempty"`
	Vocabulary []inspectVocabItem `json:"vocab,omitempty"`
}

type inspectTensor struct {
	Name  string `json:"name"`
	DType string `json:"dtype"`
	Shape []int  `json:"shape"`
	Bytes int64  `json:"bytes"`
}

type inspectVocabItem struct {
	ID    int    `json:"id"`
	Token string `json:"token"`
}

func inspectCheckpoint(w io.Writer, path string, opts inspectOptions) error {
	mp := opts.metaPath
	if mp == "" {
		mp = charrnn.MetaPath(path)
	}
	meta, err := charrnn.LoadMeta(mp)
	if err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}
	st, err := safetensors.Open(path)
	if err != nil {
		return fmt.Errorf("open checkpoint: %w", err)
	}
	defer func() { _ = st.Close() }()

	model, err := charrnn.FromSafetensors(meta, st)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	sum := inspectSummary{
		Path:      path,
		Cell:      string(model.Cell()),
		Layers:    model.Layers(),
		Hidden:    model.Hidden(),
		VocabSize: model.VocabSize(),
		Params:    model.Params(),
		Defaults:  meta.Defaults,
		Metadata:  st.Metadata,
	}
	if opts.showTensors {
		for _, name := range st.Names() {
			if opts.tensorFilter != "" && !strings.Contains(name, opts.tensorFilter) {
				continue
			}
			info, _ := st.Tensor(name)
			sum.Tensors = append(sum.Tensors, inspectTensor{
				Name:  name,
				DType: info.DType,
				Shape: info.Shape,
				Bytes: info.End - info.Start,
			})
		}
	}
	if opts.showVocab {
		sum.Vocabulary = vocabListing(model.Vocab(), opts.vocabLimit)
	}

	if opts.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	writeInspectText(w, sum, opts)
	return nil
}

func vocabListing(v *vocab.Vocabulary, limit int) []inspectVocabItem {
	entries := v.Entries()
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	out := make([]inspectVocabItem, len(entries))
	for i, e := range entries {
		out[i] = inspectVocabItem{ID: e.ID, Token: e.Token}
	}
	return out
}

func writeInspectText(w io.Writer, sum inspectSummary, opts inspectOptions) {
	_, _ = fmt.Fprintf(w, "checkpoint: %s\n", sum.Path)
	_, _ = fmt.Fprintf(w, "cell:       %s\n", sum.Cell)
	_, _ = fmt.Fprintf(w, "layers:     %d\n", sum.Layers)
	_, _ = fmt.Fprintf(w, "rnn size:   %d\n", sum.Hidden)
	_, _ = fmt.Fprintf(w, "vocab:      %d\n", sum.VocabSize)
	_, _ = fmt.Fprintf(w, "params:     %d\n", sum.Params)
	if d := sum.Defaults; d != nil {
		if d.BeamSize != nil {
			_, _ = fmt.Fprintf(w, "beam size:  %d (checkpoint default)\n", *d.BeamSize)
		}
		if d.Temperature != nil {
			_, _ = fmt.Fprintf(w, "temp:       %g (checkpoint default)\n", *d.Temperature)
		}
	}

	if opts.showTensors {
		_, _ = fmt.Fprintf(w, "\ntensors (%d):\n", len(sum.Tensors))
		for _, t := range sum.Tensors {
			_, _ = fmt.Fprintf(w, "  %-24s %-5s %v\n", t.Name, t.DType, t.Shape)
		}
	}
	if opts.showVocab {
		_, _ = fmt.Fprintf(w, "\nvocab (%d of %d):\n", len(sum.Vocabulary), sum.VocabSize)
		for _, e := range sum.Vocabulary {
			_, _ = fmt.Fprintf(w, "  %4d  %s\n", e.ID, strconv.Quote(e.Token))
		}
	}
}
