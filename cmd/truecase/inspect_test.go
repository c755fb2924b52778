package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/raymondhs/char-rnn/internal/charrnn"
	"github.com/raymondhs/char-rnn/internal/toy"
)

func TestInspectCheckpointText(t *testing.T) {
	t.Parallel()

	path, err := toy.Write(t.TempDir(), "toy", toy.Options{Cell: charrnn.GRU, Layers: 2, Hidden: 5, Tokens: []string{"a", "A", " "}})
	if err != nil {
		t.Fatalf("toy.Write: %v", err)
	}

	var out bytes.Buffer
	if err := inspectCheckpoint(&out, path, inspectOptions{showTensors: true, showVocab: true, tensorFilter: "decoder"}); err != nil {
		t.Fatalf("inspectCheckpoint: %v", err)
	}
	text := out.String()
	for _, want := range []string{"cell:       gru", "layers:     2", "rnn size:   5", "vocab:      4", "decoder.weight", `"<unk>"`} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "rnn.0.i2h.weight") {
		t.Errorf("tensor filter ignored:\n%s", text)
	}
}

func TestInspectCheckpointJSON(t *testing.T) {
	t.Parallel()

	path, err := toy.Write(t.TempDir(), "toy", toy.Options{Hidden: 3})
	if err != nil {
		t.Fatalf("toy.Write: %v", err)
	}

	var out bytes.Buffer
	if err := inspectCheckpoint(&out, path, inspectOptions{asJSON: true, showVocab: true, vocabLimit: 2}); err != nil {
		t.Fatalf("inspectCheckpoint: %v", err)
	}
	var sum inspectSummary
	if err := json.Unmarshal(out.Bytes(), &sum); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	if sum.Hidden != 3 || len(sum.Vocabulary) != 2 || sum.Vocabulary[0].ID != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if sum.Params <= 0 {
		t.Fatalf("params = %d", sum.Params)
	}
}

func TestInspectCheckpointErrors(t *testing.T) {
	t.Parallel()

	if err := inspectCheckpoint(&bytes.Buffer{}, "/nonexistent/x.safetensors", inspectOptions{}); err == nil {
		t.Fatal("expected error for missing checkpoint")
	}
}

func TestVersionCommand(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var out bytes.Buffer
	app := newApp(&bytes.Buffer{})
	app.Writer = &out
	if err := app.Run(context.Background(), []string{"truecase", "version"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "version:") || !strings.Contains(out.String(), "go:") {
		t.Fatalf("unexpected version output: %q", out.String())
	}
}
