package charrnn_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/raymondhs/char-rnn/internal/charrnn"
	"github.com/raymondhs/char-rnn/internal/lm"
	"github.com/raymondhs/char-rnn/internal/safetensors"
	"github.com/raymondhs/char-rnn/internal/toy"
)

func loadToy(t *testing.T, o toy.Options) *charrnn.Model {
	t.Helper()
	path, err := toy.Write(t.TempDir(), "toy", o)
	if err != nil {
		t.Fatalf("toy.Write: %v", err)
	}
	m, err := charrnn.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return m
}

func TestBatchRowsMatchSingleSteps(t *testing.T) {
	t.Parallel()

	for _, cell := range []charrnn.Cell{charrnn.LSTM, charrnn.GRU, charrnn.RNN} {
		m := loadToy(t, toy.Options{Cell: cell, Layers: 2, Hidden: 6, Seed: 3, Scale: 50})
		v := m.Vocab()
		ids := []int{v.IDOf("a"), v.IDOf("B"), v.IDOf("zz")}

		// Give each row a distinct non-zero history first.
		var states []lm.State
		for _, id := range ids {
			st, _, err := m.Step(context.Background(), []int{id}, []lm.State{m.ZeroState()})
			if err != nil {
				t.Fatalf("%s: warmup: %v", cell, err)
			}
			states = append(states, st[0])
		}

		batchStates, batchProbs, err := m.Step(context.Background(), ids, states)
		if err != nil {
			t.Fatalf("%s: batched Step: %v", cell, err)
		}
		if len(batchStates) != len(ids) || len(batchProbs) != len(ids) {
			t.Fatalf("%s: batch sizes %d/%d", cell, len(batchStates), len(batchProbs))
		}
		for k, id := range ids {
			st, lp, err := m.Step(context.Background(), []int{id}, []lm.State{states[k]})
			if err != nil {
				t.Fatalf("%s: single Step: %v", cell, err)
			}
			if !reflect.DeepEqual(st[0], batchStates[k]) || !reflect.DeepEqual(lp[0], batchProbs[k]) {
				t.Fatalf("%s: row %d differs between batched and single steps", cell, k)
			}
			if len(lp[0]) != m.VocabSize() {
				t.Fatalf("%s: vector length %d, want %d", cell, len(lp[0]), m.VocabSize())
			}
		}
		if reflect.DeepEqual(batchProbs[0], batchProbs[1]) {
			t.Fatalf("%s: different inputs produced identical distributions", cell)
		}
	}
}

func TestZeroStateLayout(t *testing.T) {
	t.Parallel()

	lstm := loadToy(t, toy.Options{Cell: charrnn.LSTM, Layers: 3, Hidden: 4})
	if got := len(lstm.ZeroState()); got != 6 {
		t.Fatalf("LSTM zero state has %d tensors, want 6", got)
	}
	gru := loadToy(t, toy.Options{Cell: charrnn.GRU, Layers: 3, Hidden: 4})
	if got := len(gru.ZeroState()); got != 3 {
		t.Fatalf("GRU zero state has %d tensors, want 3", got)
	}
	if lstm.Params() <= gru.Params() {
		t.Fatalf("LSTM params %d should exceed GRU params %d", lstm.Params(), gru.Params())
	}
}

func TestStepErrors(t *testing.T) {
	t.Parallel()

	m := loadToy(t, toy.Options{Hidden: 4})
	ctx := context.Background()

	if _, _, err := m.Step(ctx, []int{1, 2}, []lm.State{m.ZeroState()}); !errors.Is(err, charrnn.ErrStateLayout) {
		t.Fatalf("expected ErrStateLayout for row count mismatch, got %v", err)
	}
	if _, _, err := m.Step(ctx, []int{1}, []lm.State{{{0, 0}}}); !errors.Is(err, charrnn.ErrStateLayout) {
		t.Fatalf("expected ErrStateLayout for wrong state shape, got %v", err)
	}
	if _, _, err := m.Step(ctx, []int{0}, []lm.State{m.ZeroState()}); !errors.Is(err, charrnn.ErrBadInput) {
		t.Fatalf("expected ErrBadInput for id 0 in a 1-based vocabulary, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, _, err := m.Step(cancelled, []int{1}, []lm.State{m.ZeroState()}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path, err := toy.Write(dir, "toy", toy.Options{Hidden: 4})
	if err != nil {
		t.Fatalf("toy.Write: %v", err)
	}

	// Sidecar disagrees with the weights.
	meta, err := charrnn.LoadMeta(charrnn.MetaPath(path))
	if err != nil {
		t.Fatalf("LoadMeta: %v", err)
	}
	meta.RNNSize = 5
	if err := charrnn.WriteMeta(charrnn.MetaPath(path), meta); err != nil {
		t.Fatalf("WriteMeta: %v", err)
	}
	if _, err := charrnn.Load(path); !errors.Is(err, charrnn.ErrShape) {
		t.Fatalf("expected ErrShape, got %v", err)
	}

	meta.RNNSize = 4
	meta.ModelType = "transformer"
	if err := charrnn.WriteMeta(charrnn.MetaPath(path), meta); err != nil {
		t.Fatalf("WriteMeta: %v", err)
	}
	if _, err := charrnn.Load(path); !errors.Is(err, charrnn.ErrInvalidMeta) {
		t.Fatalf("expected ErrInvalidMeta, got %v", err)
	}

	if err := os.Remove(charrnn.MetaPath(path)); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := charrnn.Load(path); err == nil {
		t.Fatal("expected error for missing sidecar")
	}

	// Weights missing a layer tensor.
	other := filepath.Join(dir, "partial.safetensors")
	tensors := toy.Options{Hidden: 4}.Tensors()
	if err := safetensors.WriteFile(other, tensors[1:], nil); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := charrnn.WriteMeta(charrnn.MetaPath(other), toy.Options{Hidden: 4}.Meta()); err != nil {
		t.Fatalf("WriteMeta: %v", err)
	}
	if _, err := charrnn.Load(other); !errors.Is(err, safetensors.ErrTensorNotFound) {
		t.Fatalf("expected ErrTensorNotFound, got %v", err)
	}
}

func TestMetaPath(t *testing.T) {
	t.Parallel()
	if got := charrnn.MetaPath("/m/en.safetensors"); got != "/m/en.json" {
		t.Fatalf("MetaPath = %q", got)
	}
	if got := charrnn.MetaPath("model"); got != "model.json" {
		t.Fatalf("MetaPath = %q", got)
	}
}
