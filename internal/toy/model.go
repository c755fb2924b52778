package toy

import (
	"fmt"
	"path/filepath"

	"github.com/raymondhs/char-rnn/internal/charrnn"
	"github.com/raymondhs/char-rnn/internal/safetensors"
	"github.com/raymondhs/char-rnn/internal/tensor"
	"github.com/raymondhs/char-rnn/internal/vocab"
)

// Options describes a toy checkpoint: a char-RNN with reproducible random
// weights, small enough to build inside a test.
type Options struct {
	Cell   charrnn.Cell
	Layers int
	Hidden int
	// Tokens become ids 1..n in order; <unk> is appended when absent.
	Tokens []string
	Seed   int64
	// Scale multiplies the (-0.01, 0.01) random weights. Zero means 1.
	Scale float32
}

// DefaultTokens covers lowercase and uppercase ASCII letters, digits, space
// and a little punctuation.
func DefaultTokens() []string {
	var out []string
	for c := 'a'; c <= 'z'; c++ {
		out = append(out, string(c), string(c-'a'+'A'))
	}
	for c := '0'; c <= '9'; c++ {
		out = append(out, string(c))
	}
	return append(out, " ", ".", ",", "!", "?", "'")
}

func (o Options) withDefaults() Options {
	if o.Cell == "" {
		o.Cell = charrnn.LSTM
	}
	if o.Layers < 1 {
		o.Layers = 1
	}
	if o.Hidden < 1 {
		o.Hidden = 8
	}
	if len(o.Tokens) == 0 {
		o.Tokens = DefaultTokens()
	}
	if o.Scale == 0 {
		o.Scale = 1
	}
	return o
}

// Meta returns the sidecar metadata for o.
func (o Options) Meta() charrnn.Meta {
	o = o.withDefaults()
	ids := make(map[string]int, len(o.Tokens)+1)
	for _, tok := range o.Tokens {
		if _, dup := ids[tok]; !dup {
			ids[tok] = len(ids) + 1
		}
	}
	if _, ok := ids[vocab.Unknown]; !ok {
		ids[vocab.Unknown] = len(ids) + 1
	}
	return charrnn.Meta{
		ModelType: string(o.Cell),
		NumLayers: o.Layers,
		RNNSize:   o.Hidden,
		Vocab:     ids,
	}
}

// Tensors returns the named weights for o in checkpoint layout.
func (o Options) Tensors() []safetensors.Tensor {
	o = o.withDefaults()
	meta := o.Meta()
	v := len(meta.Vocab)
	gh := o.Cell.Gates() * o.Hidden
	seed := o.Seed

	random := func(name string, shape ...int) safetensors.Tensor {
		seed++
		r, c := shape[0], 1
		if len(shape) == 2 {
			c = shape[1]
		}
		m := tensor.NewMat(r, c)
		tensor.FillRand(&m, seed)
		for i := range m.Data {
			m.Data[i] *= o.Scale
		}
		return safetensors.Tensor{Name: name, Shape: shape, Data: m.Data}
	}

	var out []safetensors.Tensor
	for l := range o.Layers {
		in := o.Hidden
		if l == 0 {
			in = v
		}
		p := fmt.Sprintf("rnn.%d.", l)
		out = append(out,
			random(p+"i2h.weight", gh, in),
			random(p+"i2h.bias", gh),
			random(p+"h2h.weight", gh, o.Hidden),
			random(p+"h2h.bias", gh),
		)
	}
	return append(out,
		random("decoder.weight", v, o.Hidden),
		random("decoder.bias", v),
	)
}

// Write stores the checkpoint as dir/name.safetensors plus its sidecar and
// returns the weights path.
func Write(dir, name string, o Options) (string, error) {
	path := filepath.Join(dir, name+".safetensors")
	if err := safetensors.WriteFile(path, o.Tensors(), map[string]string{"format": "char-rnn"}); err != nil {
		return "", err
	}
	if err := charrnn.WriteMeta(charrnn.MetaPath(path), o.Meta()); err != nil {
		return "", err
	}
	return path, nil
}
