package charrnn

import (
	"context"
	"errors"
	"fmt"

	"github.com/raymondhs/char-rnn/internal/lm"
	"github.com/raymondhs/char-rnn/internal/safetensors"
	"github.com/raymondhs/char-rnn/internal/tensor"
	"github.com/raymondhs/char-rnn/internal/vocab"
)

var (
	ErrShape       = errors.New("charrnn: tensor shape mismatch")
	ErrStateLayout = errors.New("charrnn: state does not match model layout")
	ErrBadInput    = errors.New("charrnn: input id outside vocabulary")
)

type layer struct {
	i2h  *tensor.Mat
	i2hB []float32
	h2h  *tensor.Mat
	h2hB []float32
}

// Model is a stacked char-RNN language model. Weights are read-only after
// Load, so one Model serves concurrent Step calls.
type Model struct {
	meta   Meta
	cell   Cell
	hidden int
	vocab  *vocab.Vocabulary
	layers []layer
	dec    *tensor.Mat
	decB   []float32
	widths []int
}

var _ lm.Oracle = (*Model)(nil)

// Load reads weightsPath and its JSON sidecar (see MetaPath).
func Load(weightsPath string) (*Model, error) {
	meta, err := LoadMeta(MetaPath(weightsPath))
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}
	return LoadWithMeta(weightsPath, meta)
}

// LoadWithMeta reads weightsPath using meta instead of the sidecar.
func LoadWithMeta(weightsPath string, meta Meta) (*Model, error) {
	st, err := safetensors.Open(weightsPath)
	if err != nil {
		return nil, fmt.Errorf("open weights: %w", err)
	}
	defer func() { _ = st.Close() }()
	return FromSafetensors(meta, st)
}

// FromSafetensors builds a model from an opened weights file. Weights are
// copied out of st, which may be closed afterwards.
func FromSafetensors(meta Meta, st *safetensors.File) (*Model, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	v, err := vocab.New(meta.Vocab)
	if err != nil {
		return nil, err
	}

	cell := meta.Cell()
	h := meta.RNNSize
	gh := cell.Gates() * h
	m := &Model{
		meta:   meta,
		cell:   cell,
		hidden: h,
		vocab:  v,
		layers: make([]layer, meta.NumLayers),
	}

	for l := range m.layers {
		in := h
		if l == 0 {
			in = v.Size()
		}
		prefix := fmt.Sprintf("rnn.%d.", l)
		ly := &m.layers[l]
		if ly.i2h, err = loadMat(st, prefix+"i2h.weight", gh, in); err != nil {
			return nil, err
		}
		if ly.i2hB, err = loadVec(st, prefix+"i2h.bias", gh); err != nil {
			return nil, err
		}
		if ly.h2h, err = loadMat(st, prefix+"h2h.weight", gh, h); err != nil {
			return nil, err
		}
		if ly.h2hB, err = loadVec(st, prefix+"h2h.bias", gh); err != nil {
			return nil, err
		}
	}
	if m.dec, err = loadMat(st, "decoder.weight", v.Size(), h); err != nil {
		return nil, err
	}
	if m.decB, err = loadVec(st, "decoder.bias", v.Size()); err != nil {
		return nil, err
	}

	m.widths = make([]int, meta.NumLayers*cell.StatesPerLayer())
	for i := range m.widths {
		m.widths[i] = h
	}
	return m, nil
}

func loadMat(st *safetensors.File, name string, rows, cols int) (*tensor.Mat, error) {
	w, err := tensor.LoadSafetensorsMat(st, name)
	if err != nil {
		return nil, err
	}
	if w.R != rows || w.C != cols {
		return nil, fmt.Errorf("%w: %s is [%d %d], want [%d %d]", ErrShape, name, w.R, w.C, rows, cols)
	}
	return w, nil
}

func loadVec(st *safetensors.File, name string, n int) ([]float32, error) {
	b, err := tensor.LoadSafetensorsVec(st, name)
	if err != nil {
		return nil, err
	}
	if len(b) != n {
		return nil, fmt.Errorf("%w: %s has %d values, want %d", ErrShape, name, len(b), n)
	}
	return b, nil
}

func (m *Model) Meta() Meta { return m.meta }
func (m *Model) Cell() Cell { return m.cell }
func (m *Model) Hidden() int { return m.hidden }
func (m *Model) Layers() int { return len(m.layers) }
func (m *Model) Vocab() *vocab.Vocabulary { return m.vocab }
func (m *Model) VocabSize() int { return m.vocab.Size() }
func (m *Model) ZeroState() lm.State { return lm.ZeroState(m.widths) }

// Params counts the scalar weights of the model.
func (m *Model) Params() int {
	n := m.dec.R*m.dec.C + len(m.decB)
	for _, ly := range m.layers {
		n += ly.i2h.R*ly.i2h.C + len(ly.i2hB) + ly.h2h.R*ly.h2h.C + len(ly.h2hB)
	}
	return n
}

// scratch holds per-call buffers; a Step call never shares them.
type scratch struct {
	gx, gh    []float32
	rh, gn, z []float32
}

func (m *Model) newScratch() *scratch {
	gh := m.cell.Gates() * m.hidden
	s := &scratch{gx: make([]float32, gh), gh: make([]float32, gh)}
	if m.cell == GRU {
		s.rh = make([]float32, m.hidden)
		s.gn = make([]float32, m.hidden)
		s.z = make([]float32, m.hidden)
	}
	return s
}

// Step advances every row by one token. Row k of the result belongs to
// prevIDs[k] and states[k]; returned states are newly allocated.
func (m *Model) Step(ctx context.Context, prevIDs []int, states []lm.State) ([]lm.State, [][]float32, error) {
	if len(prevIDs) != len(states) {
		return nil, nil, fmt.Errorf("%w: %d ids for %d states", ErrStateLayout, len(prevIDs), len(states))
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s := m.newScratch()
	outStates := make([]lm.State, len(prevIDs))
	outProbs := make([][]float32, len(prevIDs))
	for k, id := range prevIDs {
		idx := m.vocab.Index(id)
		if idx < 0 || idx >= m.vocab.Size() {
			return nil, nil, fmt.Errorf("%w: row %d id %d", ErrBadInput, k, id)
		}
		if err := m.checkState(states[k]); err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", k, err)
		}
		next := lm.ZeroState(m.widths)
		outProbs[k] = m.forward(idx, states[k], next, s)
		outStates[k] = next
	}
	return outStates, outProbs, nil
}

func (m *Model) checkState(st lm.State) error {
	if len(st) != len(m.widths) {
		return fmt.Errorf("%w: %d tensors, want %d", ErrStateLayout, len(st), len(m.widths))
	}
	for i, t := range st {
		if len(t) != m.widths[i] {
			return fmt.Errorf("%w: tensor %d has %d values, want %d", ErrStateLayout, i, len(t), m.widths[i])
		}
	}
	return nil
}

// forward runs one token through the stack, writing the new state into out,
// and returns log-probabilities over the vocabulary.
func (m *Model) forward(idx int, in, out lm.State, s *scratch) []float32 {
	h := m.hidden
	per := m.cell.StatesPerLayer()
	var x []float32
	for l := range m.layers {
		ly := &m.layers[l]
		if l == 0 {
			ly.i2h.ColTo(s.gx, idx)
		} else {
			tensor.MatVec(s.gx, ly.i2h, x)
		}
		tensor.Add(s.gx, ly.i2hB)
		hPrev := in[l*per+per-1]
		tensor.MatVecAdd(s.gh, ly.h2h, hPrev, ly.h2hB)

		hNext := out[l*per+per-1]
		switch m.cell {
		case LSTM:
			cPrev, cNext := in[l*per], out[l*per]
			for j := range h {
				ig := tensor.Sigmoid(s.gx[j] + s.gh[j])
				fg := tensor.Sigmoid(s.gx[h+j] + s.gh[h+j])
				og := tensor.Sigmoid(s.gx[2*h+j] + s.gh[2*h+j])
				gg := tensor.Tanh(s.gx[3*h+j] + s.gh[3*h+j])
				cNext[j] = fg*cPrev[j] + ig*gg
				hNext[j] = og * tensor.Tanh(cNext[j])
			}
		case GRU:
			// The candidate gate sees the reset-scaled hidden state, so its
			// h2h block is applied separately from r and z.
			for j := range h {
				r := tensor.Sigmoid(s.gx[j] + s.gh[j])
				s.z[j] = tensor.Sigmoid(s.gx[h+j] + s.gh[h+j])
				s.rh[j] = r * hPrev[j]
			}
			hn := ly.h2h.Rows(2*h, 3*h)
			tensor.MatVecAdd(s.gn, &hn, s.rh, ly.h2hB[2*h:])
			for j := range h {
				n := tensor.Tanh(s.gx[2*h+j] + s.gn[j])
				hNext[j] = s.z[j]*n + (1-s.z[j])*hPrev[j]
			}
		case RNN:
			for j := range h {
				hNext[j] = tensor.Tanh(s.gx[j] + s.gh[j])
			}
		}
		x = hNext
	}

	logp := make([]float32, m.dec.R)
	tensor.MatVecAdd(logp, m.dec, x, m.decB)
	tensor.LogSoftmax(logp)
	return logp
}
