package charrnn

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
)

// Cell identifies the recurrent cell of a checkpoint.
type Cell string

const (
	LSTM Cell = "lstm"
	GRU  Cell = "gru"
	RNN  Cell = "rnn"
)

// Gates returns the number of stacked gate blocks in the cell's i2h/h2h
// projections.
func (c Cell) Gates() int {
	switch c {
	case LSTM:
		return 4
	case GRU:
		return 3
	case RNN:
		return 1
	default:
		return 0
	}
}

// StatesPerLayer is the number of state tensors one layer carries.
func (c Cell) StatesPerLayer() int {
	if c == LSTM {
		return 2
	}
	return 1
}

var ErrInvalidMeta = errors.New("charrnn: invalid checkpoint metadata")

// Meta is the JSON sidecar stored next to the weights.
type Meta struct {
	ModelType string         `json:"model_type"`
	NumLayers int            `json:"num_layers"`
	RNNSize   int            `json:"rnn_size"`
	Vocab     map[string]int `json:"vocab"`

	// Defaults are optional decoding settings suggested by the trainer.
	Defaults *Defaults `json:"defaults,omitempty"`
}

type Defaults struct {
	BeamSize    *int     `json:"beam_size,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

func (m Meta) Cell() Cell { return Cell(strings.ToLower(m.ModelType)) }

func (m Meta) Validate() error {
	if m.Cell().Gates() == 0 {
		return fmt.Errorf("%w: unknown model_type %q", ErrInvalidMeta, m.ModelType)
	}
	if m.NumLayers < 1 {
		return fmt.Errorf("%w: num_layers %d", ErrInvalidMeta, m.NumLayers)
	}
	if m.RNNSize < 1 {
		return fmt.Errorf("%w: rnn_size %d", ErrInvalidMeta, m.RNNSize)
	}
	if len(m.Vocab) == 0 {
		return fmt.Errorf("%w: empty vocab", ErrInvalidMeta)
	}
	return nil
}

// MetaPath returns the sidecar path for a weights file: model.safetensors
// pairs with model.json.
func MetaPath(weightsPath string) string {
	return strings.TrimSuffix(weightsPath, filepath.Ext(weightsPath)) + ".json"
}

func LoadMeta(path string) (Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Meta{}, err
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return Meta{}, fmt.Errorf("%w: %s: %v", ErrInvalidMeta, path, err)
	}
	if err := m.Validate(); err != nil {
		return Meta{}, err
	}
	return m, nil
}

func WriteMeta(path string, m Meta) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
