package inference

import (
	"fmt"
	"os"
	"strings"

	"github.com/raymondhs/char-rnn/internal/charrnn"
	"github.com/raymondhs/char-rnn/internal/logger"
	"github.com/raymondhs/char-rnn/internal/vocab"
)

type Loader struct {
	// MetaPath overrides the sidecar location; empty means next to the
	// weights.
	MetaPath string
	Logger   logger.Logger
}

type LoadResult struct {
	Engine             Engine
	Model              *charrnn.Model
	Vocab              *vocab.Vocabulary
	Meta               charrnn.Meta
	GenerationDefaults GenDefaults
}

type GenDefaults struct {
	BeamSize    *int
	Temperature *float64
}

func (l Loader) Load(modelPath string) (*LoadResult, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, fmt.Errorf("model path is required")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, err
	}
	log := l.Logger
	if log == nil {
		log = logger.Default()
	}

	var (
		m   *charrnn.Model
		err error
	)
	if l.MetaPath != "" {
		var meta charrnn.Meta
		if meta, err = charrnn.LoadMeta(l.MetaPath); err == nil {
			m, err = charrnn.LoadWithMeta(modelPath, meta)
		}
	} else {
		m, err = charrnn.Load(modelPath)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", modelPath, err)
	}

	meta := m.Meta()
	var defaults GenDefaults
	if meta.Defaults != nil {
		defaults = GenDefaults{BeamSize: meta.Defaults.BeamSize, Temperature: meta.Defaults.Temperature}
	}
	log.Debug("checkpoint loaded",
		"path", modelPath,
		"cell", m.Cell(),
		"layers", m.Layers(),
		"hidden", m.Hidden(),
		"vocab", m.VocabSize(),
		"params", m.Params(),
	)

	return &LoadResult{
		Engine:             NewEngine(m, m.Vocab(), log),
		Model:              m,
		Vocab:              m.Vocab(),
		Meta:               meta,
		GenerationDefaults: defaults,
	}, nil
}
