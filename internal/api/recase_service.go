package api

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/raymondhs/char-rnn/internal/inference"
	"github.com/raymondhs/char-rnn/internal/logger"
	"github.com/raymondhs/char-rnn/internal/tokenizer"
	"github.com/raymondhs/char-rnn/internal/vocab"
)

const (
	maxBeamSize   = 256
	maxInputLines = 1024
)

type RecaseService struct {
	provider EngineProvider
	cache    *lru.Cache
	log      logger.Logger

	tokenizerFor func(v *vocab.Vocabulary) tokenizer.Tokenizer
}

type cacheKey struct {
	path        string
	beamSize    int
	temperature float64
	text        string
}

// NewRecaseService wraps a provider. cacheSize bounds the number of decoded
// lines kept in memory; zero disables the cache.
func NewRecaseService(provider EngineProvider, cacheSize int, log logger.Logger) (*RecaseService, error) {
	if log == nil {
		log = logger.Default()
	}
	s := &RecaseService{provider: provider, log: log, tokenizerFor: newCharTokenizer}
	if cacheSize > 0 {
		c, err := lru.New(cacheSize)
		if err != nil {
			return nil, fmt.Errorf("result cache: %w", err)
		}
		s.cache = c
	}
	return s, nil
}

func (s *RecaseService) Recase(ctx context.Context, req *RecaseRequest) (*RecaseResponse, error) {
	lines := req.Input.Lines()
	if lines == nil {
		return nil, newInvalidRequest("input", "input is required")
	}
	if len(lines) > maxInputLines {
		return nil, newInvalidRequest("input", fmt.Sprintf("input has %d lines; the limit is %d", len(lines), maxInputLines))
	}
	if req.BeamSize != nil && *req.BeamSize > maxBeamSize {
		return nil, newInvalidRequest("beam_size", fmt.Sprintf("beam_size must be at most %d", maxBeamSize))
	}

	resp := &RecaseResponse{
		ID:      newRecaseID(),
		Object:  "recase",
		Created: timeNow().Unix(),
		Output:  make([]RecaseLine, 0, len(lines)),
	}

	opts := inference.ClampOptions(inference.RequestOptions{
		BeamSize:    req.BeamSize,
		Temperature: req.Temperature,
	}, s.log)

	err := s.provider.WithEngine(ctx, req.Model, func(m *LoadedModel) error {
		resp.Model = m.ID
		for i, line := range lines {
			opts.Text = line
			ireq := inference.ResolveRequest(opts, m.Defaults)

			key := cacheKey{path: m.Path, beamSize: ireq.BeamSize, temperature: ireq.Temperature, text: line}
			res, cached := s.lookup(key)
			if !cached {
				var err error
				res, err = m.Engine.Recase(ctx, &ireq)
				if err != nil {
					return fmt.Errorf("line %d: %w", i, err)
				}
				s.store(key, res)
				resp.Usage.Steps += res.Stats.Steps
				resp.Usage.OracleCalls += res.Stats.OracleCalls
				resp.Usage.Candidates += res.Stats.Candidates
			}
			resp.Usage.Characters += res.Stats.Characters
			resp.Usage.Unknown += res.Stats.Unknown
			resp.Output = append(resp.Output, RecaseLine{
				Index:  i,
				Text:   res.Text,
				Score:  res.Score,
				Cached: cached,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("recase request served",
		"id", resp.ID,
		"model", resp.Model,
		"lines", len(resp.Output),
		"characters", resp.Usage.Characters,
		"oracle_calls", resp.Usage.OracleCalls,
	)
	return resp, nil
}

func (s *RecaseService) Tokenize(ctx context.Context, req *TokenizeRequest) (*TokenizeResponse, error) {
	var resp *TokenizeResponse
	err := s.provider.WithEngine(ctx, req.Model, func(m *LoadedModel) error {
		ids, err := s.tokenizerFor(m.Vocab).Encode(req.Input)
		if err != nil {
			return fmt.Errorf("tokenize: %w", err)
		}
		unknown := 0
		for _, id := range ids {
			if id == m.Vocab.Unknown() {
				unknown++
			}
		}
		tokens := tokenizer.Split(req.Input)
		if tokens == nil {
			tokens = []string{}
		}
		resp = &TokenizeResponse{
			Object:  "tokenize",
			Model:   m.ID,
			Tokens:  tokens,
			IDs:     ids,
			Unknown: unknown,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func newCharTokenizer(v *vocab.Vocabulary) tokenizer.Tokenizer {
	return tokenizer.NewCharTokenizer(v)
}

func (s *RecaseService) ListModels() ([]string, error) {
	return s.provider.ListModels()
}

func (s *RecaseService) lookup(key cacheKey) (*inference.Result, bool) {
	if s.cache == nil {
		return nil, false
	}
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, false
	}
	res, ok := v.(*inference.Result)
	return res, ok
}

func (s *RecaseService) store(key cacheKey, res *inference.Result) {
	if s.cache == nil {
		return
	}
	s.cache.Add(key, res)
}

var timeNow = func() time.Time {
	return time.Now()
}
