package inference

import (
	"context"
	"fmt"
	"time"

	"github.com/raymondhs/char-rnn/internal/beam"
	"github.com/raymondhs/char-rnn/internal/lm"
	"github.com/raymondhs/char-rnn/internal/logger"
	"github.com/raymondhs/char-rnn/internal/tokenizer"
	"github.com/raymondhs/char-rnn/internal/vocab"
)

// EngineImpl runs beam search against a shared oracle. The oracle and the
// vocabulary are read-only, so one engine serves concurrent Recase calls.
type EngineImpl struct {
	oracle lm.Oracle
	vocab  *vocab.Vocabulary
	log    logger.Logger
}

// NewEngine wraps an oracle. A nil log falls back to logger.Default.
func NewEngine(oracle lm.Oracle, v *vocab.Vocabulary, log logger.Logger) *EngineImpl {
	if log == nil {
		log = logger.Default()
	}
	return &EngineImpl{oracle: oracle, vocab: v, log: log}
}

func (e *EngineImpl) Close() error {
	if e == nil {
		return nil
	}
	e.oracle = nil
	return nil
}

func (e *EngineImpl) Recase(ctx context.Context, req *Request) (*Result, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if e.oracle == nil {
		return nil, fmt.Errorf("engine is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dec, err := beam.New(beam.Config{
		Vocab:       e.vocab,
		Oracle:      e.oracle,
		Width:       req.BeamSize,
		Temperature: float32(req.Temperature),
		Logger:      e.log,
	})
	if err != nil {
		return nil, err
	}

	tokens := tokenizer.Split(req.Text)
	res, err := safeDecode(ctx, dec, tokens)
	if err != nil {
		return nil, err
	}

	stats := Stats{
		Characters:  len(tokens),
		Steps:       res.Steps,
		OracleCalls: res.OracleCalls,
		Candidates:  res.Candidates,
		PeakBeam:    res.PeakBeam,
		Duration:    res.Duration,
	}
	for _, tok := range tokens {
		if !e.vocab.Contains(tok) {
			stats.Unknown++
		}
	}
	if stats.Duration.Seconds() > 0 {
		stats.CPS = float64(stats.Characters) / stats.Duration.Seconds()
	}
	return &Result{Text: res.Text, Score: res.Score, Stats: stats}, nil
}

func safeDecode(ctx context.Context, dec *beam.Decoder, tokens []string) (res beam.Result, err error) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Decode after %s: %v", time.Since(start).Round(time.Millisecond), rec)
		}
	}()
	return dec.Decode(ctx, tokens)
}
