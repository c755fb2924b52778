package beam

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/raymondhs/char-rnn/internal/lm"
	"github.com/raymondhs/char-rnn/internal/logger"
	"github.com/raymondhs/char-rnn/internal/logits"
	"github.com/raymondhs/char-rnn/internal/vocab"
)

var (
	ErrNoVocab       = errors.New("beam: vocabulary is required")
	ErrNoOracle      = errors.New("beam: oracle is required")
	ErrVocabMismatch = errors.New("beam: oracle and vocabulary sizes differ")
	ErrBatchMismatch = errors.New("beam: oracle returned a batch of the wrong size")
)

// Config configures a Decoder. Vocab and Oracle are shared read-only and may
// back many decoders at once. A Width below 1 is treated as 1.
type Config struct {
	Vocab       *vocab.Vocabulary
	Oracle      lm.Oracle
	Width       int
	Temperature float32
	Logger      logger.Logger
}

// Decoder restores casing of a token sequence with threshold-pruned beam
// search. A Decoder holds no per-call state and is safe for concurrent use.
type Decoder struct {
	vocab  *vocab.Vocabulary
	oracle lm.Oracle
	zero   lm.State
	width  int
	temp   float32
	log    logger.Logger
}

// Result describes one decoded line.
type Result struct {
	Text        string
	Score       float64
	Steps       int
	OracleCalls int
	Candidates  int
	PeakBeam    int
	Duration    time.Duration
}

func New(cfg Config) (*Decoder, error) {
	if cfg.Vocab == nil {
		return nil, ErrNoVocab
	}
	if cfg.Oracle == nil {
		return nil, ErrNoOracle
	}
	if n := cfg.Oracle.VocabSize(); n != cfg.Vocab.Size() {
		return nil, fmt.Errorf("%w: oracle %d, vocabulary %d", ErrVocabMismatch, n, cfg.Vocab.Size())
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	return &Decoder{
		vocab:  cfg.Vocab,
		oracle: cfg.Oracle,
		zero:   cfg.Oracle.ZeroState(),
		width:  max(cfg.Width, 1),
		temp:   logits.NormalizeTemperature(cfg.Temperature),
		log:    log,
	}, nil
}

func (d *Decoder) Width() int { return d.width }

func (d *Decoder) Temperature() float32 { return d.temp }

// Decode searches for the best re-casing of tokens. An empty sequence
// decodes to "" without consulting the oracle. The returned text has leading
// and trailing whitespace removed.
func (d *Decoder) Decode(ctx context.Context, tokens []string) (Result, error) {
	start := time.Now()
	var res Result
	if len(tokens) == 0 {
		return res, nil
	}

	upper := cases.Upper(language.Und)
	beam := []*Hypothesis{seed(d.zero)}

	for i, tok := range tokens {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		cands, called, err := d.expand(ctx, beam, variants(upper, d.vocab, tok))
		if err != nil {
			return res, fmt.Errorf("beam: step %d: %w", i+1, err)
		}
		if called {
			res.OracleCalls++
		}
		res.Candidates += len(cands)

		beam = prune(cands, d.width)
		res.Steps++
		res.PeakBeam = max(res.PeakBeam, len(beam))
		d.log.Debug("beam step", "step", i+1, "token", tok, "candidates", len(cands), "survivors", len(beam))
	}

	best := selectBest(beam)
	res.Text = strings.TrimSpace(best.String())
	res.Score = best.Score
	res.Duration = time.Since(start)
	return res, nil
}

// expand scores every continuation of every live hypothesis with a single
// batched oracle call. Hypotheses that have not emitted anything yet have no
// context to score, so their children keep the parent's score and start from
// the zero state.
func (d *Decoder) expand(ctx context.Context, beam []*Hypothesis, next []string) ([]*Hypothesis, bool, error) {
	rows := make([]int, len(beam))
	prevIDs := make([]int, 0, len(beam))
	states := make([]lm.State, 0, len(beam))
	for i, h := range beam {
		if h.Empty() {
			rows[i] = -1
			continue
		}
		last, _ := h.Last()
		rows[i] = len(prevIDs)
		prevIDs = append(prevIDs, d.vocab.IDOf(last))
		states = append(states, h.State)
	}

	var (
		newStates []lm.State
		logProbs  [][]float32
	)
	called := len(prevIDs) > 0
	if called {
		var err error
		newStates, logProbs, err = d.oracle.Step(ctx, prevIDs, states)
		if err != nil {
			return nil, true, err
		}
		if len(newStates) != len(prevIDs) || len(logProbs) != len(prevIDs) {
			return nil, true, fmt.Errorf("%w: sent %d rows, got %d states and %d vectors",
				ErrBatchMismatch, len(prevIDs), len(newStates), len(logProbs))
		}
		for _, row := range logProbs {
			logits.ApplyTemperature(row, d.temp)
		}
	}

	cands := make([]*Hypothesis, 0, len(beam)*len(next))
	for i, h := range beam {
		r := rows[i]
		for j, tok := range next {
			child := h.extend(tok)
			if r < 0 {
				child.Score = h.Score
				child.State = d.zero.Clone()
				cands = append(cands, child)
				continue
			}

			row := logProbs[r]
			idx := d.vocab.Index(d.vocab.IDOf(tok))
			if idx < 0 || idx >= len(row) {
				return nil, called, fmt.Errorf("%w: vector of length %d has no slot %d", ErrBatchMismatch, len(row), idx)
			}
			score := h.Score + float64(row[idx])
			if math.IsNaN(score) {
				score = math.Inf(-1)
			}
			child.Score = score
			// The oracle's state for row r is fresh; the last child takes it
			// and every earlier child gets its own copy.
			if j == len(next)-1 {
				child.State = newStates[r]
			} else {
				child.State = newStates[r].Clone()
			}
			cands = append(cands, child)
		}
	}
	return cands, called, nil
}

// selectBest returns the highest scoring hypothesis; among equal scores the
// one earliest in beam order wins.
func selectBest(beam []*Hypothesis) *Hypothesis {
	scores := make([]float64, len(beam))
	for i, h := range beam {
		scores[i] = h.Score
	}
	return beam[logits.Argmax(scores)]
}
