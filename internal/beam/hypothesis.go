package beam

import (
	"strings"

	"github.com/raymondhs/char-rnn/internal/lm"
)

// Hypothesis is one partial re-casing of the input: the tokens emitted so
// far, their cumulative score and the model state after the last token.
type Hypothesis struct {
	Tokens []string
	Score  float64
	State  lm.State
}

func seed(zero lm.State) *Hypothesis {
	return &Hypothesis{State: zero.Clone()}
}

// Empty reports whether nothing has been emitted yet. Only the seed
// hypothesis is empty.
func (h *Hypothesis) Empty() bool { return len(h.Tokens) == 0 }

// Last returns the most recently emitted token.
func (h *Hypothesis) Last() (string, bool) {
	if len(h.Tokens) == 0 {
		return "", false
	}
	return h.Tokens[len(h.Tokens)-1], true
}

// String joins the emitted tokens.
func (h *Hypothesis) String() string {
	return strings.Join(h.Tokens, "")
}

// extend returns a child carrying h's tokens plus tok. Score and State are
// filled in by the caller.
func (h *Hypothesis) extend(tok string) *Hypothesis {
	tokens := make([]string, len(h.Tokens)+1)
	copy(tokens, h.Tokens)
	tokens[len(h.Tokens)] = tok
	return &Hypothesis{Tokens: tokens}
}
