package tokenizer

import (
	"fmt"
	"strings"

	"github.com/raymondhs/char-rnn/internal/vocab"
)

var _ Tokenizer = (*CharTokenizer)(nil)

// CharTokenizer maps codepoint tokens to vocabulary ids. Characters missing
// from the vocabulary encode to the <unk> id.
type CharTokenizer struct {
	Vocab *vocab.Vocabulary
}

func NewCharTokenizer(v *vocab.Vocabulary) *CharTokenizer {
	return &CharTokenizer{Vocab: v}
}

func (t *CharTokenizer) Encode(text string) ([]int, error) {
	toks := Split(text)
	ids := make([]int, len(toks))
	for i, tok := range toks {
		ids[i] = t.Vocab.IDOf(tok)
	}
	return ids, nil
}

// Decode concatenates the tokens for ids. Unknown ids decode to the literal
// <unk> token since the original character is gone.
func (t *CharTokenizer) Decode(ids []int) (string, error) {
	var b strings.Builder
	for _, id := range ids {
		tok, ok := t.Vocab.TokenOf(id)
		if !ok {
			return "", fmt.Errorf("tokenizer: id %d out of range", id)
		}
		b.WriteString(tok)
	}
	return b.String(), nil
}
