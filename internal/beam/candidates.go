package beam

import (
	"golang.org/x/text/cases"

	"github.com/raymondhs/char-rnn/internal/tokenizer"
	"github.com/raymondhs/char-rnn/internal/vocab"
)

// variants returns the tokens a hypothesis may emit for input token tok: tok
// itself, then its uppercase form when that differs and the model knows it.
// Lowercasing is never attempted. Undecodable bytes only yield themselves.
func variants(upper cases.Caser, v *vocab.Vocabulary, tok string) []string {
	if !tokenizer.Valid(tok) {
		return []string{tok}
	}
	up := upper.String(tok)
	if up == tok || !v.Contains(up) {
		return []string{tok}
	}
	return []string{tok, up}
}
