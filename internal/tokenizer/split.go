package tokenizer

import "unicode/utf8"

// Split breaks line into one token per Unicode codepoint, keeping the
// original bytes of each codepoint. A byte that does not start a valid UTF-8
// sequence becomes a token of its own, so malformed input never fails and
// every byte of line appears in exactly one token.
//
// No normalization or case folding is applied.
func Split(line string) []string {
	if line == "" {
		return nil
	}
	out := make([]string, 0, utf8.RuneCountInString(line))
	for i := 0; i < len(line); {
		_, size := utf8.DecodeRuneInString(line[i:])
		// size is 1 for both ASCII and invalid bytes; either way the token is
		// exactly that byte.
		out = append(out, line[i:i+size])
		i += size
	}
	return out
}

// Valid reports whether tok is a single well-formed codepoint.
func Valid(tok string) bool {
	r, size := utf8.DecodeRuneInString(tok)
	if size != len(tok) || size == 0 {
		return false
	}
	return r != utf8.RuneError || size > 1
}
