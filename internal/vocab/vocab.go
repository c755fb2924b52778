package vocab

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
)

// Unknown is the reserved token every vocabulary must carry. Lookups for
// tokens the model never saw resolve to its id.
const Unknown = "<unk>"

var (
	ErrEmpty       = errors.New("vocab: empty vocabulary")
	ErrNoUnknown   = errors.New("vocab: missing " + Unknown + " entry")
	ErrDuplicateID = errors.New("vocab: duplicate id")
	ErrSparseIDs   = errors.New("vocab: ids are not dense")
)

// Vocabulary is a read-only bidirectional mapping between single-character
// tokens and integer ids. Ids are dense and start at Base (0 or 1).
//
// A Vocabulary is never mutated after New returns, so one instance may be
// shared by every hypothesis and every goroutine.
type Vocabulary struct {
	ids    map[string]int
	tokens []string
	base   int
	unk    int
}

// New validates tokens and builds the inverse table.
func New(tokens map[string]int) (*Vocabulary, error) {
	if len(tokens) == 0 {
		return nil, ErrEmpty
	}
	unk, ok := tokens[Unknown]
	if !ok {
		return nil, ErrNoUnknown
	}

	base := -1
	for _, id := range tokens {
		if base < 0 || id < base {
			base = id
		}
	}
	if base != 0 && base != 1 {
		return nil, fmt.Errorf("%w: lowest id is %d, want 0 or 1", ErrSparseIDs, base)
	}

	inv := make([]string, len(tokens))
	seen := make([]bool, len(tokens))
	for tok, id := range tokens {
		idx := id - base
		if idx >= len(inv) {
			return nil, fmt.Errorf("%w: id %d out of range for %d tokens", ErrSparseIDs, id, len(tokens))
		}
		if seen[idx] {
			return nil, fmt.Errorf("%w: %d (%q and %q)", ErrDuplicateID, id, inv[idx], tok)
		}
		seen[idx] = true
		inv[idx] = tok
	}

	ids := make(map[string]int, len(tokens))
	for tok, id := range tokens {
		ids[tok] = id
	}
	return &Vocabulary{ids: ids, tokens: inv, base: base, unk: unk}, nil
}

// Load decodes a JSON object of token -> id.
func Load(r io.Reader) (*Vocabulary, error) {
	var raw map[string]int
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("vocab: decode: %w", err)
	}
	return New(raw)
}

func LoadFile(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// IDOf returns the id of token, or the <unk> id when token is absent.
func (v *Vocabulary) IDOf(token string) int {
	if id, ok := v.ids[token]; ok {
		return id
	}
	return v.unk
}

// TokenOf returns the token for id. ok is false for ids outside the vocabulary.
func (v *Vocabulary) TokenOf(id int) (string, bool) {
	idx := id - v.base
	if idx < 0 || idx >= len(v.tokens) {
		return "", false
	}
	return v.tokens[idx], true
}

func (v *Vocabulary) Contains(token string) bool {
	_, ok := v.ids[token]
	return ok
}

// Unknown returns the id of <unk>.
func (v *Vocabulary) Unknown() int { return v.unk }

func (v *Vocabulary) Size() int { return len(v.tokens) }

func (v *Vocabulary) Base() int { return v.base }

// Index maps an id to its dense position in [0, Size). Model inputs and
// log-probability vectors are addressed by this position.
func (v *Vocabulary) Index(id int) int { return id - v.base }

// Entries returns (token, id) pairs in id order.
func (v *Vocabulary) Entries() []Entry {
	out := make([]Entry, len(v.tokens))
	for i, tok := range v.tokens {
		out[i] = Entry{Token: tok, ID: i + v.base}
	}
	return out
}

// Entry is one row of a vocabulary listing.
type Entry struct {
	Token string
	ID    int
}
