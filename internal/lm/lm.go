// Package lm defines the contract between the beam search decoder and a
// character-level language model.
package lm

import "context"

// State is the recurrent memory of one hypothesis: an ordered list of
// tensors (for example c and h for every LSTM layer). A State is owned by
// exactly one hypothesis; branching hypotheses must Clone it.
type State [][]float32

// Clone returns a deep copy of s.
func (s State) Clone() State {
	if s == nil {
		return nil
	}
	out := make(State, len(s))
	for i, t := range s {
		out[i] = append([]float32(nil), t...)
	}
	return out
}

// SameLayout reports whether s and o have the same number of tensors with
// matching widths.
func (s State) SameLayout(o State) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if len(s[i]) != len(o[i]) {
			return false
		}
	}
	return true
}

// ZeroState allocates an all-zero state with one tensor per width.
func ZeroState(widths []int) State {
	s := make(State, len(widths))
	for i, w := range widths {
		s[i] = make([]float32, w)
	}
	return s
}

// Oracle is a single-step scoring function.
//
// Step consumes one previous-token id and one state per batch row and
// returns, for the same rows in the same order, the next state and a vector
// of log-probabilities over the vocabulary (indexed by dense vocabulary
// position). Returned states are fresh allocations and never alias the
// inputs. An Oracle keeps no context between calls.
type Oracle interface {
	Step(ctx context.Context, prevIDs []int, states []State) ([]State, [][]float32, error)
	ZeroState() State
	VocabSize() int
}
