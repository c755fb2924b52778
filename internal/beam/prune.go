package beam

import "slices"

// threshold returns the score a candidate needs to survive: the width-th
// highest score, or the lowest score when there are fewer than width
// candidates. scores must be non-empty.
func threshold(scores []float64, width int) float64 {
	sorted := slices.Clone(scores)
	slices.Sort(sorted)
	k := len(sorted) - width
	if k < 0 {
		k = 0
	}
	return sorted[k]
}

// prune keeps every candidate scoring at or above the threshold, in their
// original order. Candidates tied at the threshold all survive, so the
// result can hold more than width hypotheses.
func prune(cands []*Hypothesis, width int) []*Hypothesis {
	if len(cands) == 0 {
		return nil
	}
	scores := make([]float64, len(cands))
	for i, c := range cands {
		scores[i] = c.Score
	}
	t := threshold(scores, width)

	out := make([]*Hypothesis, 0, min(len(cands), width))
	for _, c := range cands {
		if c.Score >= t {
			out = append(out, c)
		}
	}
	return out
}
