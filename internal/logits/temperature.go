package logits

import "math"

// NormalizeTemperature maps non-positive and NaN temperatures to 1, the
// neutral value, the same way a sampler with temperature <= 0 falls back to 1.
func NormalizeTemperature(temp float32) float32 {
	if temp <= 0 || math.IsNaN(float64(temp)) {
		return 1
	}
	return temp
}

// ApplyTemperature divides every log-probability in x by temp in place.
// Scores are not renormalized afterwards: the scaled values are used directly
// as additive beam scores.
func ApplyTemperature(x []float32, temp float32) {
	temp = NormalizeTemperature(temp)
	if temp == 1 {
		return
	}
	invTemp := float32(1.0) / temp
	for i := range x {
		x[i] *= invTemp
	}
}

// Argmax returns the index of the first maximum value in x. Ties resolve to
// the lowest index. It panics on an empty slice.
func Argmax[T ~float32 | ~float64](x []T) int {
	if len(x) == 0 {
		panic("argmax: empty slice")
	}
	bestI := 0
	bestV := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > bestV {
			bestV = x[i]
			bestI = i
		}
	}
	return bestI
}
