package tensor

import (
	"math"
)

// Add adds src to dst element-wise.
func Add(dst, src []float32) {
	for i := range dst {
		dst[i] += src[i]
	}
}

// Dot computes the dot product of a and b.
func Dot(a, b []float32) float32 {
	var sum float32
	i := 0
	for ; i+3 < len(a); i += 4 {
		sum += a[i]*b[i] + a[i+1]*b[i+1] + a[i+2]*b[i+2] + a[i+3]*b[i+3]
	}
	for ; i < len(a); i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// Sigmoid computes the logistic sigmoid activation.
func Sigmoid(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(float64(-x))))
}

func Tanh(x float32) float32 {
	return float32(math.Tanh(float64(x)))
}

// LogSoftmax replaces x with log(softmax(x)) using the max-shift identity.
func LogSoftmax(x []float32) {
	if len(x) == 0 {
		return
	}
	maxv := x[0]
	for _, v := range x[1:] {
		if v > maxv {
			maxv = v
		}
	}
	if math.IsInf(float64(maxv), 0) || math.IsNaN(float64(maxv)) {
		for i := range x {
			x[i] = float32(math.NaN())
		}
		return
	}
	var sum float64
	for _, v := range x {
		sum += math.Exp(float64(v - maxv))
	}
	// Stay in shifted space so large logits keep their low bits.
	ls := float32(math.Log(sum))
	for i := range x {
		x[i] = (x[i] - maxv) - ls
	}
}
