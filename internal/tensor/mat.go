package tensor

import (
	"math/rand"
)

// Mat is a dense row-major matrix.
//
// For F32 weights Data is populated. For F16/BF16 weights Raw holds the
// little-endian payload and rows are decoded inline by MatVec and RowTo, so a
// half-precision checkpoint stays half-precision in memory.
type Mat struct {
	R, C   int
	Stride int

	DType DType
	Data  []float32
	Raw   []byte
}

// NewMat allocates a zeroed F32 matrix.
func NewMat(r, c int) Mat {
	if r < 0 || c < 0 {
		panic("negative dimension for matrix")
	}
	return Mat{
		R:      r,
		C:      c,
		Stride: c,
		DType:  F32,
		Data:   make([]float32, r*c),
	}
}

// NewMatFromData wraps data, which must hold exactly r*c values.
func NewMatFromData(r, c int, data []float32) Mat {
	if r*c != len(data) {
		panic("data length mismatch")
	}
	return Mat{
		R:      r,
		C:      c,
		Stride: c,
		DType:  F32,
		Data:   data,
	}
}

// NewMatFromRaw creates a matrix backed by raw bytes in the provided dtype.
// The raw slice must contain exactly r*c elements in row-major layout.
func NewMatFromRaw(r, c int, dtype DType, raw []byte) (Mat, error) {
	if r < 0 || c < 0 {
		return Mat{}, errNegativeDim
	}
	elemSize, ok := dtypeElemSize(dtype)
	if !ok {
		return Mat{}, errUnsupportedDType
	}
	want := r * c
	if r != 0 && want/r != c {
		return Mat{}, errMatTooLarge
	}
	if len(raw) != want*elemSize {
		return Mat{}, errRawSizeMismatch
	}
	if dtype == F32 {
		data := make([]float32, want)
		for i := range data {
			data[i] = float32frombytes(raw, i*4)
		}
		return NewMatFromData(r, c, data), nil
	}
	return Mat{
		R:      r,
		C:      c,
		Stride: c,
		DType:  dtype,
		Raw:    raw,
	}, nil
}

func (m *Mat) raw() bool { return m.Raw != nil && m.DType != F32 }

// Row returns the i-th row. For F32 matrices the slice aliases the matrix;
// half-precision rows are decoded into a new slice.
func (m *Mat) Row(i int) []float32 {
	if i < 0 || i >= m.R {
		panic("row index out of range")
	}
	if !m.raw() {
		start := i * m.Stride
		return m.Data[start : start+m.C]
	}
	row := make([]float32, m.C)
	m.RowTo(row, i)
	return row
}

// RowTo decodes the i-th row into dst. dst must have length >= C.
func (m *Mat) RowTo(dst []float32, i int) {
	if i < 0 || i >= m.R {
		panic("row index out of range")
	}
	if len(dst) < m.C {
		panic("row buffer too small")
	}
	start := i * m.Stride
	if !m.raw() {
		copy(dst[:m.C], m.Data[start:start+m.C])
		return
	}
	for j := 0; j < m.C; j++ {
		dst[j] = decodeAt(m.DType, m.Raw, start+j)
	}
}

// ColTo copies column j into dst. dst must have length >= R.
func (m *Mat) ColTo(dst []float32, j int) {
	if j < 0 || j >= m.C {
		panic("column index out of range")
	}
	if len(dst) < m.R {
		panic("column buffer too small")
	}
	for i := 0; i < m.R; i++ {
		if m.raw() {
			dst[i] = decodeAt(m.DType, m.Raw, i*m.Stride+j)
		} else {
			dst[i] = m.Data[i*m.Stride+j]
		}
	}
}

// Rows returns a view of rows [start, end) sharing storage with m.
func (m *Mat) Rows(start, end int) Mat {
	if start < 0 || end > m.R || start > end {
		panic("row range out of bounds")
	}
	v := Mat{R: end - start, C: m.C, Stride: m.Stride, DType: m.DType}
	if m.raw() {
		v.Raw = m.Raw[start*m.Stride*2 : end*m.Stride*2]
	} else {
		v.Data = m.Data[start*m.Stride : end*m.Stride]
	}
	return v
}

// FillRand fills the matrix with reproducible values in (-0.01, 0.01).
func FillRand(m *Mat, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	if m.raw() {
		panic("FillRand only supports f32 mats")
	}
	for i := range m.Data {
		m.Data[i] = (rng.Float32() - 0.5) * 0.02
	}
}

var (
	errNegativeDim      = fmtError("negative dimension for matrix")
	errUnsupportedDType = fmtError("unsupported dtype for raw matrix")
	errMatTooLarge      = fmtError("matrix too large")
	errRawSizeMismatch  = fmtError("raw data length mismatch")
)

type fmtError string

func (e fmtError) Error() string { return string(e) }
