package tensor

import (
	"encoding/binary"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/raymondhs/char-rnn/internal/safetensors"
)

func matVecNaive(dst []float32, w *Mat, x []float32) {
	for i := 0; i < w.R; i++ {
		row := w.Data[i*w.Stride : i*w.Stride+w.C]
		var sum float32
		for j := 0; j < w.C; j++ {
			sum += row[j] * x[j]
		}
		dst[i] = sum
	}
}

func bf16FromF32Bits(u uint32) uint16 {
	rnd := uint32(0x7FFF + ((u >> 16) & 1))
	return uint16((u + rnd) >> 16)
}

func encodeBF16Raw(data []float32) []byte {
	raw := make([]byte, len(data)*2)
	for i, v := range data {
		binary.LittleEndian.PutUint16(raw[i*2:], bf16FromF32Bits(math.Float32bits(v)))
	}
	return raw
}

// encodeFP16Raw handles normal values only, which is all FillRand produces
// after scaling.
func encodeFP16Raw(data []float32) []byte {
	raw := make([]byte, len(data)*2)
	for i, v := range data {
		u := math.Float32bits(v)
		sign := (u >> 31) & 1
		exp := int((u>>23)&0xFF) - 127 + 15
		frac := (u >> 13) & 0x3FF
		var h uint16
		if exp > 0 {
			h = uint16(sign<<15 | uint32(exp)<<10 | frac)
		} else {
			h = uint16(sign << 15)
		}
		binary.LittleEndian.PutUint16(raw[i*2:], h)
	}
	return raw
}

func closeEnough(a, b float32, rel float64) bool {
	da := float64(a)
	db := float64(b)
	diff := math.Abs(da - db)
	scale := math.Max(1.0, math.Max(math.Abs(da), math.Abs(db)))
	return diff <= rel*scale
}

func TestMatVecMatchesNaive(t *testing.T) {
	t.Parallel()

	// Both sizes: one below the fan-out threshold, one above.
	for _, dims := range [][2]int{{7, 5}, {300, 257}} {
		r, c := dims[0], dims[1]
		w := NewMat(r, c)
		FillRand(&w, 3)
		x := make([]float32, c)
		for i := range x {
			x[i] = float32(i%7) - 3
		}
		want := make([]float32, r)
		got := make([]float32, r)
		matVecNaive(want, &w, x)
		MatVec(got, &w, x)
		for i := range want {
			if !closeEnough(got[i], want[i], 1e-5) {
				t.Fatalf("%dx%d: row %d: got %g want %g", r, c, i, got[i], want[i])
			}
		}
	}
}

func TestMatVecConcurrentCallers(t *testing.T) {
	t.Parallel()

	r, c := 256, 256
	w := NewMat(r, c)
	FillRand(&w, 11)
	x := make([]float32, c)
	for i := range x {
		x[i] = 1
	}
	want := make([]float32, r)
	matVecNaive(want, &w, x)

	var wg sync.WaitGroup
	errs := make(chan int, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := make([]float32, r)
			MatVec(got, &w, x)
			for i := range got {
				if !closeEnough(got[i], want[i], 1e-5) {
					errs <- i
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for i := range errs {
		t.Fatalf("concurrent MatVec diverged at row %d", i)
	}
}

func TestMatVecRawHalfPrecision(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dtype  DType
		encode func([]float32) []byte
		tol    float64
	}{
		{BF16, encodeBF16Raw, 5e-2},
		{F16, encodeFP16Raw, 2e-2},
	}
	for _, tc := range tests {
		r, c := 128, 192
		w := NewMat(r, c)
		FillRand(&w, 42)
		x := make([]float32, c)
		for i := range x {
			x[i] = float32(i%5) * 0.5
		}
		wRaw, err := NewMatFromRaw(r, c, tc.dtype, tc.encode(w.Data))
		if err != nil {
			t.Fatalf("NewMatFromRaw %s: %v", tc.dtype, err)
		}
		dstF32 := make([]float32, r)
		dstRaw := make([]float32, r)
		MatVec(dstF32, &w, x)
		MatVec(dstRaw, &wRaw, x)
		for i := range dstF32 {
			if !closeEnough(dstF32[i], dstRaw[i], tc.tol) {
				t.Fatalf("%s mismatch at %d: f32=%g raw=%g", tc.dtype, i, dstF32[i], dstRaw[i])
			}
		}
	}
}

func TestNewMatFromRawValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewMatFromRaw(2, 2, BF16, make([]byte, 6)); err != errRawSizeMismatch {
		t.Fatalf("expected errRawSizeMismatch, got %v", err)
	}
	if _, err := NewMatFromRaw(-1, 2, F32, nil); err != errNegativeDim {
		t.Fatalf("expected errNegativeDim, got %v", err)
	}
	if _, err := NewMatFromRaw(1, 1, DType(9), make([]byte, 4)); err != errUnsupportedDType {
		t.Fatalf("expected errUnsupportedDType, got %v", err)
	}

	raw := make([]byte, 8)
	binary.LittleEndian.PutUint32(raw[0:], math.Float32bits(2.5))
	binary.LittleEndian.PutUint32(raw[4:], math.Float32bits(-1))
	m, err := NewMatFromRaw(1, 2, F32, raw)
	if err != nil {
		t.Fatalf("NewMatFromRaw f32: %v", err)
	}
	if m.Raw != nil || m.Data[0] != 2.5 || m.Data[1] != -1 {
		t.Fatalf("f32 raw should decode to Data: %+v", m)
	}
}

func TestRowAndColumnAccess(t *testing.T) {
	t.Parallel()

	m := NewMatFromData(2, 3, []float32{1, 2, 3, 4, 5, 6})
	if row := m.Row(1); row[0] != 4 || row[2] != 6 {
		t.Fatalf("Row(1) = %v", row)
	}
	col := make([]float32, 2)
	m.ColTo(col, 2)
	if col[0] != 3 || col[1] != 6 {
		t.Fatalf("ColTo(2) = %v", col)
	}

	tail := m.Rows(1, 2)
	if tail.R != 1 || tail.Row(0)[1] != 5 {
		t.Fatalf("Rows(1,2) = %+v", tail)
	}

	half, err := NewMatFromRaw(2, 3, BF16, encodeBF16Raw(m.Data))
	if err != nil {
		t.Fatalf("NewMatFromRaw: %v", err)
	}
	half.ColTo(col, 1)
	if col[0] != 2 || col[1] != 5 {
		t.Fatalf("bf16 ColTo(1) = %v", col)
	}
	row := make([]float32, 3)
	half.RowTo(row, 0)
	if row[0] != 1 || row[1] != 2 || row[2] != 3 {
		t.Fatalf("bf16 RowTo(0) = %v", row)
	}
}

func TestLoadSafetensors(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "w.safetensors")
	err := safetensors.WriteFile(path, []safetensors.Tensor{
		{Name: "w", Shape: []int{2, 2}, Data: []float32{1, 2, 3, 4}},
		{Name: "b", Shape: []int{2}, Data: []float32{0.5, -0.5}},
	}, nil)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	st, err := safetensors.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = st.Close() }()

	w, err := LoadSafetensorsMat(st, "w")
	if err != nil {
		t.Fatalf("LoadSafetensorsMat: %v", err)
	}
	b, err := LoadSafetensorsVec(st, "b")
	if err != nil {
		t.Fatalf("LoadSafetensorsVec: %v", err)
	}
	dst := make([]float32, 2)
	MatVecAdd(dst, w, []float32{1, 1}, b)
	if dst[0] != 3.5 || dst[1] != 6.5 {
		t.Fatalf("MatVecAdd = %v, want [3.5 6.5]", dst)
	}

	if _, err := LoadSafetensorsMat(st, "b"); err == nil {
		t.Fatal("expected rank error loading a vector as a matrix")
	}
	if _, err := LoadSafetensorsVec(st, "w"); err == nil {
		t.Fatal("expected rank error loading a matrix as a vector")
	}
}

func BenchmarkMatVecPool(b *testing.B) {
	r, c := 2048, 512
	w := NewMat(r, c)
	x := make([]float32, c)
	dst := make([]float32, r)
	FillRand(&w, 1)

	for b.Loop() {
		MatVec(dst, &w, x)
	}
}
