package safetensors

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/goccy/go-json"
)

// writeRaw writes a length-prefixed header followed by payload.
func writeRaw(t *testing.T, header any, payload []byte) string {
	t.Helper()
	headerBytes, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}
	var buf bytes.Buffer
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(headerBytes)))
	buf.Write(lenBuf[:])
	buf.Write(headerBytes)
	buf.Write(payload)

	path := filepath.Join(t.TempDir(), "test.safetensors")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func mustOpen(t *testing.T, path string) *File {
	t.Helper()
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestOpenValidFile(t *testing.T) {
	t.Parallel()
	path := writeRaw(t, map[string]tensorHeader{
		"weight": {DType: "F32", Shape: []int{2, 3}, DataOffsets: []int64{0, 24}},
		"bias":   {DType: "F32", Shape: []int{2}, DataOffsets: []int64{24, 32}},
	}, make([]byte, 32))

	f := mustOpen(t, path)
	if f.Path != path {
		t.Fatalf("expected path %q, got %q", path, f.Path)
	}
	if got := f.Names(); !reflect.DeepEqual(got, []string{"bias", "weight"}) {
		t.Fatalf("Names() = %v", got)
	}
	info, ok := f.Tensor("weight")
	if !ok {
		t.Fatal("tensor 'weight' not found")
	}
	if info.DType != "F32" || !reflect.DeepEqual(info.Shape, []int{2, 3}) {
		t.Fatalf("unexpected tensor info: %+v", info)
	}
}

func TestOpenRejectsBadFiles(t *testing.T) {
	t.Parallel()

	if _, err := Open("/nonexistent/file.safetensors"); err == nil {
		t.Fatal("expected error for nonexistent file")
	}

	short := filepath.Join(t.TempDir(), "short.safetensors")
	if err := os.WriteFile(short, []byte{0, 0, 0, 0}, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := Open(short); !errors.Is(err, ErrCorruptFile) {
		t.Fatalf("expected ErrCorruptFile for truncated file, got %v", err)
	}

	var huge bytes.Buffer
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], 1<<40)
	huge.Write(lenBuf[:])
	huge.WriteString("{}")
	hugePath := filepath.Join(t.TempDir(), "huge.safetensors")
	if err := os.WriteFile(hugePath, huge.Bytes(), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := Open(hugePath); !errors.Is(err, ErrCorruptFile) {
		t.Fatalf("expected ErrCorruptFile for oversized header length, got %v", err)
	}
}

func TestOpenInvalidHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		header  any
		payload int
	}{
		{"not an object", []int{1, 2}, 0},
		{"one offset", map[string]any{
			"bad": map[string]any{"dtype": "F32", "shape": []int{1}, "data_offsets": []int64{0}},
		}, 4},
		{"inverted offsets", map[string]any{
			"bad": map[string]any{"dtype": "F32", "shape": []int{2}, "data_offsets": []int64{8, 0}},
		}, 8},
		{"past end of file", map[string]any{
			"bad": map[string]any{"dtype": "F32", "shape": []int{4}, "data_offsets": []int64{0, 16}},
		}, 8},
	}
	for _, tc := range tests {
		path := writeRaw(t, tc.header, make([]byte, tc.payload))
		if _, err := Open(path); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestMetadata(t *testing.T) {
	t.Parallel()
	path := writeRaw(t, map[string]any{
		"__metadata__": map[string]string{"format": "pt"},
		"tensor1":      map[string]any{"dtype": "F32", "shape": []int{4}, "data_offsets": []int64{0, 16}},
	}, make([]byte, 16))

	f := mustOpen(t, path)
	if len(f.Tensors) != 1 {
		t.Fatalf("expected 1 tensor (metadata should be excluded), got %d", len(f.Tensors))
	}
	if f.Metadata["format"] != "pt" {
		t.Fatalf("metadata = %v", f.Metadata)
	}
}

func TestTensorNotFound(t *testing.T) {
	t.Parallel()
	path := writeRaw(t, map[string]tensorHeader{
		"a": {DType: "F32", Shape: []int{1}, DataOffsets: []int64{0, 4}},
	}, make([]byte, 4))

	f := mustOpen(t, path)
	if _, ok := f.Tensor("nonexistent"); ok {
		t.Fatal("expected tensor not found")
	}
	if _, _, err := f.ReadTensor("nonexistent"); !errors.Is(err, ErrTensorNotFound) {
		t.Fatalf("expected ErrTensorNotFound, got %v", err)
	}
}

func TestReadTensorF32Decoding(t *testing.T) {
	t.Parallel()

	f32 := make([]byte, 8)
	binary.LittleEndian.PutUint32(f32[0:], math.Float32bits(1.5))
	binary.LittleEndian.PutUint32(f32[4:], math.Float32bits(-4))
	bf16 := make([]byte, 4)
	binary.LittleEndian.PutUint16(bf16[0:], 0x3F80)
	binary.LittleEndian.PutUint16(bf16[2:], 0x4000)
	f16 := make([]byte, 4)
	binary.LittleEndian.PutUint16(f16[0:], 0x3C00)
	binary.LittleEndian.PutUint16(f16[2:], 0xBC00)

	tests := []struct {
		dtype   string
		payload []byte
		want    []float32
	}{
		{"F32", f32, []float32{1.5, -4}},
		{"BF16", bf16, []float32{1, 2}},
		{"F16", f16, []float32{1, -1}},
	}
	for _, tc := range tests {
		path := writeRaw(t, map[string]tensorHeader{
			"test": {DType: tc.dtype, Shape: []int{2}, DataOffsets: []int64{0, int64(len(tc.payload))}},
		}, tc.payload)
		f := mustOpen(t, path)
		got, info, err := f.ReadTensorF32("test")
		if err != nil {
			t.Fatalf("%s: ReadTensorF32: %v", tc.dtype, err)
		}
		if info.DType != tc.dtype {
			t.Fatalf("%s: info dtype %q", tc.dtype, info.DType)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.dtype, got, tc.want)
		}
	}
}

func TestReadTensorF32Errors(t *testing.T) {
	t.Parallel()
	path := writeRaw(t, map[string]tensorHeader{
		"ints":  {DType: "I32", Shape: []int{2}, DataOffsets: []int64{0, 8}},
		"short": {DType: "F32", Shape: []int{4}, DataOffsets: []int64{8, 16}},
	}, make([]byte, 16))

	f := mustOpen(t, path)
	if _, _, err := f.ReadTensorF32("ints"); err == nil {
		t.Fatal("expected error for unsupported dtype")
	}
	if _, _, err := f.ReadTensorF32("short"); err == nil {
		t.Fatal("expected error for size mismatch")
	}
}

func TestNumElements(t *testing.T) {
	t.Parallel()

	tests := []struct {
		shape    []int
		expected int
		wantErr  bool
	}{
		{[]int{2, 3}, 6, false},
		{[]int{1}, 1, false},
		{[]int{4, 5, 6}, 120, false},
		{[]int{}, 0, true},
		{[]int{0}, 0, true},
		{[]int{2, -1}, 0, true},
	}
	for _, tc := range tests {
		n, err := numElements(tc.shape)
		if tc.wantErr {
			if err == nil {
				t.Errorf("numElements(%v): expected error", tc.shape)
			}
			continue
		}
		if err != nil || n != tc.expected {
			t.Errorf("numElements(%v) = %d, %v; want %d", tc.shape, n, err, tc.expected)
		}
	}
}

func TestFp16ToFloat32(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    uint16
		expected float32
	}{
		{0x3C00, 1.0},
		{0xBC00, -1.0},
		{0x3800, 0.5},
		{0x0000, 0.0},
		{0x0001, float32(math.Ldexp(1, -24))}, // smallest subnormal
		{0x7C00, float32(math.Inf(1))},
		{0xFC00, float32(math.Inf(-1))},
	}
	for _, tc := range tests {
		if got := fp16ToFloat32(tc.input); got != tc.expected {
			t.Errorf("fp16ToFloat32(0x%04X) = %g, want %g", tc.input, got, tc.expected)
		}
	}
}

func TestWriteRoundTrip(t *testing.T) {
	t.Parallel()

	tensors := []Tensor{
		{Name: "decoder.weight", Shape: []int{2, 3}, Data: []float32{1, 2, 3, 4, 5, 6}},
		{Name: "decoder.bias", Shape: []int{2}, Data: []float32{-0.5, 0.25}},
	}
	path := filepath.Join(t.TempDir(), "model.safetensors")
	if err := WriteFile(path, tensors, map[string]string{"model_type": "lstm"}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f := mustOpen(t, path)
	if f.Metadata["model_type"] != "lstm" {
		t.Fatalf("metadata = %v", f.Metadata)
	}
	for _, want := range tensors {
		got, info, err := f.ReadTensorF32(want.Name)
		if err != nil {
			t.Fatalf("ReadTensorF32(%s): %v", want.Name, err)
		}
		if !reflect.DeepEqual(info.Shape, want.Shape) || !reflect.DeepEqual(got, want.Data) {
			t.Fatalf("%s: got %v %v, want %v %v", want.Name, info.Shape, got, want.Shape, want.Data)
		}
	}
}

func TestWriteValidation(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := Write(&buf, []Tensor{{Name: "x", Shape: []int{3}, Data: []float32{1}}}, nil)
	if err == nil {
		t.Fatal("expected shape/data mismatch error")
	}
	err = Write(&buf, []Tensor{
		{Name: "x", Shape: []int{1}, Data: []float32{1}},
		{Name: "x", Shape: []int{1}, Data: []float32{2}},
	}, nil)
	if err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestOpenReaderAtAndClose(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Write(&buf, []Tensor{{Name: "v", Shape: []int{2}, Data: []float32{7, 8}}}, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := OpenReaderAt(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("OpenReaderAt: %v", err)
	}
	got, _, err := f.ReadTensorF32("v")
	if err != nil || !reflect.DeepEqual(got, []float32{7, 8}) {
		t.Fatalf("ReadTensorF32 = %v, %v", got, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, _, err := f.ReadTensor("v"); err == nil {
		t.Fatal("expected error reading from a closed file")
	}
	if err := f.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
