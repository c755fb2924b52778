package tensor

import (
	"fmt"

	"github.com/raymondhs/char-rnn/internal/safetensors"
)

// LoadSafetensorsMat loads a 2D matrix. F16 and BF16 payloads are kept in
// their stored precision and decoded on use.
func LoadSafetensorsMat(st *safetensors.File, name string) (*Mat, error) {
	raw, info, err := st.ReadTensor(name)
	if err != nil {
		return nil, err
	}
	if len(info.Shape) != 2 {
		return nil, fmt.Errorf("%s: expected 2D tensor, got shape %v", name, info.Shape)
	}
	dt, err := ParseDType(info.DType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	// The payload is a view of the mapped file; copy half-precision bytes so
	// the matrix outlives the file handle.
	if dt != F32 {
		raw = append([]byte(nil), raw...)
	}
	m, err := NewMatFromRaw(info.Shape[0], info.Shape[1], dt, raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &m, nil
}

// LoadSafetensorsVec loads a 1D vector as float32.
func LoadSafetensorsVec(st *safetensors.File, name string) ([]float32, error) {
	data, info, err := st.ReadTensorF32(name)
	if err != nil {
		return nil, err
	}
	if len(info.Shape) != 1 {
		return nil, fmt.Errorf("%s: expected 1D tensor, got shape %v", name, info.Shape)
	}
	return data, nil
}
