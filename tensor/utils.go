package tensor

import (
	"fmt"
)

// Reshape returns a copy of the tensor with a new shape.
func (t *Tensor) Reshape(newShape []int) (*Tensor, error) {
	return Reshape(t, newShape)
}

// Clone returns a deep copy of the tensor's data and shape. Autograd state is
// not carried over: the clone is a fresh leaf.
func (t *Tensor) Clone() (*Tensor, error) {
	shape := make([]int, len(t.Shape))
	copy(shape, t.Shape)

	switch t.DType {
	case Float32:
		src := t.Data.([]float32)
		data := make([]float32, len(src))
		copy(data, src)
		return NewTensor(shape, t.DType, data)
	case Int32:
		src := t.Data.([]int32)
		data := make([]int32, len(src))
		copy(data, src)
		return NewTensor(shape, t.DType, data)
	default:
		return nil, fmt.Errorf("unsupported dtype for Clone: %s", t.DType)
	}
}

func (t *Tensor) GetFloat32Data() ([]float32, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("tensor is %s, not Float32", t.DType)
	}
	return t.Data.([]float32), nil
}

func (t *Tensor) GetInt32Data() ([]int32, error) {
	if t.DType != Int32 {
		return nil, fmt.Errorf("tensor is %s, not Int32", t.DType)
	}
	return t.Data.([]int32), nil
}

// Item returns the single value held by a one-element tensor.
func (t *Tensor) Item() (float64, error) {
	if t.NumElems != 1 {
		return 0, fmt.Errorf("Item requires a single-element tensor, got %d elements", t.NumElems)
	}
	switch t.DType {
	case Float32:
		return float64(t.Data.([]float32)[0]), nil
	case Int32:
		return float64(t.Data.([]int32)[0]), nil
	default:
		return 0, fmt.Errorf("unsupported dtype for Item: %s", t.DType)
	}
}

func (t *Tensor) Size() []int {
	return t.Shape
}

func (t *Tensor) Numel() int {
	return t.NumElems
}

func (t *Tensor) Dim() int {
	return len(t.Shape)
}

// Equal reports whether two tensors have identical shape, dtype, and data.
func (t *Tensor) Equal(other *Tensor) bool {
	if t.DType != other.DType || !shapesEqual(t.Shape, other.Shape) {
		return false
	}
	switch t.DType {
	case Float32:
		a := t.Data.([]float32)
		b := other.Data.([]float32)
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
	case Int32:
		a := t.Data.([]int32)
		b := other.Data.([]int32)
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
	default:
		return false
	}
	return true
}

// ZeroGrad clears the gradients of all supplied tensors.
func ZeroGrad(tensors []*Tensor) {
	for _, t := range tensors {
		t.grad = nil
	}
}
