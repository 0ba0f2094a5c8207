package tensor

import (
	"fmt"
)

// MatMul multiplies two 2D Float32 tensors: [m, k] x [k, n] -> [m, n].
func MatMul(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkCompatibility(t1, t2); err != nil {
		return nil, err
	}
	if len(t1.Shape) != 2 || len(t2.Shape) != 2 {
		return nil, fmt.Errorf("MatMul requires 2D tensors, got shapes %v and %v", t1.Shape, t2.Shape)
	}
	if t1.Shape[1] != t2.Shape[0] {
		return nil, fmt.Errorf("inner dimension mismatch: %v x %v", t1.Shape, t2.Shape)
	}

	m, k, n := t1.Shape[0], t1.Shape[1], t2.Shape[1]
	a := t1.Data.([]float32)
	b := t2.Data.([]float32)
	result := make([]float32, m*n)

	for i := 0; i < m; i++ {
		for p := 0; p < k; p++ {
			av := a[i*k+p]
			if av == 0 {
				continue
			}
			row := b[p*n : (p+1)*n]
			out := result[i*n : (i+1)*n]
			for j, bv := range row {
				out[j] += av * bv
			}
		}
	}

	return NewTensor([]int{m, n}, Float32, result)
}

// Transpose swaps the two axes of a 2D tensor.
func Transpose(t *Tensor) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("Transpose requires a 2D tensor, got shape %v", t.Shape)
	}
	if t.DType != Float32 {
		return nil, fmt.Errorf("Transpose only supports Float32, got %s", t.DType)
	}

	rows, cols := t.Shape[0], t.Shape[1]
	data := t.Data.([]float32)
	result := make([]float32, len(data))

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			result[j*rows+i] = data[i*cols+j]
		}
	}

	return NewTensor([]int{cols, rows}, Float32, result)
}

// Reshape returns a view-copy of the tensor with a new shape holding the same
// number of elements.
func Reshape(t *Tensor, newShape []int) (*Tensor, error) {
	if err := validateShape(newShape); err != nil {
		return nil, err
	}
	if calculateNumElements(newShape) != t.NumElems {
		return nil, fmt.Errorf("cannot reshape %v (%d elements) to %v", t.Shape, t.NumElems, newShape)
	}
	return NewTensor(newShape, t.DType, t.Data)
}

// Concat joins two 2D tensors along dimension 1: [b, n] ++ [b, m] -> [b, n+m].
func Concat(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkCompatibility(t1, t2); err != nil {
		return nil, err
	}
	if len(t1.Shape) != 2 || len(t2.Shape) != 2 {
		return nil, fmt.Errorf("Concat requires 2D tensors, got shapes %v and %v", t1.Shape, t2.Shape)
	}
	if t1.Shape[0] != t2.Shape[0] {
		return nil, fmt.Errorf("batch dimension mismatch: %v vs %v", t1.Shape, t2.Shape)
	}

	batch, n, m := t1.Shape[0], t1.Shape[1], t2.Shape[1]
	a := t1.Data.([]float32)
	b := t2.Data.([]float32)
	result := make([]float32, batch*(n+m))

	for i := 0; i < batch; i++ {
		copy(result[i*(n+m):i*(n+m)+n], a[i*n:(i+1)*n])
		copy(result[i*(n+m)+n:(i+1)*(n+m)], b[i*m:(i+1)*m])
	}

	return NewTensor([]int{batch, n + m}, Float32, result)
}

// SumDim reduces a 2D tensor along the given dimension. keepDim retains the
// reduced axis with size 1.
func SumDim(t *Tensor, dim int, keepDim bool) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("SumDim requires a 2D tensor, got shape %v", t.Shape)
	}
	if dim != 0 && dim != 1 {
		return nil, fmt.Errorf("SumDim dimension must be 0 or 1, got %d", dim)
	}
	if t.DType != Float32 {
		return nil, fmt.Errorf("SumDim only supports Float32, got %s", t.DType)
	}

	rows, cols := t.Shape[0], t.Shape[1]
	data := t.Data.([]float32)

	var outShape []int
	var result []float32
	if dim == 1 {
		result = make([]float32, rows)
		for i := 0; i < rows; i++ {
			var sum float32
			for j := 0; j < cols; j++ {
				sum += data[i*cols+j]
			}
			result[i] = sum
		}
		if keepDim {
			outShape = []int{rows, 1}
		} else {
			outShape = []int{rows}
		}
	} else {
		result = make([]float32, cols)
		for j := 0; j < cols; j++ {
			var sum float32
			for i := 0; i < rows; i++ {
				sum += data[i*cols+j]
			}
			result[j] = sum
		}
		if keepDim {
			outShape = []int{1, cols}
		} else {
			outShape = []int{cols}
		}
	}

	return NewTensor(outShape, Float32, result)
}
