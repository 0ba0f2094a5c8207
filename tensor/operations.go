package tensor

import (
	"fmt"
	"math"
)

func checkCompatibility(t1, t2 *Tensor) error {
	if t1.DType != t2.DType {
		return fmt.Errorf("dtype mismatch: %s vs %s", t1.DType, t2.DType)
	}
	if t1.DType != Float32 {
		return fmt.Errorf("elementwise operations only support Float32, got %s", t1.DType)
	}
	return nil
}

// resolveShapes returns the output shape for a binary elementwise operation.
// Supported forms: identical shapes, a [1] scalar on either side, and a
// trailing-dimension vector against a matrix ([batch, n] op [n]).
func resolveShapes(shape1, shape2 []int) ([]int, error) {
	if shapesEqual(shape1, shape2) {
		return shape1, nil
	}
	if calculateNumElements(shape1) == 1 {
		return shape2, nil
	}
	if calculateNumElements(shape2) == 1 {
		return shape1, nil
	}
	if len(shape1) == 2 && len(shape2) == 1 && shape1[1] == shape2[0] {
		return shape1, nil
	}
	if len(shape2) == 2 && len(shape1) == 1 && shape2[1] == shape1[0] {
		return shape2, nil
	}
	return nil, fmt.Errorf("shapes %v and %v are not broadcastable", shape1, shape2)
}

func shapesEqual(shape1, shape2 []int) bool {
	if len(shape1) != len(shape2) {
		return false
	}
	for i := range shape1 {
		if shape1[i] != shape2[i] {
			return false
		}
	}
	return true
}

// binaryOp applies fn elementwise with the broadcasting rules of resolveShapes.
func binaryOp(t1, t2 *Tensor, fn func(a, b float32) float32) (*Tensor, error) {
	if err := checkCompatibility(t1, t2); err != nil {
		return nil, err
	}

	outShape, err := resolveShapes(t1.Shape, t2.Shape)
	if err != nil {
		return nil, err
	}

	d1 := t1.Data.([]float32)
	d2 := t2.Data.([]float32)
	n := calculateNumElements(outShape)
	result := make([]float32, n)

	idx1 := broadcastIndexer(t1.Shape, outShape)
	idx2 := broadcastIndexer(t2.Shape, outShape)

	for i := 0; i < n; i++ {
		result[i] = fn(d1[idx1(i)], d2[idx2(i)])
	}

	return NewTensor(outShape, Float32, result)
}

// broadcastIndexer maps a flat output index back into a (possibly smaller)
// input tensor laid out according to the supported broadcast forms.
func broadcastIndexer(inShape, outShape []int) func(int) int {
	if shapesEqual(inShape, outShape) {
		return func(i int) int { return i }
	}
	if calculateNumElements(inShape) == 1 {
		return func(int) int { return 0 }
	}
	// [n] broadcast across [batch, n]
	n := inShape[len(inShape)-1]
	return func(i int) int { return i % n }
}

func Add(t1, t2 *Tensor) (*Tensor, error) {
	return binaryOp(t1, t2, func(a, b float32) float32 { return a + b })
}

func Sub(t1, t2 *Tensor) (*Tensor, error) {
	return binaryOp(t1, t2, func(a, b float32) float32 { return a - b })
}

func Mul(t1, t2 *Tensor) (*Tensor, error) {
	return binaryOp(t1, t2, func(a, b float32) float32 { return a * b })
}

func Div(t1, t2 *Tensor) (*Tensor, error) {
	return binaryOp(t1, t2, func(a, b float32) float32 { return a / b })
}

func unaryOp(t *Tensor, fn func(float32) float32) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("unary operations only support Float32, got %s", t.DType)
	}

	data := t.Data.([]float32)
	result := make([]float32, len(data))
	for i, v := range data {
		result[i] = fn(v)
	}

	return NewTensor(t.Shape, Float32, result)
}

func ReLU(t *Tensor) (*Tensor, error) {
	return unaryOp(t, func(v float32) float32 {
		if v > 0 {
			return v
		}
		return 0
	})
}

func Sigmoid(t *Tensor) (*Tensor, error) {
	return unaryOp(t, sigmoid)
}

func Exp(t *Tensor) (*Tensor, error) {
	return unaryOp(t, func(v float32) float32 {
		return float32(math.Exp(float64(v)))
	})
}

func Log(t *Tensor) (*Tensor, error) {
	return unaryOp(t, func(v float32) float32 {
		return float32(math.Log(float64(v)))
	})
}

func Sqrt(t *Tensor) (*Tensor, error) {
	return unaryOp(t, func(v float32) float32 {
		return float32(math.Sqrt(float64(v)))
	})
}

// sigmoid is the numerically stable logistic function.
func sigmoid(x float32) float32 {
	if x >= 0 {
		return float32(1.0 / (1.0 + math.Exp(-float64(x))))
	}
	e := math.Exp(float64(x))
	return float32(e / (1.0 + e))
}
