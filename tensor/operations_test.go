package tensor

import (
	"math"
	"testing"
)

func TestAddSameShape(t *testing.T) {
	a, _ := NewTensor([]int{2, 2}, Float32, []float32{1, 2, 3, 4})
	b, _ := NewTensor([]int{2, 2}, Float32, []float32{10, 20, 30, 40})

	result, err := Add(a, b)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	expected := []float32{11, 22, 33, 44}
	data := result.Data.([]float32)
	for i, v := range expected {
		if data[i] != v {
			t.Errorf("element %d: expected %f, got %f", i, v, data[i])
		}
	}
}

func TestAddBroadcastVector(t *testing.T) {
	a, _ := NewTensor([]int{2, 3}, Float32, []float32{1, 2, 3, 4, 5, 6})
	bias, _ := NewTensor([]int{3}, Float32, []float32{10, 20, 30})

	result, err := Add(a, bias)
	if err != nil {
		t.Fatalf("Add with broadcast failed: %v", err)
	}

	expected := []float32{11, 22, 33, 14, 25, 36}
	data := result.Data.([]float32)
	for i, v := range expected {
		if data[i] != v {
			t.Errorf("element %d: expected %f, got %f", i, v, data[i])
		}
	}
}

func TestAddBroadcastScalar(t *testing.T) {
	a, _ := NewTensor([]int{3}, Float32, []float32{1, 2, 3})
	s := FromScalar(5)

	result, err := Add(a, s)
	if err != nil {
		t.Fatalf("Add with scalar failed: %v", err)
	}

	expected := []float32{6, 7, 8}
	data := result.Data.([]float32)
	for i, v := range expected {
		if data[i] != v {
			t.Errorf("element %d: expected %f, got %f", i, v, data[i])
		}
	}
}

func TestAddShapeMismatch(t *testing.T) {
	a, _ := NewTensor([]int{2, 2}, Float32, []float32{1, 2, 3, 4})
	b, _ := NewTensor([]int{3}, Float32, []float32{1, 2, 3})

	if _, err := Add(a, b); err == nil {
		t.Error("expected error for incompatible shapes, got nil")
	}
}

func TestMulAndDiv(t *testing.T) {
	a, _ := NewTensor([]int{2}, Float32, []float32{6, 8})
	b, _ := NewTensor([]int{2}, Float32, []float32{2, 4})

	prod, err := Mul(a, b)
	if err != nil {
		t.Fatalf("Mul failed: %v", err)
	}
	quot, err := Div(a, b)
	if err != nil {
		t.Fatalf("Div failed: %v", err)
	}

	pd := prod.Data.([]float32)
	qd := quot.Data.([]float32)
	if pd[0] != 12 || pd[1] != 32 {
		t.Errorf("Mul: expected [12 32], got %v", pd)
	}
	if qd[0] != 3 || qd[1] != 2 {
		t.Errorf("Div: expected [3 2], got %v", qd)
	}
}

func TestMatMul(t *testing.T) {
	a, _ := NewTensor([]int{2, 3}, Float32, []float32{1, 2, 3, 4, 5, 6})
	b, _ := NewTensor([]int{3, 2}, Float32, []float32{7, 8, 9, 10, 11, 12})

	result, err := MatMul(a, b)
	if err != nil {
		t.Fatalf("MatMul failed: %v", err)
	}

	if result.Shape[0] != 2 || result.Shape[1] != 2 {
		t.Fatalf("expected shape [2 2], got %v", result.Shape)
	}

	expected := []float32{58, 64, 139, 154}
	data := result.Data.([]float32)
	for i, v := range expected {
		if data[i] != v {
			t.Errorf("element %d: expected %f, got %f", i, v, data[i])
		}
	}
}

func TestMatMulDimensionMismatch(t *testing.T) {
	a, _ := NewTensor([]int{2, 3}, Float32, []float32{1, 2, 3, 4, 5, 6})
	b, _ := NewTensor([]int{2, 2}, Float32, []float32{1, 2, 3, 4})

	if _, err := MatMul(a, b); err == nil {
		t.Error("expected inner dimension mismatch error, got nil")
	}
}

func TestTranspose(t *testing.T) {
	a, _ := NewTensor([]int{2, 3}, Float32, []float32{1, 2, 3, 4, 5, 6})

	result, err := Transpose(a)
	if err != nil {
		t.Fatalf("Transpose failed: %v", err)
	}

	expected := []float32{1, 4, 2, 5, 3, 6}
	data := result.Data.([]float32)
	for i, v := range expected {
		if data[i] != v {
			t.Errorf("element %d: expected %f, got %f", i, v, data[i])
		}
	}
}

func TestSigmoid(t *testing.T) {
	a, _ := NewTensor([]int{3}, Float32, []float32{0, 100, -100})

	result, err := Sigmoid(a)
	if err != nil {
		t.Fatalf("Sigmoid failed: %v", err)
	}

	data := result.Data.([]float32)
	if math.Abs(float64(data[0])-0.5) > 1e-6 {
		t.Errorf("sigmoid(0): expected 0.5, got %f", data[0])
	}
	if data[1] < 0.9999 {
		t.Errorf("sigmoid(100): expected ~1, got %f", data[1])
	}
	if data[2] > 0.0001 {
		t.Errorf("sigmoid(-100): expected ~0, got %f", data[2])
	}
	// Stable implementation must not produce NaN at extremes.
	for i, v := range data {
		if math.IsNaN(float64(v)) {
			t.Errorf("element %d is NaN", i)
		}
	}
}

func TestReLU(t *testing.T) {
	a, _ := NewTensor([]int{4}, Float32, []float32{-2, -0.5, 0, 3})

	result, err := ReLU(a)
	if err != nil {
		t.Fatalf("ReLU failed: %v", err)
	}

	expected := []float32{0, 0, 0, 3}
	data := result.Data.([]float32)
	for i, v := range expected {
		if data[i] != v {
			t.Errorf("element %d: expected %f, got %f", i, v, data[i])
		}
	}
}

func TestConcat(t *testing.T) {
	a, _ := NewTensor([]int{2, 2}, Float32, []float32{1, 2, 3, 4})
	b, _ := NewTensor([]int{2, 3}, Float32, []float32{5, 6, 7, 8, 9, 10})

	result, err := Concat(a, b)
	if err != nil {
		t.Fatalf("Concat failed: %v", err)
	}

	if result.Shape[0] != 2 || result.Shape[1] != 5 {
		t.Fatalf("expected shape [2 5], got %v", result.Shape)
	}

	expected := []float32{1, 2, 5, 6, 7, 3, 4, 8, 9, 10}
	data := result.Data.([]float32)
	for i, v := range expected {
		if data[i] != v {
			t.Errorf("element %d: expected %f, got %f", i, v, data[i])
		}
	}
}

func TestSumDim(t *testing.T) {
	a, _ := NewTensor([]int{2, 3}, Float32, []float32{1, 2, 3, 4, 5, 6})

	rows, err := SumDim(a, 1, false)
	if err != nil {
		t.Fatalf("SumDim(1) failed: %v", err)
	}
	rd := rows.Data.([]float32)
	if rd[0] != 6 || rd[1] != 15 {
		t.Errorf("row sums: expected [6 15], got %v", rd)
	}

	cols, err := SumDim(a, 0, false)
	if err != nil {
		t.Fatalf("SumDim(0) failed: %v", err)
	}
	cd := cols.Data.([]float32)
	if cd[0] != 5 || cd[1] != 7 || cd[2] != 9 {
		t.Errorf("column sums: expected [5 7 9], got %v", cd)
	}

	kept, err := SumDim(a, 1, true)
	if err != nil {
		t.Fatalf("SumDim keepDim failed: %v", err)
	}
	if kept.Shape[0] != 2 || kept.Shape[1] != 1 {
		t.Errorf("keepDim shape: expected [2 1], got %v", kept.Shape)
	}
}

func TestReshape(t *testing.T) {
	a, _ := NewTensor([]int{2, 3}, Float32, []float32{1, 2, 3, 4, 5, 6})

	flat, err := Reshape(a, []int{6})
	if err != nil {
		t.Fatalf("Reshape failed: %v", err)
	}
	if flat.NumElems != 6 || len(flat.Shape) != 1 {
		t.Errorf("expected shape [6], got %v", flat.Shape)
	}

	if _, err := Reshape(a, []int{4}); err == nil {
		t.Error("expected error reshaping to wrong element count, got nil")
	}
}

func TestZerosOnesItem(t *testing.T) {
	z, err := Zeros([]int{2, 2}, Float32)
	if err != nil {
		t.Fatalf("Zeros failed: %v", err)
	}
	for _, v := range z.Data.([]float32) {
		if v != 0 {
			t.Errorf("Zeros produced %f", v)
		}
	}

	o, err := Ones([]int{3}, Float32)
	if err != nil {
		t.Fatalf("Ones failed: %v", err)
	}
	for _, v := range o.Data.([]float32) {
		if v != 1 {
			t.Errorf("Ones produced %f", v)
		}
	}

	s := FromScalar(2.5)
	val, err := s.Item()
	if err != nil {
		t.Fatalf("Item failed: %v", err)
	}
	if val != 2.5 {
		t.Errorf("expected 2.5, got %f", val)
	}

	if _, err := o.Item(); err == nil {
		t.Error("expected Item to fail on multi-element tensor")
	}
}

func TestInvalidShape(t *testing.T) {
	if _, err := NewTensor([]int{2, 0}, Float32, nil); err == nil {
		t.Error("expected error for zero dimension, got nil")
	}
	if _, err := NewTensor([]int{-1}, Float32, nil); err == nil {
		t.Error("expected error for negative dimension, got nil")
	}
}
