package tensor

import (
	"fmt"
)

// SetCreator wires a tensor into the autograd graph as the output of op.
// Packages building fused operations (losses, custom heads) use this to
// attach their own Operation implementations.
func (t *Tensor) SetCreator(op Operation) {
	t.creator = op
	t.requiresGrad = true
}

// reduceGradientToShape sums a gradient down to the shape of the input it
// belongs to, undoing the forward broadcast.
func reduceGradientToShape(grad *Tensor, targetShape []int) (*Tensor, error) {
	if shapesEqual(grad.Shape, targetShape) {
		return grad, nil
	}

	// Broadcast from a single element: sum everything.
	if calculateNumElements(targetShape) == 1 {
		data := grad.Data.([]float32)
		var sum float32
		for _, v := range data {
			sum += v
		}
		return NewTensor(targetShape, Float32, []float32{sum})
	}

	// Broadcast from [n] across [batch, n]: sum over the batch dimension.
	if len(grad.Shape) == 2 && len(targetShape) == 1 && grad.Shape[1] == targetShape[0] {
		reduced, err := SumDim(grad, 0, false)
		if err != nil {
			return nil, err
		}
		return reduced, nil
	}

	return nil, fmt.Errorf("cannot reduce gradient %v to shape %v", grad.Shape, targetShape)
}

func mustReduce(grad *Tensor, targetShape []int) *Tensor {
	reduced, err := reduceGradientToShape(grad, targetShape)
	if err != nil {
		panic(fmt.Sprintf("autograd: %v", err))
	}
	return reduced
}

type addOp struct {
	a, b *Tensor
}

func (op *addOp) Inputs() []*Tensor { return []*Tensor{op.a, op.b} }

func (op *addOp) Backward(gradOut *Tensor) []*Tensor {
	return []*Tensor{
		mustReduce(gradOut, op.a.Shape),
		mustReduce(gradOut, op.b.Shape),
	}
}

type subOp struct {
	a, b *Tensor
}

func (op *subOp) Inputs() []*Tensor { return []*Tensor{op.a, op.b} }

func (op *subOp) Backward(gradOut *Tensor) []*Tensor {
	neg, _ := unaryOp(gradOut, func(v float32) float32 { return -v })
	return []*Tensor{
		mustReduce(gradOut, op.a.Shape),
		mustReduce(neg, op.b.Shape),
	}
}

type mulOp struct {
	a, b *Tensor
}

func (op *mulOp) Inputs() []*Tensor { return []*Tensor{op.a, op.b} }

func (op *mulOp) Backward(gradOut *Tensor) []*Tensor {
	gradA, _ := Mul(gradOut, op.b)
	gradB, _ := Mul(gradOut, op.a)
	return []*Tensor{
		mustReduce(gradA, op.a.Shape),
		mustReduce(gradB, op.b.Shape),
	}
}

type matMulOp struct {
	a, b *Tensor
}

func (op *matMulOp) Inputs() []*Tensor { return []*Tensor{op.a, op.b} }

func (op *matMulOp) Backward(gradOut *Tensor) []*Tensor {
	// dL/dA = dL/dY @ B^T, dL/dB = A^T @ dL/dY
	bT, _ := Transpose(op.b)
	aT, _ := Transpose(op.a)
	gradA, _ := MatMul(gradOut, bT)
	gradB, _ := MatMul(aT, gradOut)
	return []*Tensor{gradA, gradB}
}

type reluOp struct {
	a *Tensor
}

func (op *reluOp) Inputs() []*Tensor { return []*Tensor{op.a} }

func (op *reluOp) Backward(gradOut *Tensor) []*Tensor {
	in := op.a.Data.([]float32)
	g := gradOut.Data.([]float32)
	result := make([]float32, len(g))
	for i := range g {
		if in[i] > 0 {
			result[i] = g[i]
		}
	}
	grad, _ := NewTensor(op.a.Shape, Float32, result)
	return []*Tensor{grad}
}

type sigmoidOp struct {
	a      *Tensor
	output *Tensor
}

func (op *sigmoidOp) Inputs() []*Tensor { return []*Tensor{op.a} }

func (op *sigmoidOp) Backward(gradOut *Tensor) []*Tensor {
	out := op.output.Data.([]float32)
	g := gradOut.Data.([]float32)
	result := make([]float32, len(g))
	for i := range g {
		result[i] = g[i] * out[i] * (1.0 - out[i])
	}
	grad, _ := NewTensor(op.a.Shape, Float32, result)
	return []*Tensor{grad}
}

type concatOp struct {
	a, b *Tensor
}

func (op *concatOp) Inputs() []*Tensor { return []*Tensor{op.a, op.b} }

func (op *concatOp) Backward(gradOut *Tensor) []*Tensor {
	batch, n, m := op.a.Shape[0], op.a.Shape[1], op.b.Shape[1]
	g := gradOut.Data.([]float32)
	gradA := make([]float32, batch*n)
	gradB := make([]float32, batch*m)
	for i := 0; i < batch; i++ {
		copy(gradA[i*n:(i+1)*n], g[i*(n+m):i*(n+m)+n])
		copy(gradB[i*m:(i+1)*m], g[i*(n+m)+n:(i+1)*(n+m)])
	}
	ta, _ := NewTensor(op.a.Shape, Float32, gradA)
	tb, _ := NewTensor(op.b.Shape, Float32, gradB)
	return []*Tensor{ta, tb}
}

type sumDimOp struct {
	a       *Tensor
	dim     int
	keepDim bool
}

func (op *sumDimOp) Inputs() []*Tensor { return []*Tensor{op.a} }

func (op *sumDimOp) Backward(gradOut *Tensor) []*Tensor {
	rows, cols := op.a.Shape[0], op.a.Shape[1]
	g := gradOut.Data.([]float32)
	result := make([]float32, rows*cols)
	if op.dim == 1 {
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				result[i*cols+j] = g[i]
			}
		}
	} else {
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				result[i*cols+j] = g[j]
			}
		}
	}
	grad, _ := NewTensor(op.a.Shape, Float32, result)
	return []*Tensor{grad}
}

type sumAllOp struct {
	a    *Tensor
	mean bool
}

func (op *sumAllOp) Inputs() []*Tensor { return []*Tensor{op.a} }

func (op *sumAllOp) Backward(gradOut *Tensor) []*Tensor {
	g := gradOut.Data.([]float32)[0]
	if op.mean {
		g /= float32(op.a.NumElems)
	}
	result := make([]float32, op.a.NumElems)
	for i := range result {
		result[i] = g
	}
	grad, _ := NewTensor(op.a.Shape, Float32, result)
	return []*Tensor{grad}
}

type reshapeOp struct {
	a *Tensor
}

func (op *reshapeOp) Inputs() []*Tensor { return []*Tensor{op.a} }

func (op *reshapeOp) Backward(gradOut *Tensor) []*Tensor {
	grad, _ := Reshape(gradOut, op.a.Shape)
	return []*Tensor{grad}
}

func anyRequiresGrad(tensors ...*Tensor) bool {
	for _, t := range tensors {
		if t.requiresGrad {
			return true
		}
	}
	return false
}

func AddAutograd(a, b *Tensor) (*Tensor, error) {
	out, err := Add(a, b)
	if err != nil {
		return nil, err
	}
	if anyRequiresGrad(a, b) {
		out.SetCreator(&addOp{a: a, b: b})
	}
	return out, nil
}

func SubAutograd(a, b *Tensor) (*Tensor, error) {
	out, err := Sub(a, b)
	if err != nil {
		return nil, err
	}
	if anyRequiresGrad(a, b) {
		out.SetCreator(&subOp{a: a, b: b})
	}
	return out, nil
}

func MulAutograd(a, b *Tensor) (*Tensor, error) {
	out, err := Mul(a, b)
	if err != nil {
		return nil, err
	}
	if anyRequiresGrad(a, b) {
		out.SetCreator(&mulOp{a: a, b: b})
	}
	return out, nil
}

func MatMulAutograd(a, b *Tensor) (*Tensor, error) {
	out, err := MatMul(a, b)
	if err != nil {
		return nil, err
	}
	if anyRequiresGrad(a, b) {
		out.SetCreator(&matMulOp{a: a, b: b})
	}
	return out, nil
}

func ReLUAutograd(a *Tensor) (*Tensor, error) {
	out, err := ReLU(a)
	if err != nil {
		return nil, err
	}
	if a.requiresGrad {
		out.SetCreator(&reluOp{a: a})
	}
	return out, nil
}

func SigmoidAutograd(a *Tensor) (*Tensor, error) {
	out, err := Sigmoid(a)
	if err != nil {
		return nil, err
	}
	if a.requiresGrad {
		out.SetCreator(&sigmoidOp{a: a, output: out})
	}
	return out, nil
}

func ConcatAutograd(a, b *Tensor) (*Tensor, error) {
	out, err := Concat(a, b)
	if err != nil {
		return nil, err
	}
	if anyRequiresGrad(a, b) {
		out.SetCreator(&concatOp{a: a, b: b})
	}
	return out, nil
}

func SumDimAutograd(a *Tensor, dim int, keepDim bool) (*Tensor, error) {
	out, err := SumDim(a, dim, keepDim)
	if err != nil {
		return nil, err
	}
	if a.requiresGrad {
		out.SetCreator(&sumDimOp{a: a, dim: dim, keepDim: keepDim})
	}
	return out, nil
}

// SumAllAutograd reduces a tensor to a [1] scalar by summation.
func SumAllAutograd(a *Tensor) (*Tensor, error) {
	data, err := a.GetFloat32Data()
	if err != nil {
		return nil, err
	}
	var sum float32
	for _, v := range data {
		sum += v
	}
	out, err := NewTensor([]int{1}, Float32, []float32{sum})
	if err != nil {
		return nil, err
	}
	if a.requiresGrad {
		out.SetCreator(&sumAllOp{a: a})
	}
	return out, nil
}

// MeanAutograd reduces a tensor to a [1] scalar by averaging.
func MeanAutograd(a *Tensor) (*Tensor, error) {
	data, err := a.GetFloat32Data()
	if err != nil {
		return nil, err
	}
	var sum float32
	for _, v := range data {
		sum += v
	}
	out, err := NewTensor([]int{1}, Float32, []float32{sum / float32(a.NumElems)})
	if err != nil {
		return nil, err
	}
	if a.requiresGrad {
		out.SetCreator(&sumAllOp{a: a, mean: true})
	}
	return out, nil
}

func ReshapeAutograd(a *Tensor, newShape []int) (*Tensor, error) {
	out, err := Reshape(a, newShape)
	if err != nil {
		return nil, err
	}
	if a.requiresGrad {
		out.SetCreator(&reshapeOp{a: a})
	}
	return out, nil
}

// Backward runs reverse-mode differentiation from a scalar tensor, depositing
// accumulated gradients on every reachable leaf with requiresGrad set.
// Gradients add up across calls until cleared with ZeroGrad.
func (t *Tensor) Backward() error {
	if t.NumElems != 1 {
		return fmt.Errorf("Backward requires a scalar tensor, got %d elements", t.NumElems)
	}

	seed, err := Ones(t.Shape, Float32)
	if err != nil {
		return err
	}

	// Topological order over the creator graph.
	visited := make(map[*Tensor]bool)
	var order []*Tensor
	var visit func(node *Tensor)
	visit = func(node *Tensor) {
		if visited[node] {
			return
		}
		visited[node] = true
		if node.creator != nil {
			for _, in := range node.creator.Inputs() {
				visit(in)
			}
		}
		order = append(order, node)
	}
	visit(t)

	grads := map[*Tensor]*Tensor{t: seed}
	for i := len(order) - 1; i >= 0; i-- {
		node := order[i]
		g := grads[node]
		if g == nil {
			continue
		}

		if node.creator == nil {
			if node.requiresGrad {
				if node.grad == nil {
					node.grad = g
				} else {
					acc, err := Add(node.grad, g)
					if err != nil {
						return fmt.Errorf("gradient accumulation failed: %v", err)
					}
					node.grad = acc
				}
			}
			continue
		}

		inputGrads := node.creator.Backward(g)
		inputs := node.creator.Inputs()
		if len(inputGrads) != len(inputs) {
			return fmt.Errorf("operation returned %d gradients for %d inputs", len(inputGrads), len(inputs))
		}
		for j, in := range inputs {
			ig := inputGrads[j]
			if ig == nil {
				continue
			}
			if existing := grads[in]; existing != nil {
				acc, err := Add(existing, ig)
				if err != nil {
					return fmt.Errorf("gradient accumulation failed: %v", err)
				}
				grads[in] = acc
			} else {
				grads[in] = ig
			}
		}
	}

	return nil
}
