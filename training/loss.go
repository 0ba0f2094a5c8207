package training

import (
	"fmt"
	"math"

	"github.com/mhclab/epibind/tensor"
)

// Loss interface defines methods that all loss functions must implement.
// Forward returns a scalar loss tensor wired into the autograd graph.
type Loss interface {
	Forward(predicted, target *tensor.Tensor) (*tensor.Tensor, error)
}

func checkLossShapes(predicted, target *tensor.Tensor) (int, error) {
	if predicted.DType != tensor.Float32 || target.DType != tensor.Float32 {
		return 0, fmt.Errorf("loss requires Float32 predicted and target tensors")
	}
	if predicted.NumElems != target.NumElems {
		return 0, fmt.Errorf("predicted has %d elements, target has %d", predicted.NumElems, target.NumElems)
	}
	return predicted.NumElems, nil
}

// BCEWithLogitsLoss implements binary cross entropy over raw logits, fusing
// the sigmoid into the loss for numerical stability:
//
//	L = mean(max(x, 0) - x*y + log(1 + exp(-|x|)))
type BCEWithLogitsLoss struct{}

// NewBCEWithLogitsLoss creates a new binary cross entropy loss over logits
func NewBCEWithLogitsLoss() *BCEWithLogitsLoss {
	return &BCEWithLogitsLoss{}
}

type bceWithLogitsOp struct {
	predicted *tensor.Tensor
	target    *tensor.Tensor
}

func (op *bceWithLogitsOp) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{op.predicted, op.target}
}

func (op *bceWithLogitsOp) Backward(gradOut *tensor.Tensor) []*tensor.Tensor {
	// dL/dx = (sigmoid(x) - y) / N
	g := gradOut.Data.([]float32)[0]
	x := op.predicted.Data.([]float32)
	y := op.target.Data.([]float32)
	n := float32(len(x))

	gradData := make([]float32, len(x))
	for i := range x {
		sig := float32(1.0 / (1.0 + math.Exp(-float64(x[i]))))
		gradData[i] = g * (sig - y[i]) / n
	}

	grad, _ := tensor.NewTensor(op.predicted.Shape, tensor.Float32, gradData)
	return []*tensor.Tensor{grad, nil}
}

// Forward computes the mean BCE-with-logits loss over all elements.
func (bce *BCEWithLogitsLoss) Forward(predicted, target *tensor.Tensor) (*tensor.Tensor, error) {
	n, err := checkLossShapes(predicted, target)
	if err != nil {
		return nil, err
	}

	x := predicted.Data.([]float32)
	y := target.Data.([]float32)

	var total float64
	for i := 0; i < n; i++ {
		xi := float64(x[i])
		yi := float64(y[i])
		total += math.Max(xi, 0) - xi*yi + math.Log1p(math.Exp(-math.Abs(xi)))
	}

	loss, err := tensor.NewTensor([]int{1}, tensor.Float32, []float32{float32(total / float64(n))})
	if err != nil {
		return nil, err
	}

	if predicted.RequiresGrad() {
		loss.SetCreator(&bceWithLogitsOp{predicted: predicted, target: target})
	}
	return loss, nil
}

// MSELoss implements Mean Squared Error loss function
type MSELoss struct{}

// NewMSELoss creates a new Mean Squared Error loss function
func NewMSELoss() *MSELoss {
	return &MSELoss{}
}

type mseOp struct {
	predicted *tensor.Tensor
	target    *tensor.Tensor
}

func (op *mseOp) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{op.predicted, op.target}
}

func (op *mseOp) Backward(gradOut *tensor.Tensor) []*tensor.Tensor {
	// dL/dx = 2 * (x - y) / N
	g := gradOut.Data.([]float32)[0]
	x := op.predicted.Data.([]float32)
	y := op.target.Data.([]float32)
	n := float32(len(x))

	gradData := make([]float32, len(x))
	for i := range x {
		gradData[i] = g * 2.0 * (x[i] - y[i]) / n
	}

	grad, _ := tensor.NewTensor(op.predicted.Shape, tensor.Float32, gradData)
	return []*tensor.Tensor{grad, nil}
}

// Forward computes the mean squared error: L = (1/N) * sum((x - y)^2)
func (mse *MSELoss) Forward(predicted, target *tensor.Tensor) (*tensor.Tensor, error) {
	n, err := checkLossShapes(predicted, target)
	if err != nil {
		return nil, err
	}

	x := predicted.Data.([]float32)
	y := target.Data.([]float32)

	var total float64
	for i := 0; i < n; i++ {
		diff := float64(x[i] - y[i])
		total += diff * diff
	}

	loss, err := tensor.NewTensor([]int{1}, tensor.Float32, []float32{float32(total / float64(n))})
	if err != nil {
		return nil, err
	}

	if predicted.RequiresGrad() {
		loss.SetCreator(&mseOp{predicted: predicted, target: target})
	}
	return loss, nil
}
