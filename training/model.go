package training

import (
	"github.com/mhclab/epibind/tensor"
)

// Model is a parametric function over one or more feature tensors, producing
// a prediction tensor. Binding classifiers receive the epitope embedding and
// the HLA embedding as separate inputs.
type Model interface {
	Forward(inputs []*tensor.Tensor) (*tensor.Tensor, error)
	Parameters() []*tensor.Tensor
	Train()
	Eval()
	IsTraining() bool
}

// Regularizer is an optional hook a model can expose to fold its own
// regularization term into the loss before backpropagation.
type Regularizer interface {
	Regularize(loss *tensor.Tensor) (*tensor.Tensor, error)
}
