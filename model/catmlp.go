// Package model provides the registered binding classifier architectures.
package model

import (
	"fmt"
	"math/rand"

	"github.com/mhclab/epibind/tensor"
	"github.com/mhclab/epibind/training"
)

// CatMLP scores an epitope/HLA pair by concatenating both embeddings and
// passing them through a small MLP with a single-logit head.
type CatMLP struct {
	epiDim int
	hlaDim int
	net    *training.Sequential
	l2     float64
}

// NewCatMLP builds the network. l2 > 0 enables the Regularize hook, which
// adds l2 * sum(w^2) over all parameters to the loss.
func NewCatMLP(epiDim, hlaDim, hiddenDim int, dropout, l2 float64, rng *rand.Rand) (*CatMLP, error) {
	if epiDim <= 0 || hlaDim <= 0 || hiddenDim <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got epi=%d hla=%d hidden=%d", epiDim, hlaDim, hiddenDim)
	}

	hidden, err := training.NewLinear(epiDim+hlaDim, hiddenDim, true, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to create hidden layer: %v", err)
	}
	head, err := training.NewLinear(hiddenDim, 1, true, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to create output layer: %v", err)
	}

	net := training.NewSequential(hidden, training.NewReLU())
	if dropout > 0 {
		drop, err := training.NewDropout(dropout, rng)
		if err != nil {
			return nil, err
		}
		net.Add(drop)
	}
	net.Add(head)

	return &CatMLP{
		epiDim: epiDim,
		hlaDim: hlaDim,
		net:    net,
		l2:     l2,
	}, nil
}

// Forward expects [epitope batch, HLA batch] and returns [batch, 1] logits
func (m *CatMLP) Forward(inputs []*tensor.Tensor) (*tensor.Tensor, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("expected 2 inputs (epitope, HLA), got %d", len(inputs))
	}
	epi, hla := inputs[0], inputs[1]
	if len(epi.Shape) != 2 || epi.Shape[1] != m.epiDim {
		return nil, fmt.Errorf("epitope input must be [batch, %d], got %v", m.epiDim, epi.Shape)
	}
	if len(hla.Shape) != 2 || hla.Shape[1] != m.hlaDim {
		return nil, fmt.Errorf("HLA input must be [batch, %d], got %v", m.hlaDim, hla.Shape)
	}

	joined, err := tensor.ConcatAutograd(epi, hla)
	if err != nil {
		return nil, fmt.Errorf("failed to concatenate embeddings: %v", err)
	}
	return m.net.Forward(joined)
}

// Parameters returns the trainable parameters
func (m *CatMLP) Parameters() []*tensor.Tensor {
	return m.net.Parameters()
}

func (m *CatMLP) Train() {
	m.net.Train()
}

func (m *CatMLP) Eval() {
	m.net.Eval()
}

func (m *CatMLP) IsTraining() bool {
	return m.net.IsTraining()
}

// Regularize adds the L2 penalty to the loss when enabled
func (m *CatMLP) Regularize(loss *tensor.Tensor) (*tensor.Tensor, error) {
	if m.l2 <= 0 {
		return loss, nil
	}

	lambda := tensor.FromScalar(m.l2)
	for _, param := range m.Parameters() {
		sq, err := tensor.MulAutograd(param, param)
		if err != nil {
			return nil, fmt.Errorf("regularization failed: %v", err)
		}
		sum, err := tensor.SumAllAutograd(sq)
		if err != nil {
			return nil, fmt.Errorf("regularization failed: %v", err)
		}
		term, err := tensor.MulAutograd(sum, lambda)
		if err != nil {
			return nil, fmt.Errorf("regularization failed: %v", err)
		}
		loss, err = tensor.AddAutograd(loss, term)
		if err != nil {
			return nil, fmt.Errorf("regularization failed: %v", err)
		}
	}
	return loss, nil
}
