package model

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/mhclab/epibind/tensor"
)

// BilinearScorer scores an epitope/HLA pair as epi^T W hla + b, a single
// interaction matrix with no hidden layers.
type BilinearScorer struct {
	epiDim   int
	hlaDim   int
	weight   *tensor.Tensor
	bias     *tensor.Tensor
	training bool
}

// NewBilinearScorer creates the interaction matrix with Xavier uniform init
func NewBilinearScorer(epiDim, hlaDim int, rng *rand.Rand) (*BilinearScorer, error) {
	if epiDim <= 0 || hlaDim <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got epi=%d hla=%d", epiDim, hlaDim)
	}

	bound := float32(math.Sqrt(6.0 / float64(epiDim+hlaDim)))
	weight, err := tensor.RandomUniform([]int{epiDim, hlaDim}, -bound, bound, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to create interaction matrix: %v", err)
	}
	weight.SetRequiresGrad(true)

	bias, err := tensor.Zeros([]int{1}, tensor.Float32)
	if err != nil {
		return nil, fmt.Errorf("failed to create bias: %v", err)
	}
	bias.SetRequiresGrad(true)

	return &BilinearScorer{
		epiDim:   epiDim,
		hlaDim:   hlaDim,
		weight:   weight,
		bias:     bias,
		training: true,
	}, nil
}

// Forward expects [epitope batch, HLA batch] and returns [batch, 1] logits
func (m *BilinearScorer) Forward(inputs []*tensor.Tensor) (*tensor.Tensor, error) {
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

	// (epi @ W) * hla summed over the feature dim gives epi^T W hla per row.
	projected, err := tensor.MatMulAutograd(epi, m.weight)
	if err != nil {
		return nil, fmt.Errorf("projection failed: %v", err)
	}
	interaction, err := tensor.MulAutograd(projected, hla)
	if err != nil {
		return nil, fmt.Errorf("interaction failed: %v", err)
	}
	score, err := tensor.SumDimAutograd(interaction, 1, true)
	if err != nil {
		return nil, fmt.Errorf("score reduction failed: %v", err)
	}
	return tensor.AddAutograd(score, m.bias)
}

// Parameters returns the trainable parameters
func (m *BilinearScorer) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{m.weight, m.bias}
}

func (m *BilinearScorer) Train() {
	m.training = true
}

func (m *BilinearScorer) Eval() {
	m.training = false
}

func (m *BilinearScorer) IsTraining() bool {
	return m.training
}
