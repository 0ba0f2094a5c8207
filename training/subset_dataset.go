package training

import (
	"fmt"

	"github.com/mhclab/epibind/tensor"
)

// Subset exposes an arbitrary selection of sample indices from an underlying
// dataset, typically one side of a train/validation split.
type Subset struct {
	original Dataset
	indices  []int
}

// NewSubset creates a Subset projecting the given indices of the original
// dataset. Indices are validated up front so Get never maps out of range.
func NewSubset(original Dataset, indices []int) (*Subset, error) {
	n := original.Len()
	for _, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("subset index %d out of range [0, %d)", idx, n)
		}
	}
	return &Subset{
		original: original,
		indices:  indices,
	}, nil
}

// Len returns the number of samples in the subset
func (s *Subset) Len() int {
	return len(s.indices)
}

// Get returns the sample at position idx of the subset
func (s *Subset) Get(idx int) ([]*tensor.Tensor, *tensor.Tensor, error) {
	if idx < 0 || idx >= len(s.indices) {
		return nil, nil, fmt.Errorf("index out of bounds for subset: %d (size: %d)", idx, len(s.indices))
	}
	return s.original.Get(s.indices[idx])
}
