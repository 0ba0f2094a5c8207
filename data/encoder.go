package data

import (
	"github.com/pkg/errors"

	"github.com/mhclab/epibind/tensor"
)

// PairEncoder turns provider samples into model-ready tensor pairs. The
// epitope embedding is keyed by the epitope sequence; the HLA embedding is
// keyed by the allele's sequence from the allele table, falling back to the
// allele name for tables that were built on names.
type PairEncoder struct {
	provider *Provider
	alleles  *AlleleTable
	epi      *Store
	hla      *Store
}

// NewPairEncoder wires a provider to its embedding stores.
func NewPairEncoder(provider *Provider, alleles *AlleleTable, epi, hla *Store) (*PairEncoder, error) {
	if provider == nil || alleles == nil || epi == nil || hla == nil {
		return nil, errors.New("pair encoder requires a provider, allele table, and both embedding stores")
	}
	return &PairEncoder{
		provider: provider,
		alleles:  alleles,
		epi:      epi,
		hla:      hla,
	}, nil
}

// Len returns the number of encodable samples
func (e *PairEncoder) Len() int {
	return e.provider.Len()
}

// Get encodes the sample at idx as [epitope tensor, HLA tensor] inputs and
// a single-element label tensor.
func (e *PairEncoder) Get(idx int) ([]*tensor.Tensor, *tensor.Tensor, error) {
	sample, err := e.provider.Sample(idx)
	if err != nil {
		return nil, nil, err
	}

	epiVec, err := e.epi.Lookup(sample.Epitope)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "sample %d", idx)
	}

	hlaKey := sample.HLA
	if seq, ok := e.alleles.Sequence(sample.HLA); ok {
		hlaKey = seq
	}
	hlaVec, err := e.hla.Lookup(hlaKey)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "sample %d (allele %s)", idx, sample.HLA)
	}

	epiT, err := vectorTensor(epiVec)
	if err != nil {
		return nil, nil, err
	}
	hlaT, err := vectorTensor(hlaVec)
	if err != nil {
		return nil, nil, err
	}

	label, err := tensor.NewTensor([]int{1}, tensor.Float32, []float32{float32(sample.Label)})
	if err != nil {
		return nil, nil, err
	}

	return []*tensor.Tensor{epiT, hlaT}, label, nil
}

func vectorTensor(vec []float64) (*tensor.Tensor, error) {
	data := make([]float32, len(vec))
	for i, v := range vec {
		data[i] = float32(v)
	}
	return tensor.NewTensor([]int{len(vec)}, tensor.Float32, data)
}
