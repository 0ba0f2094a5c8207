package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhclab/epibind/tensor"
)

func buildEncoder(t *testing.T) *PairEncoder {
	t.Helper()

	samples := writeFile(t, "samples.csv", `Epi_Seq,HLA_Name,Target
PEPTIDEA,HLA-A,1
PEPTIDEB,HLA-X,0
`)
	hla := writeFile(t, "hla.csv", `HLA_Name,HLA_Seq
HLA-A,SEQA
`)
	epiEmb := writeFile(t, "epi.json", `{
		"PEPTIDEA": [0.1, 0.2],
		"PEPTIDEB": [0.3, 0.4]
	}`)
	// SEQA keyed by sequence; HLA-X has no table entry so its embedding is
	// keyed by the allele name.
	hlaEmb := writeFile(t, "hla.json", `{
		"SEQA": [1, 2, 3],
		"HLA-X": [4, 5, 6]
	}`)

	provider, err := NewProvider(samples, sampleCols)
	require.NoError(t, err)
	table, err := NewAlleleTable(hla, AlleleColumns{NameHeader: "HLA_Name", SequenceHeader: "HLA_Seq"})
	require.NoError(t, err)
	epiStore, err := NewStore(epiEmb)
	require.NoError(t, err)
	hlaStore, err := NewStore(hlaEmb)
	require.NoError(t, err)

	encoder, err := NewPairEncoder(provider, table, epiStore, hlaStore)
	require.NoError(t, err)
	return encoder
}

func TestPairEncoderGet(t *testing.T) {
	encoder := buildEncoder(t)
	assert.Equal(t, 2, encoder.Len())

	inputs, label, err := encoder.Get(0)
	require.NoError(t, err)
	require.Len(t, inputs, 2)

	assert.Equal(t, []int{2}, inputs[0].Shape)
	assert.Equal(t, tensor.Float32, inputs[0].DType)
	assert.InDeltaSlice(t, []float32{0.1, 0.2}, inputs[0].Data.([]float32), 1e-6)

	// HLA-A resolves to SEQA in the sequence-keyed store.
	assert.Equal(t, []int{3}, inputs[1].Shape)
	assert.InDeltaSlice(t, []float32{1, 2, 3}, inputs[1].Data.([]float32), 1e-6)

	assert.Equal(t, []float32{1}, label.Data.([]float32))
}

func TestPairEncoderNameFallback(t *testing.T) {
	encoder := buildEncoder(t)

	// HLA-X is absent from the allele table, so the lookup falls back to
	// the allele name.
	inputs, label, err := encoder.Get(1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{4, 5, 6}, inputs[1].Data.([]float32), 1e-6)
	assert.Equal(t, []float32{0}, label.Data.([]float32))
}

func TestPairEncoderMissingEmbedding(t *testing.T) {
	samples := writeFile(t, "samples.csv", "Epi_Seq,HLA_Name,Target\nUNKNOWN,HLA-A,1\n")
	hla := writeFile(t, "hla.csv", "HLA_Name,HLA_Seq\nHLA-A,SEQA\n")
	epiEmb := writeFile(t, "epi.json", `{"PEPTIDEA": [1]}`)
	hlaEmb := writeFile(t, "hla.json", `{"SEQA": [1]}`)

	provider, err := NewProvider(samples, sampleCols)
	require.NoError(t, err)
	table, err := NewAlleleTable(hla, AlleleColumns{NameHeader: "HLA_Name", SequenceHeader: "HLA_Seq"})
	require.NoError(t, err)
	epiStore, err := NewStore(epiEmb)
	require.NoError(t, err)
	hlaStore, err := NewStore(hlaEmb)
	require.NoError(t, err)

	encoder, err := NewPairEncoder(provider, table, epiStore, hlaStore)
	require.NoError(t, err)

	_, _, err = encoder.Get(0)
	assert.ErrorContains(t, err, "UNKNOWN")
}
