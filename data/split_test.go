package data

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStratifiedSplitProportions(t *testing.T) {
	// 60 positives, 40 negatives.
	labels := make([]float64, 100)
	for i := 0; i < 60; i++ {
		labels[i] = 1
	}

	train, val, err := StratifiedSplit(labels, 0.2, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	assert.Len(t, val, 20)
	assert.Len(t, train, 80)

	countPos := func(idx []int) int {
		n := 0
		for _, i := range idx {
			if labels[i] == 1 {
				n++
			}
		}
		return n
	}
	// Each side keeps the 60/40 label ratio exactly.
	assert.Equal(t, 12, countPos(val))
	assert.Equal(t, 48, countPos(train))
}

func TestStratifiedSplitDisjointAndComplete(t *testing.T) {
	labels := []float64{1, 1, 1, 1, 1, 0, 0, 0, 0, 0}
	train, val, err := StratifiedSplit(labels, 0.2, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	seen := make(map[int]int)
	for _, i := range train {
		seen[i]++
	}
	for _, i := range val {
		seen[i]++
	}
	assert.Len(t, seen, len(labels))
	for i, count := range seen {
		assert.Equal(t, 1, count, "index %d assigned %d times", i, count)
	}
}

func TestStratifiedSplitDeterministic(t *testing.T) {
	labels := make([]float64, 50)
	for i := range labels {
		labels[i] = float64(i % 2)
	}

	train1, val1, err := StratifiedSplit(labels, 0.3, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	train2, val2, err := StratifiedSplit(labels, 0.3, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	assert.Equal(t, train1, train2)
	assert.Equal(t, val1, val2)

	_, val3, err := StratifiedSplit(labels, 0.3, rand.New(rand.NewSource(8)))
	require.NoError(t, err)
	assert.NotEqual(t, val1, val3)
}

func TestStratifiedSplitValidation(t *testing.T) {
	labels := []float64{1, 0}

	_, _, err := StratifiedSplit(labels, 0, rand.New(rand.NewSource(1)))
	assert.Error(t, err)

	_, _, err = StratifiedSplit(labels, 1, rand.New(rand.NewSource(1)))
	assert.Error(t, err)

	_, _, err = StratifiedSplit(nil, 0.2, rand.New(rand.NewSource(1)))
	assert.Error(t, err)

	// Two samples at 20% gives an empty validation side.
	_, _, err = StratifiedSplit(labels, 0.2, rand.New(rand.NewSource(1)))
	assert.ErrorContains(t, err, "empty")
}
