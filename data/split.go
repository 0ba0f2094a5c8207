package data

import (
	"math/rand"
	"sort"

	"github.com/pkg/errors"
)

// StratifiedSplit partitions sample indices into train and validation sets,
// keeping the label distribution of each side close to the full set. Within
// each label group the assignment is shuffled by the given source, so the
// split is reproducible for a fixed seed.
func StratifiedSplit(labels []float64, valSize float64, rng *rand.Rand) (trainIdx, valIdx []int, err error) {
	if valSize <= 0 || valSize >= 1 {
		return nil, nil, errors.Errorf("val_size must be in (0, 1), got %f", valSize)
	}
	if len(labels) == 0 {
		return nil, nil, errors.New("no samples to split")
	}

	groups := make(map[float64][]int)
	for i, label := range labels {
		groups[label] = append(groups[label], i)
	}

	// Iterate groups in a fixed order so the rng consumption is stable.
	keys := make([]float64, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Float64s(keys)

	for _, k := range keys {
		indices := groups[k]
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		nVal := int(float64(len(indices)) * valSize)
		valIdx = append(valIdx, indices[:nVal]...)
		trainIdx = append(trainIdx, indices[nVal:]...)
	}

	if len(trainIdx) == 0 || len(valIdx) == 0 {
		return nil, nil, errors.Errorf("split produced an empty side (train=%d, val=%d)", len(trainIdx), len(valIdx))
	}

	sort.Ints(trainIdx)
	sort.Ints(valIdx)
	return trainIdx, valIdx, nil
}
