// Package evaluation scores trained models: inference over a data loader,
// ROC/PR curve construction, and curve plots.
package evaluation

import (
	"math"

	"github.com/pkg/errors"

	"github.com/mhclab/epibind/training"
)

// Predict runs the model in eval mode over every batch of the loader and
// returns sigmoid probabilities in loader order. The loader should not
// shuffle, so scores line up with the underlying sample order.
func Predict(model training.Model, loader *training.DataLoader) ([]float64, error) {
	model.Eval()

	var scores []float64
	defer loader.Stop()
	for batch := range loader.Iterator() {
		output, err := model.Forward(batch.Inputs)
		if err != nil {
			return nil, errors.Wrap(err, "forward pass failed")
		}
		logits, err := output.GetFloat32Data()
		if err != nil {
			return nil, errors.Wrap(err, "unexpected model output")
		}
		for _, logit := range logits {
			scores = append(scores, 1.0/(1.0+math.Exp(-float64(logit))))
		}
	}
	if err := loader.Err(); err != nil {
		return nil, errors.Wrap(err, "data loading failed")
	}

	if len(scores) != loader.Samples() {
		return nil, errors.Errorf("scored %d samples, loader holds %d", len(scores), loader.Samples())
	}
	return scores, nil
}
