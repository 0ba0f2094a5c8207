package evaluation

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/integrate"
)

// ErrDegenerate is returned when a label set contains only one class, so no
// meaningful curve exists.
var ErrDegenerate = errors.New("labels contain a single class")

// Curve is an ROC or PR curve with its area.
type Curve struct {
	X   []float64 // FPR for ROC, recall for PR
	Y   []float64 // TPR for ROC, precision for PR
	AUC float64
}

type scoredLabel struct {
	score float64
	label float64
}

// sortByScore pairs scores with labels and orders them by descending score,
// validating inputs and counting each class.
func sortByScore(scores, labels []float64) ([]scoredLabel, int, int, error) {
	if len(scores) != len(labels) {
		return nil, 0, 0, errors.Errorf("got %d scores for %d labels", len(scores), len(labels))
	}
	if len(scores) == 0 {
		return nil, 0, 0, errors.New("no samples to evaluate")
	}

	pairs := make([]scoredLabel, len(scores))
	totalPos, totalNeg := 0, 0
	for i := range scores {
		pairs[i] = scoredLabel{score: scores[i], label: labels[i]}
		if labels[i] == 1 {
			totalPos++
		} else {
			totalNeg++
		}
	}
	if totalPos == 0 || totalNeg == 0 {
		return nil, 0, 0, ErrDegenerate
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].score > pairs[j].score
	})
	return pairs, totalPos, totalNeg, nil
}

// ROCCurve builds the receiver operating characteristic from continuous
// scores, sweeping the threshold down through the ranked samples. Tied
// scores move the operating point together.
func ROCCurve(scores, labels []float64) (*Curve, error) {
	pairs, totalPos, totalNeg, err := sortByScore(scores, labels)
	if err != nil {
		return nil, err
	}

	fpr := []float64{0}
	tpr := []float64{0}

	tp, fp := 0, 0
	for i := 0; i < len(pairs); {
		j := i
		for j < len(pairs) && pairs[j].score == pairs[i].score {
			if pairs[j].label == 1 {
				tp++
			} else {
				fp++
			}
			j++
		}
		fpr = append(fpr, float64(fp)/float64(totalNeg))
		tpr = append(tpr, float64(tp)/float64(totalPos))
		i = j
	}

	return &Curve{
		X:   fpr,
		Y:   tpr,
		AUC: integrate.Trapezoidal(fpr, tpr),
	}, nil
}

// PRCurve builds the precision/recall curve from continuous scores. The
// curve starts at recall 0 with precision 1 so the area is well defined.
func PRCurve(scores, labels []float64) (*Curve, error) {
	pairs, totalPos, _, err := sortByScore(scores, labels)
	if err != nil {
		return nil, err
	}

	recall := []float64{0}
	precision := []float64{1}

	tp, fp := 0, 0
	for i := 0; i < len(pairs); {
		j := i
		for j < len(pairs) && pairs[j].score == pairs[i].score {
			if pairs[j].label == 1 {
				tp++
			} else {
				fp++
			}
			j++
		}
		recall = append(recall, float64(tp)/float64(totalPos))
		precision = append(precision, float64(tp)/float64(tp+fp))
		i = j
	}

	return &Curve{
		X:   recall,
		Y:   precision,
		AUC: integrate.Trapezoidal(recall, precision),
	}, nil
}
