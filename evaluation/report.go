package evaluation

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Series is one named curve on a plot, typically the global curve or one
// allele's curve on an overlay.
type Series struct {
	Name  string
	Curve *Curve
}

// Reporter renders evaluation curves as PNG files into a directory.
type Reporter struct {
	dir string
}

// NewReporter creates a reporter writing into dir, creating it if needed.
func NewReporter(dir string) (*Reporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create plot directory %s", dir)
	}
	return &Reporter{dir: dir}, nil
}

// WriteROC renders ROC curves to roc_curve-<name>.png
func (r *Reporter) WriteROC(name string, series ...Series) error {
	path := filepath.Join(r.dir, fmt.Sprintf("roc_curve-%s.png", name))
	return r.render(path, "ROC Curve", "False Positive Rate", "True Positive Rate", true, series)
}

// WritePR renders precision/recall curves to pr_curve-<name>.png
func (r *Reporter) WritePR(name string, series ...Series) error {
	path := filepath.Join(r.dir, fmt.Sprintf("pr_curve-%s.png", name))
	return r.render(path, "Precision-Recall Curve", "Recall", "Precision", false, series)
}

// WriteAlleleROC renders the per-allele ROC overlay to roc_curve_hla-<name>.png
func (r *Reporter) WriteAlleleROC(name string, series ...Series) error {
	path := filepath.Join(r.dir, fmt.Sprintf("roc_curve_hla-%s.png", name))
	return r.render(path, "ROC Curve by HLA", "False Positive Rate", "True Positive Rate", true, series)
}

// WriteAllelePR renders the per-allele PR overlay to pr_curve_hla-<name>.png
func (r *Reporter) WriteAllelePR(name string, series ...Series) error {
	path := filepath.Join(r.dir, fmt.Sprintf("pr_curve_hla-%s.png", name))
	return r.render(path, "Precision-Recall Curve by HLA", "Recall", "Precision", false, series)
}

func (r *Reporter) render(path, title, xLabel, yLabel string, diagonal bool, series []Series) error {
	if len(series) == 0 {
		return errors.New("no curves to plot")
	}

	p, err := plot.New()
	if err != nil {
		return errors.Wrap(err, "failed to create plot")
	}
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	p.Legend.Top = false
	p.Legend.Left = false

	for i, s := range series {
		pts := make(plotter.XYs, len(s.Curve.X))
		for j := range s.Curve.X {
			pts[j].X = s.Curve.X[j]
			pts[j].Y = s.Curve.Y[j]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return errors.Wrapf(err, "failed to build line for %s", s.Name)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%s (AUC = %.3f)", s.Name, s.Curve.AUC), line)
	}

	if diagonal {
		chance, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
		if err != nil {
			return errors.Wrap(err, "failed to build chance line")
		}
		chance.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		p.Add(chance)
	}

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save plot %s", path)
	}
	return nil
}
