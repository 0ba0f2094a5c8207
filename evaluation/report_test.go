package evaluation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCurves(t *testing.T) (*Curve, *Curve) {
	t.Helper()
	scores := []float64{0.9, 0.8, 0.4, 0.3, 0.7, 0.2}
	labels := []float64{1, 1, 0, 0, 1, 0}

	roc, err := ROCCurve(scores, labels)
	require.NoError(t, err)
	pr, err := PRCurve(scores, labels)
	require.NoError(t, err)
	return roc, pr
}

func assertPNG(t *testing.T, path string) {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err, "plot file %s missing", path)
	require.Greater(t, len(content), 8)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), content[:8], "not a PNG file")
}

func TestReporterWritesPlots(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")
	reporter, err := NewReporter(dir)
	require.NoError(t, err)

	roc, pr := testCurves(t)

	require.NoError(t, reporter.WriteROC("demo", Series{Name: "test", Curve: roc}))
	require.NoError(t, reporter.WritePR("demo", Series{Name: "test", Curve: pr}))

	assertPNG(t, filepath.Join(dir, "roc_curve-demo.png"))
	assertPNG(t, filepath.Join(dir, "pr_curve-demo.png"))
}

func TestReporterAlleleOverlays(t *testing.T) {
	dir := t.TempDir()
	reporter, err := NewReporter(dir)
	require.NoError(t, err)

	roc, pr := testCurves(t)
	series := []Series{
		{Name: "HLA-A*02:01", Curve: roc},
		{Name: "HLA-B*07:02", Curve: roc},
	}

	require.NoError(t, reporter.WriteAlleleROC("demo", series...))
	require.NoError(t, reporter.WriteAllelePR("demo", Series{Name: "HLA-A*02:01", Curve: pr}))

	assertPNG(t, filepath.Join(dir, "roc_curve_hla-demo.png"))
	assertPNG(t, filepath.Join(dir, "pr_curve_hla-demo.png"))
}

func TestReporterRejectsEmptySeries(t *testing.T) {
	reporter, err := NewReporter(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, reporter.WriteROC("demo"))
}
