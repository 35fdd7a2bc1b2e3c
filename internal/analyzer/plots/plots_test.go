package plots

import (
	"bytes"
	"context"
	"encoding/base64"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/savant-model-analyzer/server/internal/analyzer/evaluation"
	"github.com/savant-model-analyzer/server/internal/analyzer/explain"
	"github.com/savant-model-analyzer/server/internal/analyzer/model"
	errx "github.com/savant-model-analyzer/server/internal/core/error"
)

type stubExplainer struct {
	attr explain.Attribution
}

func (s stubExplainer) Explain(context.Context, *model.Ensemble, model.Frame) (explain.Attribution, error) {
	return s.attr, nil
}

func fixture(t *testing.T) (*model.Ensemble, model.Frame) {
	t.Helper()
	x := model.Frame{Columns: []string{"hub", "cost", "age"}}
	var y model.Labels
	for i := 0; i < 40; i++ {
		label := i % 2
		x.Rows = append(x.Rows, []float64{float64(label), float64(50 + i), float64(20 + i%9)})
		y = append(y, label)
	}
	cfg := model.DefaultForestConfig()
	cfg.NTrees = 5
	e, err := model.FitForest(context.Background(), x, y, cfg)
	require.NoError(t, err)
	return e, x
}

func decodePNG(t *testing.T, s string) {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(s)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
}

func TestCalculateSHAPValuesShape(t *testing.T) {
	e, x := fixture(t)
	g := NewGenerator(e, x)
	values, err := g.CalculateSHAPValues(context.Background())
	require.NoError(t, err)

	r, c := values.Dims()
	assert.Equal(t, 40, r)
	assert.Equal(t, 3, c)
	assert.Same(t, values, g.Values())
}

func TestCalculateSHAPValuesLayouts(t *testing.T) {
	x := model.Frame{Columns: []string{"a", "b"}, Rows: [][]float64{{1, 2}, {3, 4}}}
	m0 := mat.NewDense(2, 2, nil)
	m1 := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	g := NewGenerator(&model.Ensemble{}, x, WithExplainer(stubExplainer{explain.Attribution{Layout: explain.LayoutPerClass, PerClass: []*mat.Dense{m0, m1}}}))
	got, err := g.CalculateSHAPValues(context.Background())
	require.NoError(t, err)
	assert.Same(t, m1, got)

	g = NewGenerator(&model.Ensemble{}, x, WithExplainer(stubExplainer{explain.Attribution{Layout: explain.LayoutPerClass, PerClass: []*mat.Dense{m0, m1, m0}}}))
	_, err = g.CalculateSHAPValues(context.Background())
	assert.ErrorIs(t, err, errx.ErrUnsupportedShape)

	g = NewGenerator(&model.Ensemble{}, x, WithExplainer(stubExplainer{explain.Attribution{Layout: explain.LayoutMatrix, Matrix: mat.NewDense(2, 3, nil)}}))
	_, err = g.CalculateSHAPValues(context.Background())
	assert.ErrorIs(t, err, errx.ErrConsistency)
}

func TestGenerateAllWritesFiles(t *testing.T) {
	e, x := fixture(t)
	dir := filepath.Join(t.TempDir(), "out")
	g := NewGenerator(e, x, WithOutputDir(dir))
	require.NoError(t, g.GenerateAll(context.Background(), 2))

	for _, name := range []string{"summary_plot.png", "feature_importance_bar.png", "summary_bar_top5.png"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	entries, err := filepath.Glob(filepath.Join(dir, "dependence_*.png"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestBase64Plots(t *testing.T) {
	e, x := fixture(t)
	g := NewGenerator(e, x)
	_, err := g.CalculateSHAPValues(context.Background())
	require.NoError(t, err)

	s, err := g.SummaryPlotBase64(2)
	require.NoError(t, err)
	decodePNG(t, s)

	s, err = g.SummaryPlotBase64(0)
	require.NoError(t, err)
	decodePNG(t, s)

	s, err = g.TopNSummaryPlotBase64(2)
	require.NoError(t, err)
	decodePNG(t, s)
}

func TestPlotsRequireValues(t *testing.T) {
	_, x := fixture(t)
	g := NewGenerator(nil, x)
	_, err := g.SummaryPlotBase64(0)
	assert.ErrorIs(t, err, errx.ErrConsistency)

	_, err = FromValues(mat.NewDense(40, 2, nil), x)
	assert.ErrorIs(t, err, errx.ErrConsistency)
}

func TestDependencePlotUnknownFeature(t *testing.T) {
	_, x := fixture(t)
	g, err := FromValues(mat.NewDense(40, 3, nil), x, WithOutputDir(t.TempDir()))
	require.NoError(t, err)
	assert.Error(t, g.DependencePlot("missing"))
	assert.NoError(t, g.DependencePlot("cost"))
}

func TestConfusionMatrixBase64(t *testing.T) {
	cm, err := evaluation.ConfusionMatrix(model.Labels{0, 1, 1, 0}, model.Labels{0, 1, 0, 0})
	require.NoError(t, err)
	s, err := ConfusionMatrixBase64(cm, []string{"Not Fulfilled", "Fulfilled"})
	require.NoError(t, err)
	decodePNG(t, s)

	_, err = ConfusionMatrixBase64(evaluation.Confusion{}, nil)
	assert.Error(t, err)
}
