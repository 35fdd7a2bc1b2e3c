package plots

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/savant-model-analyzer/server/internal/analyzer/explain"
	"github.com/savant-model-analyzer/server/internal/analyzer/model"
	errx "github.com/savant-model-analyzer/server/internal/core/error"
	logx "github.com/savant-model-analyzer/server/pkg/logger"
)

const DefaultOutputDir = "shap_outputs"

// Generator computes positive-class SHAP values for a frame and renders the
// usual explainability plots from them.
type Generator struct {
	ensemble  *model.Ensemble
	frame     model.Frame
	explainer explain.Explainer
	outputDir string
	seed      uint64

	values *mat.Dense
}

type Option func(*Generator)

func WithExplainer(e explain.Explainer) Option {
	return func(g *Generator) { g.explainer = e }
}

func WithOutputDir(dir string) Option {
	return func(g *Generator) { g.outputDir = dir }
}

// WithSeed fixes the jitter used to spread points in summary plots.
func WithSeed(seed uint64) Option {
	return func(g *Generator) { g.seed = seed }
}

func NewGenerator(e *model.Ensemble, frame model.Frame, opts ...Option) *Generator {
	g := &Generator{
		ensemble:  e,
		frame:     frame,
		explainer: explain.NewTreeExplainer(),
		outputDir: DefaultOutputDir,
		seed:      42,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FromValues wraps already computed attributions so they can be plotted
// without the model.
func FromValues(values *mat.Dense, frame model.Frame, opts ...Option) (*Generator, error) {
	g := NewGenerator(nil, frame, opts...)
	if err := checkShape(values, frame); err != nil {
		return nil, err
	}
	g.values = values
	return g, nil
}

// CalculateSHAPValues runs the explainer and keeps the positive-class matrix.
func (g *Generator) CalculateSHAPValues(ctx context.Context) (*mat.Dense, error) {
	if g.ensemble == nil {
		return nil, errx.Consistency("no model to explain")
	}
	attr, err := g.explainer.Explain(ctx, g.ensemble, g.frame)
	if err != nil {
		return nil, err
	}
	values, err := explain.Normalize(attr)
	if err != nil {
		return nil, err
	}
	if err := checkShape(values, g.frame); err != nil {
		return nil, err
	}

	r, c := values.Dims()
	logx.Debug().Int("rows", r).Int("cols", c).Str("layout", attr.Layout.String()).Msg("computed SHAP values")
	g.values = values
	return values, nil
}

func (g *Generator) Values() *mat.Dense {
	return g.values
}

func (g *Generator) ready() error {
	if g.values == nil {
		return errx.Consistency("SHAP values have not been calculated")
	}
	return checkShape(g.values, g.frame)
}

func checkShape(values *mat.Dense, frame model.Frame) error {
	if values == nil {
		return errx.Consistency("no SHAP values")
	}
	r, c := values.Dims()
	fr, fc := frame.Shape()
	if r != fr || c != fc {
		return errx.Consistency("SHAP values are %dx%d but the frame is %dx%d", r, c, fr, fc)
	}
	return nil
}

// top returns the values and frame restricted to the n most important
// columns. n <= 0 or n >= the column count keeps everything.
func (g *Generator) top(n int) (*mat.Dense, model.Frame) {
	_, c := g.values.Dims()
	if n <= 0 || n >= c {
		idx := explain.TopIndices(g.values, 0)
		return selectColumns(g.values, idx), g.frame.Select(idx)
	}
	idx := explain.TopIndices(g.values, n)
	return selectColumns(g.values, idx), g.frame.Select(idx)
}

func selectColumns(m *mat.Dense, cols []int) *mat.Dense {
	r, _ := m.Dims()
	out := mat.NewDense(r, len(cols), nil)
	for k, j := range cols {
		for i := 0; i < r; i++ {
			out.Set(i, k, m.At(i, j))
		}
	}
	return out
}

// GenerateAll computes the values and writes every plot to the output directory.
func (g *Generator) GenerateAll(ctx context.Context, topN int) error {
	if _, err := g.CalculateSHAPValues(ctx); err != nil {
		return err
	}
	if err := g.SummaryPlot(); err != nil {
		return err
	}
	if err := g.BarPlot(); err != nil {
		return err
	}
	if err := g.TopNBarPlot(5); err != nil {
		return err
	}
	if err := g.DependencePlots(topN); err != nil {
		return err
	}
	logx.Info().Str("dir", g.outputDir).Msg("all SHAP plots generated")
	return nil
}

func (g *Generator) DependencePlots(n int) error {
	if err := g.ready(); err != nil {
		return err
	}
	for _, j := range explain.TopIndices(g.values, n) {
		if err := g.DependencePlot(g.frame.Columns[j]); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) featureIndex(name string) (int, error) {
	j := g.frame.ColumnIndex(name)
	if j < 0 {
		return 0, fmt.Errorf("unknown feature %q", name)
	}
	return j, nil
}
