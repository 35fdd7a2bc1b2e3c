package plots

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/color"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/savant-model-analyzer/server/internal/analyzer/evaluation"
	"github.com/savant-model-analyzer/server/internal/analyzer/explain"
	"github.com/savant-model-analyzer/server/internal/analyzer/model"
	logx "github.com/savant-model-analyzer/server/pkg/logger"
)

var barColor = color.RGBA{R: 0x1e, G: 0x88, B: 0xe5, A: 0xff}

func (g *Generator) SummaryPlot() error {
	if err := g.ready(); err != nil {
		return err
	}
	values, frame := g.top(0)
	p, err := beeswarm(values, frame, g.seed)
	if err != nil {
		return err
	}
	p.Title.Text = "Global Feature Importance"
	return g.save(p, "summary_plot.png", frame)
}

func (g *Generator) BarPlot() error {
	if err := g.ready(); err != nil {
		return err
	}
	p, err := importanceBars(g.values, g.frame.Columns, 0)
	if err != nil {
		return err
	}
	p.Title.Text = "Mean Absolute Feature Importance"
	return g.save(p, "feature_importance_bar.png", g.frame)
}

func (g *Generator) TopNBarPlot(n int) error {
	if err := g.ready(); err != nil {
		return err
	}
	p, err := importanceBars(g.values, g.frame.Columns, n)
	if err != nil {
		return err
	}
	p.Title.Text = fmt.Sprintf("Top %d Feature Importances", n)
	return g.save(p, fmt.Sprintf("summary_bar_top%d.png", n), g.frame)
}

func (g *Generator) DependencePlot(feature string) error {
	if err := g.ready(); err != nil {
		return err
	}
	j, err := g.featureIndex(feature)
	if err != nil {
		return err
	}

	r, _ := g.values.Dims()
	pts := make(plotter.XYs, r)
	for i := 0; i < r; i++ {
		pts[i].X = g.frame.Rows[i][j]
		pts[i].Y = g.values.At(i, j)
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	s.GlyphStyle = draw.GlyphStyle{Color: barColor, Radius: vg.Points(2), Shape: draw.CircleGlyph{}}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Dependence Plot for %s", feature)
	p.X.Label.Text = feature
	p.Y.Label.Text = fmt.Sprintf("SHAP value for %s", feature)
	p.Add(plotter.NewGrid(), s)
	return g.save(p, fmt.Sprintf("dependence_%s.png", feature), g.frame)
}

// SummaryPlotBase64 renders the summary plot for the n most important
// features (all when n <= 0) as a base64 PNG.
func (g *Generator) SummaryPlotBase64(n int) (string, error) {
	if err := g.ready(); err != nil {
		return "", err
	}
	values, frame := g.top(n)
	p, err := beeswarm(values, frame, g.seed)
	if err != nil {
		return "", err
	}
	return encodePNG(p, len(frame.Columns))
}

func (g *Generator) TopNSummaryPlotBase64(n int) (string, error) {
	if err := g.ready(); err != nil {
		return "", err
	}
	p, err := importanceBars(g.values, g.frame.Columns, n)
	if err != nil {
		return "", err
	}
	p.Title.Text = fmt.Sprintf("Top %d Feature Importances", n)
	return encodePNG(p, min(n, len(g.frame.Columns)))
}

// ConfusionMatrixBase64 renders cm as an annotated heat map. names label
// the classes in cm.Labels order; missing names fall back to the label.
func ConfusionMatrixBase64(cm evaluation.Confusion, names []string) (string, error) {
	n := len(cm.Labels)
	if n == 0 {
		return "", fmt.Errorf("empty confusion matrix")
	}
	ticks := make([]string, n)
	for i, l := range cm.Labels {
		ticks[i] = fmt.Sprint(l)
		if i < len(names) {
			ticks[i] = names[i]
		}
	}

	grid := confusionGrid(cm)
	hm := plotter.NewHeatMap(grid, palette.Heat(12, 1))
	if hm.Max == hm.Min {
		hm.Max = hm.Min + 1
	}

	var pts plotter.XYs
	var texts []string
	for pred := 0; pred < n; pred++ {
		for truth := 0; truth < n; truth++ {
			pts = append(pts, plotter.XY{X: float64(pred), Y: float64(n - 1 - truth)})
			texts = append(texts, fmt.Sprint(cm.Counts[truth][pred]))
		}
	}
	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: pts, Labels: texts})
	if err != nil {
		return "", err
	}

	p := plot.New()
	p.Title.Text = "Confusion Matrix"
	p.X.Label.Text = "Predicted Label"
	p.Y.Label.Text = "True Label"
	p.Add(hm, labels)
	p.NominalX(ticks...)
	reversed := make([]string, n)
	for i := range ticks {
		reversed[n-1-i] = ticks[i]
	}
	p.NominalY(reversed...)

	return encodePNG(p, n)
}

type confusionGrid evaluation.Confusion

func (c confusionGrid) Dims() (int, int) { return len(c.Labels), len(c.Labels) }

// Z puts the first true label on the top row.
func (c confusionGrid) Z(col, row int) float64 {
	n := len(c.Labels)
	return float64(c.Counts[n-1-row][col])
}

func (c confusionGrid) X(col int) float64 { return float64(col) }
func (c confusionGrid) Y(row int) float64 { return float64(row) }

// beeswarm draws one jittered row of points per feature, most important on
// top, coloured by the feature value scaled to its column range.
func beeswarm(values *mat.Dense, frame model.Frame, seed uint64) (*plot.Plot, error) {
	r, c := values.Dims()
	rng := rand.New(rand.NewPCG(seed, 0))
	cmap := moreland.SmoothBlueRed()
	cmap.SetMin(0)
	cmap.SetMax(1)

	pts := make(plotter.XYs, 0, r*c)
	styles := make([]draw.GlyphStyle, 0, r*c)
	for j := 0; j < c; j++ {
		col := frame.Column(j)
		lo, hi := span(col)
		y := float64(c - 1 - j)
		for i := 0; i < r; i++ {
			pts = append(pts, plotter.XY{X: values.At(i, j), Y: y + (rng.Float64()-0.5)*0.6})
			v := 0.5
			if hi > lo {
				v = (col[i] - lo) / (hi - lo)
			}
			clr, err := cmap.At(v)
			if err != nil {
				return nil, err
			}
			styles = append(styles, draw.GlyphStyle{Color: clr, Radius: vg.Points(1.5), Shape: draw.CircleGlyph{}})
		}
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	s.GlyphStyleFunc = func(i int) draw.GlyphStyle { return styles[i] }

	p := plot.New()
	p.X.Label.Text = "SHAP value (impact on model output)"
	p.Add(plotter.NewGrid(), s)
	names := make([]string, c)
	for j, name := range frame.Columns {
		names[c-1-j] = name
	}
	p.NominalY(names...)
	return p, nil
}

func importanceBars(values *mat.Dense, columns []string, n int) (*plot.Plot, error) {
	ranked := explain.Rank(values, columns, n)
	k := len(ranked)
	vals := make(plotter.Values, k)
	names := make([]string, k)
	for i, f := range ranked {
		vals[k-1-i] = f.Value
		names[k-1-i] = f.Name
	}
	bars, err := plotter.NewBarChart(vals, vg.Points(10))
	if err != nil {
		return nil, err
	}
	bars.Horizontal = true
	bars.Color = barColor
	bars.LineStyle.Width = 0

	p := plot.New()
	p.X.Label.Text = "mean(|SHAP value|)"
	p.Add(bars)
	p.NominalY(names...)
	return p, nil
}

func span(col []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range col {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// canvasSize grows the height with the number of rows on the y axis.
func canvasSize(rows int) (vg.Length, vg.Length) {
	h := 2*vg.Inch + vg.Length(rows)*0.3*vg.Inch
	if h < 4*vg.Inch {
		h = 4 * vg.Inch
	}
	return 7 * vg.Inch, h
}

func renderPNG(p *plot.Plot, rows int) ([]byte, error) {
	w, h := canvasSize(rows)
	c := vgimg.New(w, h)
	p.Draw(draw.New(c))

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func encodePNG(p *plot.Plot, rows int) (string, error) {
	b, err := renderPNG(p, rows)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func (g *Generator) save(p *plot.Plot, name string, frame model.Frame) error {
	if err := os.MkdirAll(g.outputDir, 0o750); err != nil {
		return fmt.Errorf("create output dir %s: %w", g.outputDir, err)
	}
	b, err := renderPNG(p, len(frame.Columns))
	if err != nil {
		return err
	}
	path := filepath.Join(g.outputDir, name)
	if err := os.WriteFile(path, b, 0o640); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	logx.Debug().Str("path", path).Msg("plot saved")
	return nil
}
