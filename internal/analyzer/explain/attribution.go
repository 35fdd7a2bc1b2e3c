package explain

import (
	"gonum.org/v1/gonum/mat"

	errx "github.com/savant-model-analyzer/server/internal/core/error"
)

// Layout names the shape an explainer hands its attributions back in.
type Layout int

const (
	// LayoutMatrix is a single samples x features matrix.
	LayoutMatrix Layout = iota
	// LayoutPerClass is one samples x features matrix per class.
	LayoutPerClass
	// LayoutStacked is a samples x features x classes tensor.
	LayoutStacked
)

func (l Layout) String() string {
	switch l {
	case LayoutMatrix:
		return "matrix"
	case LayoutPerClass:
		return "per-class"
	case LayoutStacked:
		return "stacked"
	default:
		return "unknown"
	}
}

type Attribution struct {
	Layout   Layout
	Matrix   *mat.Dense
	PerClass []*mat.Dense
	Tensor   *Tensor
}

// Tensor stores a samples x features x classes array in row-major order.
type Tensor struct {
	Samples, Features, Classes int
	Data                       []float64
}

// NewTensor allocates a zeroed tensor; negative dimensions count as zero.
func NewTensor(samples, features, classes int) *Tensor {
	samples, features, classes = max(samples, 0), max(features, 0), max(classes, 0)
	return &Tensor{
		Samples:  samples,
		Features: features,
		Classes:  classes,
		Data:     make([]float64, samples*features*classes),
	}
}

func (t *Tensor) index(i, j, k int) int {
	return (i*t.Features+j)*t.Classes + k
}

func (t *Tensor) At(i, j, k int) float64 {
	return t.Data[t.index(i, j, k)]
}

func (t *Tensor) Set(i, j, k int, v float64) {
	t.Data[t.index(i, j, k)] = v
}

// Plane extracts the samples x features slice for class k. An empty
// tensor yields nil.
func (t *Tensor) Plane(k int) *mat.Dense {
	if t.Samples <= 0 || t.Features <= 0 || k < 0 || k >= t.Classes {
		return nil
	}
	out := mat.NewDense(t.Samples, t.Features, nil)
	for i := 0; i < t.Samples; i++ {
		for j := 0; j < t.Features; j++ {
			out.Set(i, j, t.At(i, j, k))
		}
	}
	return out
}

// PositiveClass is the class whose attributions a binary classifier reports.
const PositiveClass = 1

// Normalize reduces any layout to the positive-class matrix. Only binary
// classifiers are supported when more than one output is present.
func Normalize(a Attribution) (*mat.Dense, error) {
	switch a.Layout {
	case LayoutMatrix:
		if a.Matrix == nil {
			return nil, errx.Consistency("explainer returned no attributions")
		}
		return a.Matrix, nil
	case LayoutPerClass:
		if len(a.PerClass) != 2 {
			return nil, errx.UnsupportedShape("got attributions for %d classes, only binary classification is handled", len(a.PerClass))
		}
		if a.PerClass[PositiveClass] == nil {
			return nil, errx.Consistency("explainer returned no attributions for the positive class")
		}
		return a.PerClass[PositiveClass], nil
	case LayoutStacked:
		if a.Tensor == nil {
			return nil, errx.Consistency("explainer returned no attributions")
		}
		if a.Tensor.Classes != 2 {
			return nil, errx.UnsupportedShape("got attributions for %d classes, only binary classification is handled", a.Tensor.Classes)
		}
		plane := a.Tensor.Plane(PositiveClass)
		if plane == nil {
			return nil, errx.Consistency("explainer returned an empty attribution tensor")
		}
		return plane, nil
	default:
		return nil, errx.UnsupportedShape("unknown attribution layout %d", int(a.Layout))
	}
}
