package explain

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/savant-model-analyzer/server/internal/analyzer/model"
	errx "github.com/savant-model-analyzer/server/internal/core/error"
)

// Explainer produces per-row feature attributions for an ensemble.
type Explainer interface {
	Explain(ctx context.Context, e *model.Ensemble, x model.Frame) (Attribution, error)
}

// TreeExplainer computes exact path-dependent TreeSHAP values using the
// node covers stored in each tree as the background distribution.
type TreeExplainer struct {
	// Workers bounds the rows explained concurrently; zero means GOMAXPROCS.
	Workers int
}

func NewTreeExplainer() *TreeExplainer {
	return &TreeExplainer{}
}

func (t *TreeExplainer) Explain(ctx context.Context, e *model.Ensemble, x model.Frame) (Attribution, error) {
	rows, cols := x.Shape()
	if cols != len(e.Features) {
		return Attribution{}, errx.Consistency("frame has %d columns, model expects %d", cols, len(e.Features))
	}

	if rows == 0 {
		return Attribution{}, errx.UnsupportedShape("frame has no rows to explain")
	}

	outputs := e.NOutputs
	tensor := NewTensor(rows, cols, outputs)

	workers := t.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < rows; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			phi := explainRow(e, x.Rows[i])
			for j := 0; j < cols; j++ {
				for k := 0; k < outputs; k++ {
					tensor.Set(i, j, k, phi[j*outputs+k])
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Attribution{}, err
	}
	if err := ctx.Err(); err != nil {
		return Attribution{}, err
	}

	if outputs == 1 {
		return Attribution{Layout: LayoutMatrix, Matrix: tensor.Plane(0)}, nil
	}
	return Attribution{Layout: LayoutStacked, Tensor: tensor}, nil
}

// ExpectedValue is the cover-weighted mean ensemble output, the value the
// attributions of every row sum up from.
func ExpectedValue(e *model.Ensemble) []float64 {
	out := make([]float64, e.NOutputs)
	for _, tree := range e.Trees {
		root := tree.Nodes[0].Cover
		if root <= 0 {
			continue
		}
		for _, n := range tree.Nodes {
			if !n.IsLeaf() {
				continue
			}
			for k, v := range n.Value {
				out[k] += v * n.Cover / root
			}
		}
	}
	if e.Aggregation == model.AggregateMean {
		for k := range out {
			out[k] /= float64(len(e.Trees))
		}
	}
	for k := range e.BaseScore {
		out[k] += e.BaseScore[k]
	}
	return out
}

// Reconstruct adds each row's attributions to the expected value. For exact
// attributions the result is the model output for that row.
func Reconstruct(values mat.Matrix, expected float64) []float64 {
	r, c := values.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		s := expected
		for j := 0; j < c; j++ {
			s += values.At(i, j)
		}
		out[i] = s
	}
	return out
}

// explainRow returns phi laid out as features x outputs.
func explainRow(e *model.Ensemble, row []float64) []float64 {
	outputs := e.NOutputs
	phi := make([]float64, len(e.Features)*outputs)
	for _, tree := range e.Trees {
		w := &treeWalker{tree: tree, row: row, phi: phi, outputs: outputs}
		w.recurse(0, nil, 1, 1, -1)
	}
	if e.Aggregation == model.AggregateMean {
		n := float64(len(e.Trees))
		for i := range phi {
			phi[i] /= n
		}
	}
	return phi
}

type pathElem struct {
	feature int
	zero    float64
	one     float64
	weight  float64
}

type treeWalker struct {
	tree    model.Tree
	row     []float64
	phi     []float64
	outputs int
}

func (w *treeWalker) recurse(node int, parent []pathElem, zero, one float64, feature int) {
	depth := len(parent)
	path := make([]pathElem, depth+1)
	copy(path, parent)
	extendPath(path, depth, zero, one, feature)

	n := w.tree.Nodes[node]
	if n.IsLeaf() {
		for i := 1; i <= depth; i++ {
			el := path[i]
			scale := unwoundPathSum(path, depth, i) * (el.one - el.zero)
			for k := 0; k < w.outputs; k++ {
				w.phi[el.feature*w.outputs+k] += scale * n.Value[k]
			}
		}
		return
	}

	hot := w.tree.Next(node, w.row)
	cold := n.Right
	if hot == n.Right {
		cold = n.Left
	}

	hotZero, coldZero := 0.5, 0.5
	if n.Cover > 0 {
		hotZero = w.tree.Nodes[hot].Cover / n.Cover
		coldZero = w.tree.Nodes[cold].Cover / n.Cover
	}

	inZero, inOne := 1.0, 1.0
	for i := 0; i <= depth; i++ {
		if path[i].feature == n.Feature {
			inZero, inOne = path[i].zero, path[i].one
			unwindPath(path, depth, i)
			path = path[:depth]
			break
		}
	}

	// a branch no background row reaches and x does not follow adds nothing
	if hotZero*inZero != 0 || inOne != 0 {
		w.recurse(hot, path, hotZero*inZero, inOne, n.Feature)
	}
	if coldZero*inZero != 0 {
		w.recurse(cold, path, coldZero*inZero, 0, n.Feature)
	}
}

// extendPath appends a split to the first depth elements of m, updating the
// permutation weights. m must have room for depth+1 elements.
func extendPath(m []pathElem, depth int, zero, one float64, feature int) {
	m[depth] = pathElem{feature: feature, zero: zero, one: one}
	if depth == 0 {
		m[depth].weight = 1
	}
	l := float64(depth + 1)
	for i := depth - 1; i >= 0; i-- {
		m[i+1].weight += one * m[i].weight * float64(i+1) / l
		m[i].weight = zero * m[i].weight * float64(depth-i) / l
	}
}

// unwindPath undoes the extension that added element idx.
func unwindPath(m []pathElem, depth, idx int) {
	one, zero := m[idx].one, m[idx].zero
	next := m[depth].weight
	l := float64(depth + 1)
	for i := depth - 1; i >= 0; i-- {
		if one != 0 {
			tmp := m[i].weight
			m[i].weight = next * l / (float64(i+1) * one)
			next = tmp - m[i].weight*zero*float64(depth-i)/l
		} else {
			m[i].weight = m[i].weight * l / (zero * float64(depth-i))
		}
	}
	for i := idx; i < depth; i++ {
		m[i].feature, m[i].zero, m[i].one = m[i+1].feature, m[i+1].zero, m[i+1].one
	}
}

// unwoundPathSum is the total permutation weight of the path with element
// idx removed, without modifying m.
func unwoundPathSum(m []pathElem, depth, idx int) float64 {
	one, zero := m[idx].one, m[idx].zero
	next := m[depth].weight
	total := 0.0
	if one != 0 {
		for i := depth - 1; i >= 0; i-- {
			tmp := next / (float64(i+1) * one)
			total += tmp
			next = m[i].weight - tmp*zero*float64(depth-i)
		}
	} else {
		for i := depth - 1; i >= 0; i-- {
			total += m[i].weight / (zero * float64(depth-i))
		}
	}
	return total * float64(depth+1)
}

var _ Explainer = (*TreeExplainer)(nil)
