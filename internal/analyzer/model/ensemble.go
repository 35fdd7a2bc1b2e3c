package model

import (
	"fmt"
	"math"
)

const (
	KindRandomForest  = "random_forest"
	KindGradientBoost = "gradient_boosting"

	AggregateMean = "mean"
	AggregateSum  = "sum"
)

// Node is one split or leaf of a binary decision tree. Leaves have
// Left == Right == -1; rows with x[Feature] <= Threshold go left and NaN
// follows DefaultLeft.
type Node struct {
	Feature     int       `json:"feature"`
	Threshold   float64   `json:"threshold"`
	Left        int       `json:"left"`
	Right       int       `json:"right"`
	Cover       float64   `json:"cover"`
	DefaultLeft bool      `json:"default_left"`
	Value       []float64 `json:"value"`
}

func (n Node) IsLeaf() bool {
	return n.Left < 0 && n.Right < 0
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Next returns the child a row is routed to from node i.
func (t Tree) Next(i int, row []float64) int {
	n := t.Nodes[i]
	x := row[n.Feature]
	if math.IsNaN(x) {
		if n.DefaultLeft {
			return n.Left
		}
		return n.Right
	}
	if x <= n.Threshold {
		return n.Left
	}
	return n.Right
}

func (t Tree) Leaf(row []float64) Node {
	i := 0
	for !t.Nodes[i].IsLeaf() {
		i = t.Next(i, row)
	}
	return t.Nodes[i]
}

// Ensemble is a fitted tree-ensemble classifier. Random forests average
// per-tree class probabilities; boosted models sum per-tree margins.
type Ensemble struct {
	Kind        string    `json:"kind"`
	Aggregation string    `json:"aggregation"`
	NOutputs    int       `json:"n_outputs"`
	Features    []string  `json:"features"`
	BaseScore   []float64 `json:"base_score"`
	Trees       []Tree    `json:"trees"`
}

func (e *Ensemble) Validate() error {
	if e.NOutputs < 1 {
		return fmt.Errorf("n_outputs must be positive, got %d", e.NOutputs)
	}
	if len(e.Trees) == 0 {
		return fmt.Errorf("ensemble has no trees")
	}
	switch e.Aggregation {
	case AggregateMean, AggregateSum:
	default:
		return fmt.Errorf("unknown aggregation %q", e.Aggregation)
	}
	if len(e.BaseScore) != 0 && len(e.BaseScore) != e.NOutputs {
		return fmt.Errorf("base_score has %d values, want %d", len(e.BaseScore), e.NOutputs)
	}
	for ti, t := range e.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if len(n.Value) != e.NOutputs {
				return fmt.Errorf("tree %d node %d has %d values, want %d", ti, ni, len(n.Value), e.NOutputs)
			}
			if n.Cover < 0 {
				return fmt.Errorf("tree %d node %d has negative cover", ti, ni)
			}
			if n.IsLeaf() {
				continue
			}
			if n.Left <= ni || n.Left >= len(t.Nodes) || n.Right <= ni || n.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d has children out of range", ti, ni)
			}
			if n.Feature < 0 || n.Feature >= len(e.Features) {
				return fmt.Errorf("tree %d node %d splits on unknown feature %d", ti, ni, n.Feature)
			}
		}
	}
	return nil
}

// Predict returns the raw ensemble output for one row: class probabilities
// for averaged ensembles, margins for summed ones.
func (e *Ensemble) Predict(row []float64) []float64 {
	out := make([]float64, e.NOutputs)
	for _, t := range e.Trees {
		leaf := t.Leaf(row)
		for k, v := range leaf.Value {
			out[k] += v
		}
	}
	if e.Aggregation == AggregateMean {
		for k := range out {
			out[k] /= float64(len(e.Trees))
		}
	}
	for k := range e.BaseScore {
		out[k] += e.BaseScore[k]
	}
	return out
}

func (e *Ensemble) PredictClass(row []float64) int {
	out := e.Predict(row)
	if len(out) == 1 {
		threshold := 0.5
		if e.Aggregation == AggregateSum {
			threshold = 0
		}
		if out[0] > threshold {
			return 1
		}
		return 0
	}
	best := 0
	for k := 1; k < len(out); k++ {
		if out[k] > out[best] {
			best = k
		}
	}
	return best
}

func (e *Ensemble) PredictFrame(f Frame) Labels {
	out := make(Labels, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = e.PredictClass(row)
	}
	return out
}
