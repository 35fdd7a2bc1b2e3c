package explain

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

type FeatureImportance struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Index int     `json:"-"`
}

// MeanAbs is the mean absolute attribution of every column.
func MeanAbs(values mat.Matrix) []float64 {
	r, c := values.Dims()
	out := make([]float64, c)
	if r == 0 {
		return out
	}
	for j := 0; j < c; j++ {
		s := 0.0
		for i := 0; i < r; i++ {
			s += math.Abs(values.At(i, j))
		}
		out[j] = s / float64(r)
	}
	return out
}

// Rank orders features by mean absolute attribution, largest first, and
// keeps the top n. n <= 0 keeps every feature.
func Rank(values mat.Matrix, names []string, n int) []FeatureImportance {
	means := MeanAbs(values)
	out := make([]FeatureImportance, len(means))
	for j, v := range means {
		name := ""
		if j < len(names) {
			name = names[j]
		}
		out[j] = FeatureImportance{Name: name, Value: v, Index: j}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Value > out[b].Value })
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// TopIndices returns the column indices of the n most important features.
func TopIndices(values mat.Matrix, n int) []int {
	ranked := Rank(values, nil, n)
	idx := make([]int, len(ranked))
	for k, f := range ranked {
		idx[k] = f.Index
	}
	return idx
}

// PositiveRatio is the share of rows whose attribution for column j is > 0.
func PositiveRatio(values mat.Matrix, j int) float64 {
	r, _ := values.Dims()
	if r == 0 {
		return 0
	}
	pos := 0
	for i := 0; i < r; i++ {
		if values.At(i, j) > 0 {
			pos++
		}
	}
	return float64(pos) / float64(r)
}

type Direction string

const (
	Increases Direction = "increases"
	Decreases Direction = "decreases"
	Mixed     Direction = "mixed"
)

// DirectionOf classifies a feature by how often it pushes predictions up.
func DirectionOf(positiveRatio float64) Direction {
	switch {
	case positiveRatio > 0.75:
		return Increases
	case positiveRatio < 0.25:
		return Decreases
	default:
		return Mixed
	}
}
