package model

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

type ForestConfig struct {
	NTrees   int
	MaxDepth int
	MinLeaf  int
	// MaxFeatures is the number of candidate features per split; zero means sqrt(n_features).
	MaxFeatures int
	Seed        uint64
}

func DefaultForestConfig() ForestConfig {
	return ForestConfig{NTrees: 100, MaxDepth: 8, MinLeaf: 2, Seed: 42}
}

// FitForest grows a random forest of Gini CART trees on bootstrap samples
// of a binary-labelled frame. Tree i draws from a generator seeded with
// cfg.Seed+i, so the result is reproducible.
func FitForest(ctx context.Context, x Frame, y Labels, cfg ForestConfig) (*Ensemble, error) {
	if err := x.Validate(); err != nil {
		return nil, err
	}
	if len(y) != len(x.Rows) || len(y) == 0 {
		return nil, fmt.Errorf("need one label per row, got %d labels for %d rows", len(y), len(x.Rows))
	}
	for i, v := range y {
		if v != 0 && v != 1 {
			return nil, fmt.Errorf("label %d at row %d is not binary", v, i)
		}
	}
	if cfg.NTrees <= 0 {
		cfg.NTrees = 100
	}
	if cfg.MinLeaf <= 0 {
		cfg.MinLeaf = 1
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 8
	}
	_, nf := x.Shape()
	if cfg.MaxFeatures <= 0 || cfg.MaxFeatures > nf {
		cfg.MaxFeatures = max(1, int(math.Sqrt(float64(nf))))
	}

	trees := make([]Tree, cfg.NTrees)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range trees {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(cfg.Seed, uint64(i)))
			trees[i] = growTree(x, y, cfg, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Ensemble{
		Kind:        KindRandomForest,
		Aggregation: AggregateMean,
		NOutputs:    2,
		Features:    append([]string(nil), x.Columns...),
		BaseScore:   []float64{0, 0},
		Trees:       trees,
	}, nil
}

type treeGrower struct {
	x     Frame
	y     Labels
	cfg   ForestConfig
	rng   *rand.Rand
	nodes []Node
}

func growTree(x Frame, y Labels, cfg ForestConfig, rng *rand.Rand) Tree {
	n := len(x.Rows)
	sample := make([]int, n)
	for i := range sample {
		sample[i] = rng.IntN(n)
	}
	g := &treeGrower{x: x, y: y, cfg: cfg, rng: rng}
	g.grow(sample, 0)
	return Tree{Nodes: g.nodes}
}

func (g *treeGrower) grow(idx []int, depth int) int {
	pos := 0
	for _, i := range idx {
		pos += g.y[i]
	}
	n := len(idx)
	p1 := float64(pos) / float64(n)

	self := len(g.nodes)
	g.nodes = append(g.nodes, Node{
		Feature: -1,
		Left:    -1,
		Right:   -1,
		Cover:   float64(n),
		Value:   []float64{1 - p1, p1},
	})

	if depth >= g.cfg.MaxDepth || n < 2*g.cfg.MinLeaf || pos == 0 || pos == n {
		return self
	}

	feature, threshold, ok := g.bestSplit(idx, pos)
	if !ok {
		return self
	}

	var left, right []int
	for _, i := range idx {
		if g.x.Rows[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)
	g.nodes[self].Feature = feature
	g.nodes[self].Threshold = threshold
	g.nodes[self].Left = l
	g.nodes[self].Right = r
	g.nodes[self].DefaultLeft = len(left) >= len(right)
	return self
}

func (g *treeGrower) bestSplit(idx []int, pos int) (feature int, threshold float64, ok bool) {
	n := len(idx)
	_, nf := g.x.Shape()
	candidates := g.rng.Perm(nf)[:g.cfg.MaxFeatures]

	best := gini(pos, n)
	sorted := make([]int, n)
	for _, f := range candidates {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool {
			return g.x.Rows[sorted[a]][f] < g.x.Rows[sorted[b]][f]
		})

		leftPos := 0
		for k := 0; k < n-1; k++ {
			leftPos += g.y[sorted[k]]
			lo, hi := g.x.Rows[sorted[k]][f], g.x.Rows[sorted[k+1]][f]
			if lo == hi {
				continue
			}
			nl := k + 1
			nr := n - nl
			if nl < g.cfg.MinLeaf || nr < g.cfg.MinLeaf {
				continue
			}
			impurity := (float64(nl)*gini(leftPos, nl) + float64(nr)*gini(pos-leftPos, nr)) / float64(n)
			if impurity < best-1e-12 {
				best = impurity
				feature, threshold, ok = f, lo+(hi-lo)/2, true
			}
		}
	}
	return feature, threshold, ok
}

func gini(pos, n int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(pos) / float64(n)
	return 1 - p*p - (1-p)*(1-p)
}
