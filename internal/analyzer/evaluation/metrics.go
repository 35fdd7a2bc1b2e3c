package evaluation

import (
	"fmt"
	"math"
	"sort"

	"github.com/savant-model-analyzer/server/internal/analyzer/model"
)

// F1 is the harmonic mean of precision and recall for the positive label.
// It is 0 when there are no true positives.
func F1(yTrue, yPred model.Labels, positive int) (float64, error) {
	if len(yTrue) != len(yPred) {
		return 0, fmt.Errorf("got %d predictions for %d labels", len(yPred), len(yTrue))
	}
	var tp, fp, fn int
	for i := range yTrue {
		switch {
		case yPred[i] == positive && yTrue[i] == positive:
			tp++
		case yPred[i] == positive:
			fp++
		case yTrue[i] == positive:
			fn++
		}
	}
	if tp == 0 {
		return 0, nil
	}
	return 2 * float64(tp) / float64(2*tp+fp+fn), nil
}

// Confusion holds counts indexed [true][predicted] over the sorted label set.
type Confusion struct {
	Labels []int   `json:"labels"`
	Counts [][]int `json:"counts"`
}

func ConfusionMatrix(yTrue, yPred model.Labels) (Confusion, error) {
	if len(yTrue) != len(yPred) {
		return Confusion{}, fmt.Errorf("got %d predictions for %d labels", len(yPred), len(yTrue))
	}
	seen := map[int]struct{}{}
	for i := range yTrue {
		seen[yTrue[i]] = struct{}{}
		seen[yPred[i]] = struct{}{}
	}
	labels := make([]int, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Ints(labels)

	pos := make(map[int]int, len(labels))
	for i, l := range labels {
		pos[l] = i
	}
	counts := make([][]int, len(labels))
	for i := range counts {
		counts[i] = make([]int, len(labels))
	}
	for i := range yTrue {
		counts[pos[yTrue[i]]][pos[yPred[i]]]++
	}
	return Confusion{Labels: labels, Counts: counts}, nil
}

// Round rounds half away from zero to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
