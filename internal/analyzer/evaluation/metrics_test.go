package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savant-model-analyzer/server/internal/analyzer/model"
)

func TestF1(t *testing.T) {
	tests := []struct {
		name  string
		truth model.Labels
		pred  model.Labels
		want  float64
	}{
		{"perfect", model.Labels{0, 1, 1, 0}, model.Labels{0, 1, 1, 0}, 1},
		// tp=2 fp=1 fn=1
		{"mixed", model.Labels{1, 1, 1, 0, 0}, model.Labels{1, 1, 0, 1, 0}, 2.0 / 3.0},
		{"no positives predicted", model.Labels{1, 0}, model.Labels{0, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := F1(tt.truth, tt.pred, 1)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}

	_, err := F1(model.Labels{1}, model.Labels{1, 0}, 1)
	assert.Error(t, err)
}

func TestConfusionMatrix(t *testing.T) {
	cm, err := ConfusionMatrix(model.Labels{1, 1, 1, 0, 0}, model.Labels{1, 1, 0, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, cm.Labels)
	assert.Equal(t, [][]int{{1, 1}, {1, 2}}, cm.Counts)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 0.6667, Round(2.0/3.0, 4))
	assert.Equal(t, 0.5, Round(0.49999999, 4))
}
