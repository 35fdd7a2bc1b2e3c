package builder

import (
	"bytes"
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savant-model-analyzer/server/internal/analyzer/model"
)

func TestEncodeDropsFirstCategory(t *testing.T) {
	d := &Dataset{
		Columns: []Column{
			{Name: "age", Numeric: []float64{30, 40, 50}},
			{Name: "gender", Categorical: []string{"Male", "Female", "Male"}},
			{Name: "plan", Categorical: []string{"BCBS", "Medicare", "Medicaid"}},
		},
		Target: model.Labels{0, 1, 0},
	}

	f := Encode(d)
	assert.Equal(t, []string{"age", "gender_Male", "plan_Medicaid", "plan_Medicare"}, f.Columns)
	assert.Equal(t, [][]float64{
		{30, 1, 0, 0},
		{40, 0, 0, 1},
		{50, 1, 1, 0},
	}, f.Rows)
}

func TestGenerateColumns(t *testing.T) {
	d := Generate(500, rand.New(rand.NewPCG(1, 0)))
	require.Equal(t, 500, d.Len())
	assert.Len(t, d.Columns, 16)

	f := Encode(d)
	require.NoError(t, f.Validate())
	// 11 numeric + 7 sp_name + 4 payer_plan + 1 + 1 + 1
	assert.Len(t, f.Columns, 25)
	assert.Contains(t, f.Columns, "enrolled_through_hub")
	assert.NotContains(t, f.Columns, "sp_name_Accredo")

	positives := 0
	for _, y := range d.Target {
		positives += y
	}
	assert.Greater(t, positives, 250)
	assert.Less(t, positives, 500)
}

func TestSplit(t *testing.T) {
	x := model.Frame{Columns: []string{"a"}}
	var y model.Labels
	for i := 0; i < 10; i++ {
		x.Rows = append(x.Rows, []float64{float64(i)})
		y = append(y, i%2)
	}
	xTrain, xTest, yTrain, yTest := Split(x, y, 0.2, rand.New(rand.NewPCG(3, 0)))
	assert.Len(t, xTest.Rows, 2)
	assert.Len(t, xTrain.Rows, 8)
	assert.Len(t, yTest, 2)
	assert.Len(t, yTrain, 8)
	for i, row := range xTest.Rows {
		assert.Equal(t, int(row[0])%2, yTest[i])
	}
}

func TestWriteProducesDecodableBundle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Samples = 120
	cfg.Forest.NTrees = 4

	var buf bytes.Buffer
	built, err := Write(context.Background(), &buf, cfg, true)
	require.NoError(t, err)

	b, err := model.DecodeBundle(&buf)
	require.NoError(t, err)
	assert.Len(t, b.YTest, 24)
	assert.Equal(t, built.XTest.Columns, b.Model.Features)
	assert.Len(t, b.Model.Trees, 4)
}

func TestBuildRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TestSize = 1
	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Samples = 1
	_, err = Build(context.Background(), cfg)
	assert.Error(t, err)
}
