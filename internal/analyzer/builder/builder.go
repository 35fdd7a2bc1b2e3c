package builder

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/savant-model-analyzer/server/internal/analyzer/evaluation"
	"github.com/savant-model-analyzer/server/internal/analyzer/model"
	logx "github.com/savant-model-analyzer/server/pkg/logger"
)

type Config struct {
	Samples  int
	Seed     uint64
	TestSize float64
	Forest   model.ForestConfig
}

func DefaultConfig() Config {
	return Config{
		Samples:  1000,
		Seed:     42,
		TestSize: 0.2,
		Forest:   model.DefaultForestConfig(),
	}
}

// Build generates the synthetic dataset, fits a forest on the training
// split and returns the bundle with the held-out split.
func Build(ctx context.Context, cfg Config) (*model.Bundle, error) {
	if cfg.Samples < 2 {
		return nil, fmt.Errorf("need at least 2 samples, got %d", cfg.Samples)
	}
	if cfg.TestSize <= 0 || cfg.TestSize >= 1 {
		return nil, fmt.Errorf("test size must be in (0, 1), got %v", cfg.TestSize)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, 0))
	data := Generate(cfg.Samples, rng)
	x := Encode(data)
	xTrain, xTest, yTrain, yTest := Split(x, data.Target, cfg.TestSize, rng)
	logx.Info().Str("data", data.String()).Int("train", len(yTrain)).Int("test", len(yTest)).Msg("synthetic data generated")

	forest := cfg.Forest
	forest.Seed = cfg.Seed
	e, err := model.FitForest(ctx, xTrain, yTrain, forest)
	if err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}

	if f1, err := evaluation.F1(yTest, e.PredictFrame(xTest), 1); err == nil {
		logx.Info().Int("trees", len(e.Trees)).Float64("f1", evaluation.Round(f1, 4)).Msg("model trained")
	}

	return &model.Bundle{
		Model:            e,
		XTest:            xTest,
		YTest:            yTest,
		XTestTransformed: xTest,
	}, nil
}

// Write builds a bundle and encodes it to w.
func Write(ctx context.Context, w io.Writer, cfg Config, compress bool) (*model.Bundle, error) {
	b, err := Build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := model.EncodeBundle(w, b, compress); err != nil {
		return nil, err
	}
	return b, nil
}
