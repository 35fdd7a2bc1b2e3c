package main

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/savant-model-analyzer/server/internal/analyzer/model"
	"github.com/savant-model-analyzer/server/internal/analyzer/plots"
	"github.com/savant-model-analyzer/server/internal/storage"
	logx "github.com/savant-model-analyzer/server/pkg/logger"
)

type plotsEnv struct {
	OutputDir string `envconfig:"SHAP_OUTPUT_DIR" default:"shap_outputs"`
}

var (
	plotsInput string
	plotsDir   string
	plotsTopN  int
	plotsSeed  uint64

	plotsCmd = &cobra.Command{
		Use:   "plots",
		Short: "Render SHAP plots for a bundle to disk",
		Example: `  modelbuilder plots -i patient_fulfillment_model.json.gz
  modelbuilder plots -i model.json --output-dir /tmp/shap --top 3`,
		Args: cobra.NoArgs,
		RunE: runPlots,
	}
)

func init() {
	flags := plotsCmd.Flags()
	flags.StringVarP(&plotsInput, "input", "i", "patient_fulfillment_model.json.gz", "local bundle path")
	flags.StringVar(&plotsDir, "output-dir", "", "plot directory (defaults to SHAP_OUTPUT_DIR)")
	flags.IntVar(&plotsTopN, "top", 5, "number of dependence plots")
	flags.Uint64Var(&plotsSeed, "seed", 42, "jitter seed for summary plots")

	rootCmd.AddCommand(plotsCmd)
}

func runPlots(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	dir := plotsDir
	if dir == "" {
		var env plotsEnv
		if err := envconfig.Process("", &env); err != nil {
			return fmt.Errorf("plots config: %w", err)
		}
		dir = env.OutputDir
	}

	rc, err := storage.NewFileReader(plotsInput).Read(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()

	bundle, err := model.DecodeBundle(rc)
	if err != nil {
		return err
	}

	gen := plots.NewGenerator(bundle.Model, bundle.XTestTransformed,
		plots.WithOutputDir(dir),
		plots.WithSeed(plotsSeed),
	)
	if err := gen.GenerateAll(ctx, plotsTopN); err != nil {
		return err
	}
	logx.Info().Str("input", plotsInput).Str("dir", dir).Msg("plots written")
	return nil
}
