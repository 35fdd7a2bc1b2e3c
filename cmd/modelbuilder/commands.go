package main

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/savant-model-analyzer/server/internal/analyzer/builder"
	"github.com/savant-model-analyzer/server/pkg/gcs"
	logx "github.com/savant-model-analyzer/server/pkg/logger"
)

var (
	samples    int
	seed       uint64
	testSize   float64
	nTrees     int
	maxDepth   int
	minLeaf    int
	outputFile string
	compress   bool
	uploadTo   string

	rootCmd = &cobra.Command{
		Use:   "modelbuilder",
		Short: "Builds synthetic patient fulfilment model bundles",
		Long: `Generates a synthetic patient fulfilment dataset, trains a random forest
on it and writes the model together with its held-out test split as a bundle
that the analyzer can open as a session.`,
		SilenceUsage: true,
	}

	buildCmd = &cobra.Command{
		Use:   "build",
		Short: "Train a model and write the bundle",
		Example: `  modelbuilder build
  modelbuilder build --samples 5000 --trees 200 -o model.json.gz
  modelbuilder build --upload gs://models/patient_fulfillment_model.json.gz`,
		Args: cobra.NoArgs,
		RunE: runBuild,
	}
)

func init() {
	defaults := builder.DefaultConfig()

	flags := buildCmd.Flags()
	flags.IntVar(&samples, "samples", defaults.Samples, "number of synthetic patients")
	flags.Uint64Var(&seed, "seed", defaults.Seed, "random seed for data, split and forest")
	flags.Float64Var(&testSize, "test-size", defaults.TestSize, "held-out fraction")
	flags.IntVar(&nTrees, "trees", defaults.Forest.NTrees, "number of trees")
	flags.IntVar(&maxDepth, "max-depth", defaults.Forest.MaxDepth, "maximum tree depth")
	flags.IntVar(&minLeaf, "min-leaf", defaults.Forest.MinLeaf, "minimum samples per leaf")
	flags.StringVarP(&outputFile, "output", "o", "patient_fulfillment_model.json.gz", "local bundle path")
	flags.BoolVar(&compress, "gzip", true, "gzip the bundle")
	flags.StringVar(&uploadTo, "upload", "", "also upload the bundle to gs://bucket/key")

	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg := builder.DefaultConfig()
	cfg.Samples = samples
	cfg.Seed = seed
	cfg.TestSize = testSize
	cfg.Forest.NTrees = nTrees
	cfg.Forest.MaxDepth = maxDepth
	cfg.Forest.MinLeaf = minLeaf

	var buf bytes.Buffer
	if _, err := builder.Write(ctx, &buf, cfg, compress); err != nil {
		return err
	}
	if err := os.WriteFile(outputFile, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}
	logx.Info().Str("path", outputFile).Int("bytes", buf.Len()).Msg("bundle written")

	if uploadTo == "" {
		return nil
	}
	bucket, key, err := parseGSURI(uploadTo)
	if err != nil {
		return err
	}

	var gcsCfg gcs.Config
	if err := envconfig.Process("", &gcsCfg); err != nil {
		return fmt.Errorf("gcs config: %w", err)
	}
	client, err := gcsCfg.New(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := gcs.Upload(ctx, client, bucket, key, bytes.NewReader(buf.Bytes())); err != nil {
		return err
	}
	logx.Info().Str("uri", uploadTo).Msg("bundle uploaded")
	return nil
}

func parseGSURI(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "gs" || u.Host == "" || strings.Trim(u.Path, "/") == "" {
		return "", "", fmt.Errorf("upload target must look like gs://bucket/key, got %q", raw)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}
