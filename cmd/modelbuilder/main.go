package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/savant-model-analyzer/server/internal/core"
	logx "github.com/savant-model-analyzer/server/pkg/logger"
)

type envConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`
}

func main() {
	_ = godotenv.Load()

	var cfg envConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(err).Msg("failed to process env vars")
	}
	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment), Level: cfg.LogLevel})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
