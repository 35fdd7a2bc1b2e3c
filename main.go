package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/savant-model-analyzer/server/internal/agent/graph"
	"github.com/savant-model-analyzer/server/internal/agent/graph/tools"
	"github.com/savant-model-analyzer/server/internal/agent/model"
	"github.com/savant-model-analyzer/server/internal/agent/repo"
	"github.com/savant-model-analyzer/server/internal/analyzer/session"
	"github.com/savant-model-analyzer/server/internal/api"
	"github.com/savant-model-analyzer/server/internal/cache"
	"github.com/savant-model-analyzer/server/internal/core"
	"github.com/savant-model-analyzer/server/internal/storage"
	"github.com/savant-model-analyzer/server/pkg/gcs"
	logx "github.com/savant-model-analyzer/server/pkg/logger"
	pkgredis "github.com/savant-model-analyzer/server/pkg/redis"
)

// AppConfig defines all configurable parameters of the server,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// HTTP
	Addr     string        `envconfig:"HTTP_ADDR" default:":8080"`
	APIKey   string        `envconfig:"AI_AGENT_API_KEY"`
	ClaimTTL time.Duration `envconfig:"SESSION_CLAIM_TTL" default:"10m"`

	// Local bundle paths from requests must resolve under this directory
	BundleRoot string `envconfig:"BUNDLE_ROOT" default:"."`

	// Infrastructure
	Cache cache.Config
	Redis pkgredis.Config
	GCS   gcs.Config

	// LLM provider
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL      string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Response     model.ResponseModelConfig
	Narrative    model.NarrativeModelConfig
	Prompt       model.ResponsePromptConfig
	Conversation model.ConversationConfig
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		logx.Warn().Err(err).Msg("could not load .env file")
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(err).Msg("failed to process environment config")
	}
	env := core.ParseEnvironment(cfg.Environment)
	logx.Init(logx.LoggerOpts{Environment: env, Level: cfg.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cfg.Redis.New(ctx)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise Redis client")
	}
	defer rdb.Close()

	manager, err := cache.Shared(ctx, cfg.Cache, cache.WithRedisClient(rdb))
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise session cache")
	}
	sessions, err := session.Init(manager, session.WithClaimTTL(cfg.ClaimTTL))
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise analyzer session")
	}

	resolverOpts := []storage.ResolverOption{storage.WithLocalRoot(cfg.BundleRoot)}
	if gcsClient, err := cfg.GCS.New(ctx); err != nil {
		logx.Warn().Err(err).Msg("GCS unavailable, bucket references are disabled")
	} else {
		defer gcsClient.Close()
		resolverOpts = append(resolverOpts, storage.WithFetcher("gs", storage.NewGCSFetcher(gcsClient)))
	}
	resolver := storage.NewResolver(resolverOpts...)

	ttl, err := time.ParseDuration(cfg.Conversation.TTL)
	if err != nil {
		logx.Fatal().Err(err).Str("ttl", cfg.Conversation.TTL).Msg("invalid CONVERSATION_TTL")
	}

	runner, err := graph.BuildResponseGraph(ctx, graph.Config{
		APIKey:           cfg.GeminiAPIKey,
		BaseURL:          cfg.BaseURL,
		ResponseModel:    cfg.Response,
		NarrativeModel:   cfg.Narrative,
		ResponsePrompt:   cfg.Prompt,
		Conversation:     cfg.Conversation,
		ConversationRepo: repo.NewRedisConversationRepository(rdb, ttl),
		Tools:            tools.Deps{Sessions: sessions, Resolver: resolver},
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build graph")
	}

	router := api.NewRouter(api.Config{APIKey: cfg.APIKey, Environment: env}, api.NewHandler(sessions, resolver, runner))
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logx.Info().Str("addr", cfg.Addr).Str("environment", env.String()).Msg("model analyzer listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logx.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logx.Error().Err(err).Msg("graceful shutdown failed")
	}
}
