package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/savant-model-analyzer/server/internal/agent/model"
	logx "github.com/savant-model-analyzer/server/pkg/logger"
)

type ChatModelConfig struct {
	APIKey          string
	BaseURL         string
	RespConfig      *model.ResponseModelConfig
	NarrativeConfig *model.NarrativeModelConfig
}

// ChatModels holds the tool-calling response model and the narrative writer.
type ChatModels struct {
	Response           einomodel.ToolCallingChatModel
	Narrative          einomodel.BaseChatModel
	ResponseModelName  string
	NarrativeModelName string
}

// NewChatModels creates both Gemini chat models on one client.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	if config.RespConfig == nil || config.NarrativeConfig == nil {
		return nil, fmt.Errorf("chat model configs are nil")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	response, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.RespConfig.Model,
		Temperature: &config.RespConfig.Temperature,
		MaxTokens:   &config.RespConfig.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(1024)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Response model")
		return nil, fmt.Errorf("error creating Response model: %w", err)
	}

	narrative, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.NarrativeConfig.Model,
		Temperature: &config.NarrativeConfig.Temperature,
		MaxTokens:   &config.NarrativeConfig.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Narrative model")
		return nil, fmt.Errorf("error creating Narrative model: %w", err)
	}

	return &ChatModels{
		Response:           response,
		Narrative:          narrative,
		ResponseModelName:  config.RespConfig.Model,
		NarrativeModelName: config.NarrativeConfig.Model,
	}, nil
}

// BindToolsToResponseModel swaps the response model for one bound to tools.
func (cm *ChatModels) BindToolsToResponseModel(ctx context.Context, tools []*schema.ToolInfo) error {
	bound, err := cm.Response.WithTools(tools)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools")
		return fmt.Errorf("failed to bind tools: %w", err)
	}
	cm.Response = bound

	logx.Debug().Int("tools", len(tools)).Msg("Successfully bound tools to response model")
	return nil
}
