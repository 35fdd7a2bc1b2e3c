package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/savant-model-analyzer/server/internal/agent/model"
)

//go:embed template/response_prompt.txt
var coreSystemPrompt string

// RenderResponseSystem renders the analyst persona prompt and triggers prompt callbacks.
func RenderResponseSystem(ctx context.Context, config model.ResponsePromptConfig, sessionID string) (string, error) {
	lang := strings.ToLower(strings.TrimSpace(config.Language))
	if lang == "" {
		lang = "en"
	}

	// Render via Eino prompt component (Go template) to both format and emit callbacks
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(coreSystemPrompt),
	)
	vars := map[string]any{
		"Role":           config.Role,
		"Background":     config.Background,
		"Goal":           config.Goal,
		"Language":       lang,
		"SessionID":      sessionID,
		"CreateTool":     model.ToolCreateSession,
		"ImportanceTool": model.ToolSHAPFeatureImportance,
		"SummaryTool":    model.ToolSHAPSummaryPlot,
		"NarrativeTool":  model.ToolSHAPInsightNarrative,
		"F1Tool":         model.ToolF1Score,
		"ConfusionTool":  model.ToolConfusionMatrixPlot,
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("response prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("response prompt render: empty result")
	}
	return msgs[0].Content, nil
}
