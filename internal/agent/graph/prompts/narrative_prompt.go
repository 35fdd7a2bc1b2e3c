package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/narrative_prompt.txt
var narrativePrompt string

// FeatureLine is one ranked feature fed to the narrative prompt.
type FeatureLine struct {
	Name       string
	Importance float64
	Trend      string
}

// RenderNarrative builds the user message asking for a SHAP insight narrative.
func RenderNarrative(ctx context.Context, features []FeatureLine) ([]*schema.Message, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("narrative prompt render: no features")
	}

	lines := make([]string, len(features))
	for i, f := range features {
		lines[i] = fmt.Sprintf("- **%s**: importance = %.3f, trend = %s", f.Name, f.Importance, f.Trend)
	}

	tpl := prompt.FromMessages(schema.GoTemplate, schema.UserMessage(narrativePrompt))
	msgs, err := tpl.Format(ctx, map[string]any{"Features": strings.Join(lines, "\n")})
	if err != nil {
		return nil, fmt.Errorf("narrative prompt render: %w", err)
	}
	return msgs, nil
}
