package prompts

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savant-model-analyzer/server/internal/agent/model"
)

func promptConfig() model.ResponsePromptConfig {
	return model.ResponsePromptConfig{
		Role:       "AI Model Insights Assistant",
		Background: "You support pharma commercial teams.",
		Goal:       "to explain fulfilment models.",
	}
}

func TestRenderResponseSystemWithSession(t *testing.T) {
	out, err := RenderResponseSystem(context.Background(), promptConfig(), "s-42")
	require.NoError(t, err)
	assert.Contains(t, out, "You are AI Model Insights Assistant.")
	assert.Contains(t, out, `"s-42"`)
	assert.Contains(t, out, model.ToolConfusionMatrixPlot)
	assert.Contains(t, out, `language "en"`)
}

func TestRenderResponseSystemWithoutSession(t *testing.T) {
	out, err := RenderResponseSystem(context.Background(), promptConfig(), "")
	require.NoError(t, err)
	assert.Contains(t, out, "No analysis session is open yet")
	assert.Contains(t, out, "call "+model.ToolCreateSession+" first")
}

func TestRenderNarrative(t *testing.T) {
	msgs, err := RenderNarrative(context.Background(), []FeatureLine{
		{Name: "enrolled_through_hub", Importance: 0.07321, Trend: "↑ mostly increases fulfillment"},
		{Name: "out_of_pocket_cost", Importance: 0.0456, Trend: "↔ mixed or neutral impact"},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, schema.User, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "- **enrolled_through_hub**: importance = 0.073, trend = ↑ mostly increases fulfillment")
	assert.Contains(t, msgs[0].Content, "#### 4. Actionable Recommendations")

	_, err = RenderNarrative(context.Background(), nil)
	assert.Error(t, err)
}
