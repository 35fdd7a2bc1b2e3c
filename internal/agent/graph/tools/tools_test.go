package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savant-model-analyzer/server/internal/agent/model"
	"github.com/savant-model-analyzer/server/internal/analyzer/builder"
	"github.com/savant-model-analyzer/server/internal/analyzer/session"
	"github.com/savant-model-analyzer/server/internal/cache"
	"github.com/savant-model-analyzer/server/internal/storage"
)

type fakeNarrator struct {
	prompt []*schema.Message
}

func (f *fakeNarrator) Generate(_ context.Context, in []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	f.prompt = in
	msg := schema.AssistantMessage("### Insights Summary on Patient Fulfillment Prediction", nil)
	msg.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 0}}
	return msg, nil
}

func (f *fakeNarrator) Stream(context.Context, []*schema.Message, ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

func setup(t *testing.T) (Deps, string, *fakeNarrator) {
	t.Helper()

	cfg := builder.DefaultConfig()
	cfg.Samples = 150
	cfg.Forest.NTrees = 4
	cfg.Forest.MaxDepth = 4

	path := filepath.Join(t.TempDir(), "bundle.json.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	_, err = builder.Write(context.Background(), f, cfg, true)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	fc, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)

	narrator := &fakeNarrator{}
	return Deps{
		Sessions:      session.New(fc),
		Resolver:      storage.NewResolver(),
		Narrator:      narrator,
		NarratorModel: "gemini-2.5-flash-lite",
	}, path, narrator
}

func byName(t *testing.T, ts []tool.BaseTool, name string) tool.InvokableTool {
	t.Helper()
	for _, tl := range ts {
		info, err := tl.Info(context.Background())
		require.NoError(t, err)
		if info.Name == name {
			return tl.(tool.InvokableTool)
		}
	}
	t.Fatalf("tool %s not registered", name)
	return nil
}

func ack(t *testing.T, raw string) string {
	t.Helper()
	var a Ack
	require.NoError(t, json.Unmarshal([]byte(raw), &a))
	return a.Message
}

func TestToolRegistry(t *testing.T) {
	d, _, _ := setup(t)
	ts := GetQueryTools(d)
	infos, err := GetToolInfos(context.Background(), ts)
	require.NoError(t, err)
	assert.Len(t, infos, 6)

	d.Narrator = nil
	assert.Len(t, GetQueryTools(d), 5)
}

func TestToolsAgainstSession(t *testing.T) {
	d, path, narrator := setup(t)
	ts := GetQueryTools(d)
	scope := NewScope("conv-1", "", path)
	ctx := WithScope(context.Background(), scope)

	out, err := byName(t, ts, model.ToolCreateSession).InvokableRun(ctx, `{"session_id":"tool-session"}`)
	require.NoError(t, err)
	assert.Contains(t, ack(t, out), "tool-session")
	assert.Equal(t, "tool-session", scope.SessionID())

	out, err = byName(t, ts, model.ToolSHAPFeatureImportance).InvokableRun(ctx, `{"feature_num":3}`)
	require.NoError(t, err)
	assert.Equal(t, "Shap Feature data created for session_id tool-session", ack(t, out))

	_, err = byName(t, ts, model.ToolSHAPSummaryPlot).InvokableRun(ctx, `{"feature_num":5}`)
	require.NoError(t, err)
	_, err = byName(t, ts, model.ToolF1Score).InvokableRun(ctx, `{}`)
	require.NoError(t, err)
	_, err = byName(t, ts, model.ToolConfusionMatrixPlot).InvokableRun(ctx, `{}`)
	require.NoError(t, err)
	out, err = byName(t, ts, model.ToolSHAPInsightNarrative).InvokableRun(ctx, `{"feature_num":4}`)
	require.NoError(t, err)
	assert.Contains(t, ack(t, out), "Insights Summary")

	require.Len(t, narrator.prompt, 1)
	assert.Contains(t, narrator.prompt[0].Content, "importance = ")
	assert.InDelta(t, 0.10, scope.CostUSD(), 1e-9)

	results := scope.Results()
	require.Len(t, results, 6)
	assert.Equal(t, model.ToolSHAPInsightNarrative, results[0].ToolName)
	assert.Equal(t, model.ToolCreateSession, results[5].ToolName)

	byTool := map[string]*model.ToolResult{}
	for _, r := range results {
		assert.Equal(t, "conv-1", r.ToolOutput.ConversationID)
		assert.Equal(t, "tool-session", r.ToolOutput.SessionID)
		byTool[r.ToolName] = r.ToolOutput
	}

	importance := byTool[model.ToolSHAPFeatureImportance]
	assert.Equal(t, model.ContentJSON, importance.ContentType)
	raw, err := json.Marshal(importance.Content)
	require.NoError(t, err)
	var ranked []struct {
		Name  string  `json:"name"`
		Value float64 `json:"value"`
	}
	require.NoError(t, json.Unmarshal(raw, &ranked))
	require.Len(t, ranked, 3)
	assert.GreaterOrEqual(t, ranked[0].Value, ranked[1].Value)
	assert.GreaterOrEqual(t, ranked[1].Value, ranked[2].Value)

	assert.Equal(t, model.ContentBase64Image, byTool[model.ToolSHAPSummaryPlot].ContentType)
	assert.NotEmpty(t, byTool[model.ToolSHAPSummaryPlot].Content)
	assert.Equal(t, model.ContentBase64Image, byTool[model.ToolConfusionMatrixPlot].ContentType)

	f1 := byTool[model.ToolF1Score].Content.(float64)
	assert.GreaterOrEqual(t, f1, 0.0)
	assert.LessOrEqual(t, f1, 1.0)
}

func TestToolsWithoutSession(t *testing.T) {
	d, _, _ := setup(t)
	scope := NewScope("conv-2", "", "")
	ctx := WithScope(context.Background(), scope)

	out, err := byName(t, GetQueryTools(d), model.ToolF1Score).InvokableRun(ctx, `{}`)
	require.NoError(t, err)
	assert.Contains(t, ack(t, out), model.ToolCreateSession)

	out, err = byName(t, GetQueryTools(d), model.ToolSHAPSummaryPlot).InvokableRun(ctx, `{"session_id":"missing"}`)
	require.NoError(t, err)
	assert.Contains(t, ack(t, out), "failed")

	out, err = byName(t, GetQueryTools(d), model.ToolCreateSession).InvokableRun(ctx, `{}`)
	require.NoError(t, err)
	assert.Contains(t, ack(t, out), "invalid object reference")

	assert.Empty(t, scope.Results())
}

func TestScopeFromEmptyContext(t *testing.T) {
	s := ScopeFrom(context.Background())
	require.NotNil(t, s)
	assert.Empty(t, s.SessionID())
	s.Bind("x")
	assert.Equal(t, "x", s.SessionID())
}
