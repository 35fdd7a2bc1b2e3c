package graph

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savant-model-analyzer/server/internal/agent/graph/conversations"
	"github.com/savant-model-analyzer/server/internal/agent/graph/nodes"
	"github.com/savant-model-analyzer/server/internal/agent/graph/tools"
	"github.com/savant-model-analyzer/server/internal/agent/model"
	"github.com/savant-model-analyzer/server/internal/agent/repo"
	"github.com/savant-model-analyzer/server/internal/analyzer/builder"
	"github.com/savant-model-analyzer/server/internal/analyzer/session"
	"github.com/savant-model-analyzer/server/internal/cache"
	"github.com/savant-model-analyzer/server/internal/storage"
)

// scriptedModel replays one reply per Generate call and repeats the last.
type scriptedModel struct {
	mu      sync.Mutex
	replies []func() *schema.Message
	inputs  [][]*schema.Message
}

func (m *scriptedModel) Generate(_ context.Context, in []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, in)
	i := min(len(m.inputs)-1, len(m.replies)-1)
	return m.replies[i](), nil
}

func (m *scriptedModel) Stream(context.Context, []*schema.Message, ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

func (m *scriptedModel) WithTools([]*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return m, nil
}

func toolCall(name, args string) func() *schema.Message {
	return func() *schema.Message {
		return schema.AssistantMessage("", []schema.ToolCall{{
			Type:     "function",
			Function: schema.FunctionCall{Name: name, Arguments: args},
		}})
	}
}

func answer(text string) func() *schema.Message {
	return func() *schema.Message { return schema.AssistantMessage(text, nil) }
}

func bundlePath(t *testing.T) string {
	t.Helper()
	cfg := builder.DefaultConfig()
	cfg.Samples = 120
	cfg.Forest.NTrees = 3
	cfg.Forest.MaxDepth = 3

	path := filepath.Join(t.TempDir(), "bundle.json")
	f, err := os.Create(path)
	require.NoError(t, err)
	_, err = builder.Write(context.Background(), f, cfg, false)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return path
}

func newRunner(t *testing.T, m *scriptedModel, maxCalls int) (Runner, model.ConversationRepository) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	convRepo := repo.NewRedisConversationRepository(rdb, time.Minute)

	fc, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)

	deps := tools.Deps{Sessions: session.New(fc), Resolver: storage.NewResolver()}
	promptCfg := model.ResponsePromptConfig{Role: "analyst", Background: "pharma", Goal: "explain", Language: "English"}

	runnable, err := BuildGraph(context.Background(), &GraphConfig{
		ChatModels:           &nodes.ChatModels{Response: m, ResponseModelName: "gemini-2.5-flash"},
		MessagesManager:      conversations.NewMessagesManager(convRepo, model.ConversationConfig{MaxTurns: 10}),
		ResponsePromptConfig: &promptCfg,
		Tools:                tools.GetQueryTools(deps),
		ToolMaxCalls:         maxCalls,
	})
	require.NoError(t, err)
	return NewRunner(runnable), convRepo
}

func TestInvokeRunsToolsAndAnswers(t *testing.T) {
	m := &scriptedModel{replies: []func() *schema.Message{
		toolCall(model.ToolCreateSession, `{"session_id":"  graph-session  "}`),
		toolCall(model.ToolSHAPFeatureImportance, `{"feature_num":"3"}`),
		answer("Age matters most."),
	}}
	runner, convRepo := newRunner(t, m, 5)

	out, err := runner.Invoke(context.Background(), model.QueryInput{
		Source: bundlePath(t),
		Query:  "Which features drive fulfillment?",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, out.ConversationID)
	assert.Equal(t, "graph-session", out.SessionID)
	assert.Equal(t, schema.Assistant, out.Response.Role)
	assert.Equal(t, "Age matters most.", out.Response.Content)

	require.Len(t, out.ToolsResults, 2)
	assert.Equal(t, model.ToolSHAPFeatureImportance, out.ToolsResults[0].ToolName)
	assert.Equal(t, model.ToolCreateSession, out.ToolsResults[1].ToolName)
	assert.Equal(t, model.ContentJSON, out.ToolsResults[0].ToolOutput.ContentType)

	require.Len(t, m.inputs, 3)
	assert.Equal(t, schema.System, m.inputs[0][0].Role)
	last := m.inputs[2][len(m.inputs[2])-1]
	assert.Equal(t, schema.Tool, last.Role)
	assert.NotEmpty(t, last.ToolCallID)

	history, err := convRepo.LoadHistory(context.Background(), out.ConversationID, 10)
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "Which features drive fulfillment?", history.Messages[0].Content)
	assert.Equal(t, "Age matters most.", history.Messages[1].Content)
}

func TestInvokeStopsAtToolLimit(t *testing.T) {
	m := &scriptedModel{replies: []func() *schema.Message{
		toolCall(model.ToolF1Score, `{}`),
		func() *schema.Message {
			msg := toolCall(model.ToolF1Score, `{}`)()
			msg.Content = "Could not finish every step."
			return msg
		},
	}}
	runner, _ := newRunner(t, m, 1)

	out, err := runner.Invoke(context.Background(), model.QueryInput{
		ConversationID: "conv-limit",
		Query:          "Give me the F1 score",
	})
	require.NoError(t, err)

	assert.Equal(t, "conv-limit", out.ConversationID)
	assert.Equal(t, "Could not finish every step.", out.Response.Content)
	assert.Empty(t, out.ToolsResults)

	require.Len(t, m.inputs, 2)
	notice := m.inputs[1][len(m.inputs[1])-1]
	assert.Equal(t, schema.System, notice.Role)
	assert.Contains(t, notice.Content, "maximum tool call limit (1)")
}

func TestInvokeRejectsEmptyQuery(t *testing.T) {
	runner, _ := newRunner(t, &scriptedModel{replies: []func() *schema.Message{answer("x")}}, 1)
	_, err := runner.Invoke(context.Background(), model.QueryInput{Query: "   "})
	assert.Error(t, err)
}

func TestSanitizeArguments(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trims ids", `{"session_id":" s ","file_path":" /tmp/b.json "}`, `{"file_path":"/tmp/b.json","session_id":"s"}`},
		{"coerces feature_num", `{"feature_num":"7"}`, `{"feature_num":7}`},
		{"clamps feature_num", `{"feature_num":0}`, `{"feature_num":1}`},
		{"drops bad feature_num", `{"feature_num":"many"}`, `{}`},
		{"drops null session", `{"session_id":null}`, `{}`},
		{"not an object", `oops`, `oops`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeArguments(tt.in))
		})
	}
}

func TestBuildGraphValidatesConfig(t *testing.T) {
	_, err := BuildGraph(context.Background(), nil)
	assert.Error(t, err)
	_, err = BuildGraph(context.Background(), &GraphConfig{})
	assert.Error(t, err)
}
