package nodes

import (
	"github.com/cloudwego/eino/schema"

	"github.com/savant-model-analyzer/server/internal/agent/model"
)

// Graph node keys.
const (
	NodeInputConverter    = "InputConverter"
	NodeResponseChatModel = "ResponseChatModel"
	NodeToolExecutor      = "ToolExecutor"
)

const DefaultMaxToolCalls = 10

// normalizeMaxToolCalls returns a sane default when the provided value is invalid.
func normalizeMaxToolCalls(n int) int {
	if n <= 0 {
		return DefaultMaxToolCalls
	}
	return n
}

// checkAndMarkToolLimit marks the state when another tool call would
// exceed the limit. Returns true when marked now.
func checkAndMarkToolLimit(state *model.AppState, max int) bool {
	max = normalizeMaxToolCalls(max)
	if !state.ToolCallLimitReached && state.ToolCallCount >= max {
		state.ToolCallLimitReached = true
		return true
	}
	return false
}

// incrementToolCallAndCheck counts one tool round and reports whether the
// limit is now exceeded.
func incrementToolCallAndCheck(state *model.AppState, max int) bool {
	max = normalizeMaxToolCalls(max)
	state.ToolCallCount++
	if state.ToolCallCount > max {
		state.ToolCallLimitReached = true
		return true
	}
	return false
}

// attachUsageCost records the cost of out in its Extra and in the running
// total. It is a no-op when the provider reported no usage.
func attachUsageCost(out *schema.Message, modelName string, state *model.AppState) *model.UsageCost {
	if out == nil || out.ResponseMeta == nil {
		return nil
	}
	c := model.ComputeCost(modelName, out.ResponseMeta.Usage)
	if c == nil {
		return nil
	}
	state.TotalCostUSD += c.TotalCost
	if out.Extra == nil {
		out.Extra = map[string]any{}
	}
	out.Extra["usage_cost"] = c
	out.Extra["usage_cost_total_usd"] = state.TotalCostUSD
	return c
}
