package model

import (
	"github.com/cloudwego/eino/schema"
)

// AppState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex/atomic is required as long as you never touch it outside handlers.
type AppState struct {
	ConversationID       string
	SessionID            string
	History              []*schema.Message // mutated only inside Eino state handlers
	ToolCallCount        int
	ToolCallLimitReached bool
	ToolCallIDSeq        int // local sequence to synthesize tool_call_id when provider omits

	// Accumulated total LLM cost (USD) across model invocations for this query
	TotalCostUSD float64
}

// QueryInput represents one user query against an analysis session.
type QueryInput struct {
	ConversationID string `json:"conversation_id"`
	SessionID      string `json:"session_id"`
	// Source is the bundle reference the session was created from, if any.
	Source string `json:"source,omitempty"`
	Query  string `json:"query"`
	// ChatHistory is caller-held history sent in front of the stored one.
	ChatHistory []*schema.Message `json:"chat_history,omitempty"`
}

type ChatMessage struct {
	Role    schema.RoleType `json:"role"`
	Content string          `json:"content"`
}

// ToolCallResult is one tool execution as reported back to the caller.
type ToolCallResult struct {
	ToolName   string      `json:"tool_name"`
	ToolInput  string      `json:"tool_input"`
	Content    string      `json:"content"`
	ToolOutput *ToolResult `json:"tool_output"`
}

// AgentOutput is the final answer plus every tool result of the query,
// most recent first.
type AgentOutput struct {
	ConversationID string           `json:"conversation_id"`
	SessionID      string           `json:"session_id"`
	Response       ChatMessage      `json:"response"`
	ToolsResults   []ToolCallResult `json:"tools_results"`
	TotalCostUSD   float64          `json:"total_cost_usd"`
}
