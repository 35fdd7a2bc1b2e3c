package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/savant-model-analyzer/server/internal/agent/model"
	"github.com/savant-model-analyzer/server/internal/analyzer/session"
	errx "github.com/savant-model-analyzer/server/internal/core/error"
	"github.com/savant-model-analyzer/server/internal/storage"
	logx "github.com/savant-model-analyzer/server/pkg/logger"
)

// Deps are the services the analyzer tools run against.
type Deps struct {
	Sessions *session.Session
	Resolver *storage.Resolver
	// Narrator writes insight narratives; the narrative tool is left out when nil.
	Narrator      einomodel.BaseChatModel
	NarratorModel string
}

// Ack is what the response model sees after a tool ran. The full output
// travels to the caller through the Scope.
type Ack struct {
	Message string `json:"message"`
}

type sessionInput struct {
	SessionID string `json:"session_id,omitempty"`
}

var sessionIDParam = &schema.ParameterInfo{
	Type: "string",
	Desc: "Analysis session id. Optional, defaults to the session of the current conversation.",
}

// GetQueryTools returns the analyzer tools in a stable order.
func GetQueryTools(d Deps) []tool.BaseTool {
	out := []tool.BaseTool{
		createSessionTool(d),
		featureImportanceTool(d),
		summaryPlotTool(d),
		f1ScoreTool(d),
		confusionMatrixTool(d),
	}
	if d.Narrator != nil {
		out = append(out, narrativeTool(d))
	}
	return out
}

func GetToolInfos(ctx context.Context, ts []tool.BaseTool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(ts))
	for _, t := range ts {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// resolveSession picks the explicit id, else the one bound to the query.
func resolveSession(ctx context.Context, explicit string) (string, error) {
	if id := strings.TrimSpace(explicit); id != "" {
		return id, nil
	}
	if id := ScopeFrom(ctx).SessionID(); id != "" {
		return id, nil
	}
	return "", errx.NotFound("no analysis session is open, call %s first", model.ToolCreateSession)
}

// finish records the envelope and returns the acknowledgement.
func finish(ctx context.Context, name string, in any, out *model.ToolResult, ack string) (*Ack, error) {
	scope := ScopeFrom(ctx)
	out.ToolName = name
	out.ConversationID = scope.ConversationID()

	raw, _ := json.Marshal(in)
	scope.record(model.ToolCallResult{
		ToolName:   name,
		ToolInput:  string(raw),
		Content:    ack,
		ToolOutput: out,
	})
	logx.Debug().Str("tool_name", name).Str("session_id", out.SessionID).Str("content_type", string(out.ContentType)).Msg("tool result recorded")
	return &Ack{Message: ack}, nil
}

// failed turns an error into a message the model can relay.
func failed(name, sessionID string, err error) (*Ack, error) {
	logx.Warn().Err(err).Str("tool_name", name).Str("session_id", sessionID).Msg("tool failed")
	return &Ack{Message: fmt.Sprintf("%s failed: %s (%v)", name, errx.Message(err), err)}, nil
}
