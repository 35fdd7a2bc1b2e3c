package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/savant-model-analyzer/server/internal/agent/model"
	errx "github.com/savant-model-analyzer/server/internal/core/error"
)

type CreateSessionInput struct {
	FilePath  string `json:"file_path,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

func createSessionTool(d Deps) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: model.ToolCreateSession,
			Desc: "Create a model analysis session from a model bundle stored locally or in a bucket (gs://bucket/key). Loads the model and test data and computes SHAP values once. Returns the session id.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"file_path": {
					Type: "string",
					Desc: "Local path or gs://bucket/key of the bundle. Optional when the request already names a bundle.",
				},
				"session_id": {
					Type: "string",
					Desc: "Optional id for the new session.",
				},
			}),
		},
		func(ctx context.Context, in *CreateSessionInput) (*Ack, error) {
			scope := ScopeFrom(ctx)
			ref := strings.TrimSpace(in.FilePath)
			if ref == "" {
				ref = scope.Source()
			}
			if ref == "" {
				return failed(model.ToolCreateSession, in.SessionID, errx.InvalidReference("no bundle path given"))
			}

			reader, err := d.Resolver.Resolve(ref)
			if err != nil {
				return failed(model.ToolCreateSession, in.SessionID, err)
			}
			id, err := d.Sessions.Create(ctx, reader, in.SessionID)
			if err != nil {
				return failed(model.ToolCreateSession, in.SessionID, err)
			}
			scope.Bind(id)

			return finish(ctx, model.ToolCreateSession, in, &model.ToolResult{
				SessionID:   id,
				OutputRef:   reader.String(),
				ContentType: model.ContentString,
				Content:     id,
			}, fmt.Sprintf("Model analyzer session %s is ready", id))
		},
	)
}
