package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/savant-model-analyzer/server/internal/agent/graph/prompts"
	"github.com/savant-model-analyzer/server/internal/agent/model"
	"github.com/savant-model-analyzer/server/internal/analyzer/explain"
	"github.com/savant-model-analyzer/server/internal/analyzer/plots"
)

const defaultFeatureNum = 10

type FeatureNumInput struct {
	SessionID  string `json:"session_id,omitempty"`
	FeatureNum int    `json:"feature_num,omitempty"`
}

func featureNumParam(desc string) map[string]*schema.ParameterInfo {
	return map[string]*schema.ParameterInfo{
		"session_id":  sessionIDParam,
		"feature_num": {Type: "integer", Desc: desc},
	}
}

func featureImportanceTool(d Deps) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name:        model.ToolSHAPFeatureImportance,
			Desc:        "Compute global SHAP feature importance (mean absolute SHAP value) for the top N features of the session model, sorted from most to least important.",
			ParamsOneOf: schema.NewParamsOneOfByParams(featureNumParam("Number of features to include (default: 10).")),
		},
		func(ctx context.Context, in *FeatureNumInput) (*Ack, error) {
			id, err := resolveSession(ctx, in.SessionID)
			if err != nil {
				return failed(model.ToolSHAPFeatureImportance, "", err)
			}
			n := in.FeatureNum
			if n <= 0 {
				n = defaultFeatureNum
			}

			values, err := d.Sessions.SHAPValues(ctx, id)
			if err != nil {
				return failed(model.ToolSHAPFeatureImportance, id, err)
			}
			features, err := d.Sessions.Features(ctx, id)
			if err != nil {
				return failed(model.ToolSHAPFeatureImportance, id, err)
			}

			return finish(ctx, model.ToolSHAPFeatureImportance, in, &model.ToolResult{
				SessionID:   id,
				ContentType: model.ContentJSON,
				Content:     explain.Rank(values, features, n),
			}, fmt.Sprintf("Shap Feature data created for session_id %s", id))
		},
	)
}

func summaryPlotTool(d Deps) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name:        model.ToolSHAPSummaryPlot,
			Desc:        "Generate a SHAP summary plot image (beeswarm) of the session model for all features or the top N features. The image is delivered to the user directly.",
			ParamsOneOf: schema.NewParamsOneOfByParams(featureNumParam("Optional number of top features to plot; all features when omitted.")),
		},
		func(ctx context.Context, in *FeatureNumInput) (*Ack, error) {
			id, err := resolveSession(ctx, in.SessionID)
			if err != nil {
				return failed(model.ToolSHAPSummaryPlot, "", err)
			}

			values, err := d.Sessions.SHAPValues(ctx, id)
			if err != nil {
				return failed(model.ToolSHAPSummaryPlot, id, err)
			}
			x, err := d.Sessions.XTestTransformed(ctx, id)
			if err != nil {
				return failed(model.ToolSHAPSummaryPlot, id, err)
			}
			gen, err := plots.FromValues(values, x)
			if err != nil {
				return failed(model.ToolSHAPSummaryPlot, id, err)
			}
			img, err := gen.SummaryPlotBase64(in.FeatureNum)
			if err != nil {
				return failed(model.ToolSHAPSummaryPlot, id, err)
			}

			return finish(ctx, model.ToolSHAPSummaryPlot, in, &model.ToolResult{
				SessionID:   id,
				ContentType: model.ContentBase64Image,
				Content:     img,
			}, fmt.Sprintf("Shap Summary image generated for session_id %s", id))
		},
	)
}

var trends = map[explain.Direction]string{
	explain.Increases: "↑ mostly increases fulfillment",
	explain.Decreases: "↓ mostly decreases fulfillment",
	explain.Mixed:     "↔ mixed or neutral impact",
}

func narrativeTool(d Deps) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name:        model.ToolSHAPInsightNarrative,
			Desc:        "Generate a business-friendly narrative of the top SHAP drivers of the session model for pharma commercial teams: drivers, interpretation, patterns and recommendations.",
			ParamsOneOf: schema.NewParamsOneOfByParams(featureNumParam("Number of features to cover (default: 10).")),
		},
		func(ctx context.Context, in *FeatureNumInput) (*Ack, error) {
			id, err := resolveSession(ctx, in.SessionID)
			if err != nil {
				return failed(model.ToolSHAPInsightNarrative, "", err)
			}
			n := in.FeatureNum
			if n <= 0 {
				n = defaultFeatureNum
			}

			values, err := d.Sessions.SHAPValues(ctx, id)
			if err != nil {
				return failed(model.ToolSHAPInsightNarrative, id, err)
			}
			features, err := d.Sessions.Features(ctx, id)
			if err != nil {
				return failed(model.ToolSHAPInsightNarrative, id, err)
			}

			ranked := explain.Rank(values, features, n)
			lines := make([]prompts.FeatureLine, len(ranked))
			for i, f := range ranked {
				lines[i] = prompts.FeatureLine{
					Name:       f.Name,
					Importance: f.Value,
					Trend:      trends[explain.DirectionOf(explain.PositiveRatio(values, f.Index))],
				}
			}
			msgs, err := prompts.RenderNarrative(ctx, lines)
			if err != nil {
				return failed(model.ToolSHAPInsightNarrative, id, err)
			}
			out, err := d.Narrator.Generate(ctx, msgs)
			if err != nil {
				return failed(model.ToolSHAPInsightNarrative, id, err)
			}
			if out.ResponseMeta != nil {
				if c := model.ComputeCost(d.NarratorModel, out.ResponseMeta.Usage); c != nil {
					ScopeFrom(ctx).addCost(c.TotalCost)
				}
			}
			text := strings.TrimSpace(out.Content)

			return finish(ctx, model.ToolSHAPInsightNarrative, in, &model.ToolResult{
				SessionID:   id,
				ContentType: model.ContentString,
				Content:     text,
			}, text)
		},
	)
}
