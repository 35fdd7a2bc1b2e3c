package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/savant-model-analyzer/server/internal/agent/model"
	"github.com/savant-model-analyzer/server/internal/analyzer/evaluation"
	analyzer "github.com/savant-model-analyzer/server/internal/analyzer/model"
	"github.com/savant-model-analyzer/server/internal/analyzer/plots"
)

// classNames label the binary outcome by its class value.
var classNames = []string{"Not Fulfilled", "Fulfilled"}

// predictions loads the test split and the model's predictions on it.
func predictions(ctx context.Context, d Deps, id string) (yTrue, yPred analyzer.Labels, err error) {
	e, err := d.Sessions.Model(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	x, err := d.Sessions.XTestTransformed(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	yTrue, err = d.Sessions.YTest(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return yTrue, e.PredictFrame(x), nil
}

func f1ScoreTool(d Deps) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name:        model.ToolF1Score,
			Desc:        "Compute the F1 score of the session model on its held-out test set. Summarizes precision and recall in one number.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{"session_id": sessionIDParam}),
		},
		func(ctx context.Context, in *sessionInput) (*Ack, error) {
			id, err := resolveSession(ctx, in.SessionID)
			if err != nil {
				return failed(model.ToolF1Score, "", err)
			}
			yTrue, yPred, err := predictions(ctx, d, id)
			if err != nil {
				return failed(model.ToolF1Score, id, err)
			}
			f1, err := evaluation.F1(yTrue, yPred, 1)
			if err != nil {
				return failed(model.ToolF1Score, id, err)
			}
			f1 = evaluation.Round(f1, 4)

			return finish(ctx, model.ToolF1Score, in, &model.ToolResult{
				SessionID:   id,
				ContentType: model.ContentJSON,
				Content:     f1,
			}, fmt.Sprintf("F1 score for session_id %s is %.4f", id, f1))
		},
	)
}

func confusionMatrixTool(d Deps) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name:        model.ToolConfusionMatrixPlot,
			Desc:        "Generate a confusion matrix image of the session model on its held-out test set, comparing predicted and actual fulfilment. The image is delivered to the user directly.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{"session_id": sessionIDParam}),
		},
		func(ctx context.Context, in *sessionInput) (*Ack, error) {
			id, err := resolveSession(ctx, in.SessionID)
			if err != nil {
				return failed(model.ToolConfusionMatrixPlot, "", err)
			}
			yTrue, yPred, err := predictions(ctx, d, id)
			if err != nil {
				return failed(model.ToolConfusionMatrixPlot, id, err)
			}
			cm, err := evaluation.ConfusionMatrix(yTrue, yPred)
			if err != nil {
				return failed(model.ToolConfusionMatrixPlot, id, err)
			}
			names := make([]string, len(cm.Labels))
			for i, l := range cm.Labels {
				names[i] = fmt.Sprint(l)
				if l >= 0 && l < len(classNames) {
					names[i] = classNames[l]
				}
			}
			img, err := plots.ConfusionMatrixBase64(cm, names)
			if err != nil {
				return failed(model.ToolConfusionMatrixPlot, id, err)
			}

			return finish(ctx, model.ToolConfusionMatrixPlot, in, &model.ToolResult{
				SessionID:   id,
				ContentType: model.ContentBase64Image,
				Content:     img,
			}, fmt.Sprintf("Confusion Matrix image generated for session_id %s", id))
		},
	)
}
