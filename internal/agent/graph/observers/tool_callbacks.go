package observers

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/tool"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/savant-model-analyzer/server/pkg/logger"
)

type toolStartKey struct{}

func newToolHandler() *callbackHelper.ToolCallbackHandler {
	return &callbackHelper.ToolCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *tool.CallbackInput) context.Context {
			args := ""
			if input != nil {
				args = input.ArgumentsInJSON
			}
			logx.Info().Str("tool_name", info.Name).Str("arguments", args).Msg("tool start")
			return context.WithValue(ctx, toolStartKey{}, time.Now())
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *tool.CallbackOutput) context.Context {
			toolCalls.WithLabelValues(info.Name, "ok").Inc()
			ev := logx.Info().Str("tool_name", info.Name)
			if start, ok := ctx.Value(toolStartKey{}).(time.Time); ok {
				toolDuration.WithLabelValues(info.Name).Observe(time.Since(start).Seconds())
				ev = ev.Dur("elapsed", time.Since(start))
			}
			if output != nil {
				ev = ev.Str("response", output.Response)
			}
			ev.Msg("tool end")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			toolCalls.WithLabelValues(info.Name, "error").Inc()
			logx.Error().Err(err).Str("tool_name", info.Name).Msg("tool failed")
			return ctx
		},
	}
}
