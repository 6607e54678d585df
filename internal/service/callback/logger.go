// Package callback 提供 Eino Callback 日志支持
// 记录模型调用的耗时、token 用量和错误
package callback

import (
	"context"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	applog "github.com/ashwinyue/report-insight/internal/logger"
)

type startKey struct{}

// Logger 日志回调处理器
// 实现 callbacks.Handler 接口
type Logger struct {
	EnableDebug bool // 是否记录每次调用的开始事件
	logger      zerolog.Logger
}

// NewLogger 创建日志回调处理器
func NewLogger(enableDebug bool) *Logger {
	return &Logger{
		EnableDebug: enableDebug,
		logger:      applog.Component("eino"),
	}
}

// OnStart 组件执行开始时调用
func (l *Logger) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	if l.EnableDebug {
		evt := l.logger.Debug().Str("name", info.Name).Str("type", info.Type).Str("component", string(info.Component))
		if in := model.ConvCallbackInput(input); in != nil {
			evt = evt.Int("messages", len(in.Messages))
		}
		evt.Msg("component started")
	}
	return context.WithValue(ctx, startKey{}, time.Now())
}

// OnEnd 组件执行成功结束时调用
func (l *Logger) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	evt := l.logger.Info().Str("name", info.Name).Str("type", info.Type)
	if start, ok := ctx.Value(startKey{}).(time.Time); ok {
		evt = evt.Dur("latency", time.Since(start))
	}
	if out := model.ConvCallbackOutput(output); out != nil && out.TokenUsage != nil {
		evt = evt.
			Int("prompt_tokens", out.TokenUsage.PromptTokens).
			Int("completion_tokens", out.TokenUsage.CompletionTokens).
			Int("total_tokens", out.TokenUsage.TotalTokens)
	}
	evt.Msg("component finished")
	return ctx
}

// OnError 组件执行出错时调用
func (l *Logger) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	l.logger.Warn().Err(err).Str("name", info.Name).Str("type", info.Type).Msg("component failed")
	return ctx
}

// OnStartWithStreamInput 流式输入开始时调用，流必须关闭
func (l *Logger) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo, input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	return context.WithValue(ctx, startKey{}, time.Now())
}

// OnEndWithStreamOutput 流式输出结束时调用，流必须关闭
func (l *Logger) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo, output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	return ctx
}
